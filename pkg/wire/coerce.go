package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jigna-sync/jigna-go/pkg/model"
)

// ResolveFunc looks up a registered model by id.
type ResolveFunc func(id string) (*model.Model, bool)

// Coerce converts a decoded wire value to the canonical representation of
// the attribute declared by meta. resolve is used for model references and
// may be nil when the attribute holds no models.
func Coerce(meta *model.AttributeMetadata, v any, resolve ResolveFunc) (any, error) {
	out, err := coerce(meta.Type, meta.Elem, v, resolve)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", meta.Name, err)
	}
	return out, nil
}

func coerce(typ, elem model.DataType, v any, resolve ResolveFunc) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch typ {
	case model.TypeAny:
		return plain(v), nil
	case model.TypeBool:
		return coerceBool(v)
	case model.TypeInt:
		return coerceInt(v)
	case model.TypeFloat:
		return coerceFloat(v)
	case model.TypeString:
		return coerceString(v)
	case model.TypeModel:
		return coerceModel(v, resolve)
	case model.TypeSequence:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected array, got %T", ErrCoercion, v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			c, err := coerce(elem, model.TypeAny, item, resolve)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = c
		}
		return out, nil
	case model.TypeMapping:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: expected object, got %T", ErrCoercion, v)
		}
		out := make(map[string]any, len(obj))
		for k, item := range obj {
			c, err := coerce(elem, model.TypeAny, item, resolve)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = c
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unsupported type %s", ErrCoercion, typ)
}

func coerceBool(v any) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a bool", ErrCoercion, b)
		}
		return parsed, nil
	case json.Number:
		f, err := b.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCoercion, err)
		}
		return f != 0, nil
	}
	return nil, fmt.Errorf("%w: expected bool, got %T", ErrCoercion, v)
}

// coerceInt truncates numeric fractions toward zero. Strings must hold an
// integer literal.
func coerceInt(v any) (any, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrCoercion, n.String())
		}
		return truncateFloat(f)
	case string:
		text := strings.TrimSpace(n)
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrCoercion, text)
		}
		return i, nil
	case float64:
		return truncateFloat(n)
	case int64:
		return n, nil
	default:
		return nil, fmt.Errorf("%w: expected integer, got %T", ErrCoercion, v)
	}
}

func truncateFloat(f float64) (any, error) {
	t := math.Trunc(f)
	if math.IsNaN(t) || t >= math.MaxInt64 || t < math.MinInt64 {
		return nil, fmt.Errorf("%w: %v is out of integer range", ErrCoercion, f)
	}
	return int64(t), nil
}

func coerceFloat(v any) (any, error) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrCoercion, n.String())
		}
		f = parsed
	case string:
		text := strings.TrimSpace(n)
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrCoercion, text)
		}
		f = parsed
	case float64:
		f = n
	case int64:
		return float64(n), nil
	default:
		return nil, fmt.Errorf("%w: expected number, got %T", ErrCoercion, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v is not finite", ErrCoercion, f)
	}
	return f, nil
}

func coerceString(v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case json.Number:
		return s.String(), nil
	case bool:
		return strconv.FormatBool(s), nil
	}
	return nil, fmt.Errorf("%w: expected string, got %T", ErrCoercion, v)
}

func coerceModel(v any, resolve ResolveFunc) (any, error) {
	var id string
	switch ref := v.(type) {
	case string:
		id = ref
	case map[string]any:
		s, ok := ref[ModelIDKey].(string)
		if !ok {
			return nil, fmt.Errorf("%w: object has no %s", ErrCoercion, ModelIDKey)
		}
		id = s
	case *model.Model:
		return ref, nil
	default:
		return nil, fmt.Errorf("%w: expected model reference, got %T", ErrCoercion, v)
	}

	if resolve == nil {
		return nil, fmt.Errorf("%w: cannot resolve model %s", ErrCoercion, id)
	}
	m, ok := resolve(id)
	if !ok {
		return nil, fmt.Errorf("%w: unknown model %s", ErrCoercion, id)
	}
	return m, nil
}

// plain converts json.Number values to int64 when integral and float64
// otherwise, descending into arrays and objects.
func plain(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plain(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = plain(item)
		}
		return out
	}
	return v
}
