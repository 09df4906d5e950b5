package model

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// DataType is the declared type of an attribute value.
type DataType uint8

const (
	// TypeAny disables validation and coercion.
	TypeAny DataType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeModel
	TypeSequence
	TypeMapping
)

// String returns the data type name.
func (d DataType) String() string {
	names := []string{
		"any", "bool", "int", "float", "string", "model", "sequence", "mapping",
	}
	if int(d) < len(names) {
		return names[d]
	}
	return "unknown"
}

// AttributeMetadata describes an attribute's properties.
type AttributeMetadata struct {
	// Name is the attribute name used on the wire.
	Name string

	// Type is the declared data type of the attribute value.
	Type DataType

	// Elem is the element type for sequences and mappings.
	// TypeAny leaves elements unchecked.
	Elem DataType

	// Nullable indicates if nil/null is a valid value.
	Nullable bool

	// Default is the initial value.
	Default any

	// Description is a human-readable description.
	Description string
}

// Schema is an ordered list of attribute declarations.
type Schema []AttributeMetadata

// Attribute errors.
var (
	ErrAttributeNotFound    = errors.New("attribute not found")
	ErrAttributeNotNullable = errors.New("attribute does not accept null")
	ErrAttributeValueType   = errors.New("invalid value type for attribute")
	ErrDuplicateAttribute   = errors.New("duplicate attribute name")
)

// Attribute represents an attribute instance with its current value.
type Attribute struct {
	mu       sync.RWMutex
	metadata *AttributeMetadata
	value    any
}

// NewAttribute creates a new attribute with the given metadata.
// An invalid default is replaced by the zero value of the declared type.
func NewAttribute(meta *AttributeMetadata) *Attribute {
	a := &Attribute{metadata: meta}
	v, err := Normalize(meta.Type, meta.Elem, meta.Default)
	if err != nil || (v == nil && !meta.Nullable) {
		v = zeroValue(meta.Type)
	}
	a.value = v
	return a
}

// Name returns the attribute name.
func (a *Attribute) Name() string {
	return a.metadata.Name
}

// Metadata returns the attribute metadata.
func (a *Attribute) Metadata() *AttributeMetadata {
	return a.metadata
}

// Value returns the current attribute value.
func (a *Attribute) Value() any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value
}

// setValue validates and stores value, reporting whether the stored value
// changed. The returned value is the canonical form actually stored.
func (a *Attribute) setValue(value any) (any, bool, error) {
	v, err := Normalize(a.metadata.Type, a.metadata.Elem, value)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", a.metadata.Name, err)
	}
	if v == nil && !a.metadata.Nullable {
		return nil, false, ErrAttributeNotNullable
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if sameValue(a.value, v) {
		return v, false, nil
	}
	a.value = v
	return v, true, nil
}

// Normalize converts value into the canonical representation of typ.
// elem applies to the elements of sequences and mappings.
func Normalize(typ, elem DataType, value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch typ {
	case TypeAny:
		return value, nil
	case TypeBool:
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("%w: expected bool, got %T", ErrAttributeValueType, value)
	case TypeInt:
		if n, ok := toInt64(value); ok {
			return n, nil
		}
		return nil, fmt.Errorf("%w: expected integer, got %T", ErrAttributeValueType, value)
	case TypeFloat:
		if f, ok := toFloat64(value); ok {
			return f, nil
		}
		return nil, fmt.Errorf("%w: expected float, got %T", ErrAttributeValueType, value)
	case TypeString:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("%w: expected string, got %T", ErrAttributeValueType, value)
	case TypeModel:
		if m, ok := value.(*Model); ok {
			if m == nil {
				return nil, nil
			}
			return m, nil
		}
		return nil, fmt.Errorf("%w: expected model, got %T", ErrAttributeValueType, value)
	case TypeSequence:
		return normalizeSequence(elem, value)
	case TypeMapping:
		return normalizeMapping(elem, value)
	}
	return nil, fmt.Errorf("%w: unknown type %d", ErrAttributeValueType, typ)
}

func normalizeSequence(elem DataType, value any) (any, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: expected sequence, got %T", ErrAttributeValueType, value)
	}

	out := make([]any, rv.Len())
	for i := range out {
		v, err := Normalize(elem, TypeAny, rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func normalizeMapping(elem DataType, value any) (any, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: expected mapping with string keys, got %T", ErrAttributeValueType, value)
	}

	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		v, err := Normalize(elem, TypeAny, iter.Value().Interface())
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

func zeroValue(typ DataType) any {
	switch typ {
	case TypeBool:
		return false
	case TypeInt:
		return int64(0)
	case TypeFloat:
		return float64(0)
	case TypeString:
		return ""
	case TypeSequence:
		return []any{}
	case TypeMapping:
		return map[string]any{}
	default:
		return nil
	}
}

// sameValue compares canonical values. Models compare by identity.
func sameValue(a, b any) bool {
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !sameValue(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, exists := bv[k]
			if !exists || !sameValue(v, w) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	}

	if !reflect.TypeOf(a).Comparable() || b == nil || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}

// Helper functions for numeric conversion.

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}
