package wire

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jigna-sync/jigna-go/pkg/model"
)

var personSchema = model.Schema{
	{Name: "name", Type: model.TypeString},
	{Name: "age", Type: model.TypeInt},
	{Name: "spouse", Type: model.TypeModel, Nullable: true},
	{Name: "fruits", Type: model.TypeSequence, Elem: model.TypeString},
}

func TestRequestRoundTrip(t *testing.T) {
	data, err := EncodeRequest("m1", "age", 41)
	require.NoError(t, err)

	req, err := DecodeRequest(data)
	require.NoError(t, err)
	assert.True(t, req.IsSetTrait())
	assert.Equal(t, "m1", req.ModelID)
	assert.Equal(t, "age", req.TName)
	assert.Equal(t, "41", req.SerializedValue())
}

func TestDecodeRequest(t *testing.T) {
	t.Run("unknown type is not an error", func(t *testing.T) {
		req, err := DecodeRequest([]byte(`{"type":"ping"}`))
		require.NoError(t, err)
		assert.False(t, req.IsSetTrait())
	})

	t.Run("missing type", func(t *testing.T) {
		_, err := DecodeRequest([]byte(`{"model_id":"m1"}`))
		assert.ErrorIs(t, err, ErrMalformedMessage)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := DecodeRequest([]byte(`{"type":`))
		assert.ErrorIs(t, err, ErrMalformedMessage)
	})

	t.Run("raw value accepted", func(t *testing.T) {
		req, err := DecodeRequest([]byte(`{"type":"set_trait","model_id":"m1","tname":"fruits","value":["a","b"]}`))
		require.NoError(t, err)
		assert.Equal(t, `["a","b"]`, req.SerializedValue())
	})
}

func TestDecodeValue(t *testing.T) {
	v, err := DecodeValue(`"41"`)
	require.NoError(t, err)
	assert.Equal(t, "41", v)

	v, err = DecodeValue(`41`)
	require.NoError(t, err)
	assert.Equal(t, json.Number("41"), v)

	v, err = DecodeValue(`null`)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = DecodeValue(`{"a":`)
	assert.ErrorIs(t, err, ErrMalformedValue)

	_, err = DecodeValue(`1 2`)
	assert.ErrorIs(t, err, ErrMalformedValue)
}

func TestCoerce(t *testing.T) {
	wilma := model.New("Person", personSchema)
	resolve := func(id string) (*model.Model, bool) {
		if id == wilma.ID() {
			return wilma, true
		}
		return nil, false
	}

	tests := []struct {
		name    string
		meta    model.AttributeMetadata
		in      any
		want    any
		wantErr bool
	}{
		{"numeric string to int", personSchema[1], "41", int64(41), false},
		{"number to int", personSchema[1], json.Number("41"), int64(41), false},
		{"integral float to int", personSchema[1], json.Number("41.0"), int64(41), false},
		{"fraction truncates to int", personSchema[1], json.Number("41.5"), int64(41), false},
		{"negative fraction truncates toward zero", personSchema[1], json.Number("-41.9"), int64(-41), false},
		{"float truncates to int", personSchema[1], 41.5, int64(41), false},
		{"fractional string to int", personSchema[1], "41.5", nil, true},
		{"out of range to int", personSchema[1], json.Number("1e30"), nil, true},
		{"infinity to int", personSchema[1], math.Inf(1), nil, true},
		{"garbage to int", personSchema[1], "forty", nil, true},
		{"number to float", model.AttributeMetadata{Name: "w", Type: model.TypeFloat}, json.Number("1.5"), 1.5, false},
		{"nan to float", model.AttributeMetadata{Name: "w", Type: model.TypeFloat}, "NaN", nil, true},
		{"inf to float", model.AttributeMetadata{Name: "w", Type: model.TypeFloat}, "Inf", nil, true},
		{"negative infinity to float", model.AttributeMetadata{Name: "w", Type: model.TypeFloat}, "-Infinity", nil, true},
		{"nan float to float", model.AttributeMetadata{Name: "w", Type: model.TypeFloat}, math.NaN(), nil, true},
		{"number to string", personSchema[0], json.Number("7"), "7", false},
		{"bool from string", model.AttributeMetadata{Name: "b", Type: model.TypeBool}, "true", true, false},
		{"bool from number", model.AttributeMetadata{Name: "b", Type: model.TypeBool}, json.Number("0"), false, false},
		{"model by id", personSchema[2], wilma.ID(), wilma, false},
		{"model by object", personSchema[2], map[string]any{ModelIDKey: wilma.ID()}, wilma, false},
		{"unknown model", personSchema[2], "nope", nil, true},
		{"sequence", personSchema[3], []any{"apple", json.Number("3")}, []any{"apple", "3"}, false},
		{"sequence from object", personSchema[3], map[string]any{}, nil, true},
		{"any", model.AttributeMetadata{Name: "x"}, map[string]any{"n": json.Number("2"), "f": json.Number("2.5")}, map[string]any{"n": int64(2), "f": 2.5}, false},
		{"null", personSchema[2], nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := tt.meta
			got, err := Coerce(&meta, tt.in, resolve)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrCoercion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeNotification(t *testing.T) {
	data, err := EncodeNotification(Notification{ModelID: "m1", TName: "age", Value: int64(41)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"model_id":"m1","tname":"age","value":41}`, string(data))

	n, err := DecodeNotification(data)
	require.NoError(t, err)
	assert.Equal(t, "m1", n.ModelID)
	assert.Equal(t, json.Number("41"), n.Value)
}

func TestEncodeNotificationUnserializable(t *testing.T) {
	_, err := EncodeNotification(Notification{ModelID: "m1", TName: "x", Value: make(chan int)})
	assert.ErrorIs(t, err, ErrUnserializable)
}

func TestEncodeNestedModel(t *testing.T) {
	fred := model.New("Person", personSchema)
	wilma := model.New("Person", personSchema)
	require.NoError(t, fred.Set("name", "Fred"))
	require.NoError(t, wilma.Set("name", "Wilma"))
	require.NoError(t, fred.Set("spouse", wilma))
	require.NoError(t, wilma.Set("spouse", fred))

	encoded, ok := EncodeValue(fred).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, fred.ID(), encoded[ModelIDKey])
	assert.Equal(t, "Person", encoded[KindKey])
	assert.Equal(t, "Fred", encoded["name"])

	spouse, ok := encoded["spouse"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Wilma", spouse["name"])

	// Cycle back to fred is a bare reference.
	back, ok := spouse["spouse"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{ModelIDKey: fred.ID(), KindKey: "Person"}, back)

	_, err := json.Marshal(encoded)
	assert.NoError(t, err)
}

func TestEncodeScript(t *testing.T) {
	script, err := EncodeScript(Notification{ModelID: "m1", TName: "name", Value: `say "hi"`})
	require.NoError(t, err)

	const prefix = "jigna.client.bridge.handle_event("
	require.True(t, strings.HasPrefix(script, prefix))
	require.True(t, strings.HasSuffix(script, ");"))

	literal := strings.TrimSuffix(strings.TrimPrefix(script, prefix), ");")
	var inner string
	require.NoError(t, json.Unmarshal([]byte(literal), &inner))
	assert.JSONEq(t, `{"model_id":"m1","tname":"name","value":"say \"hi\""}`, inner)
}
