package log

import (
	"testing"
	"time"
)

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerWire.String(), "WIRE"},
		{LayerSession.String(), "SESSION"},
		{Layer(9).String(), "UNKNOWN"},
		{CategoryEdit.String(), "EDIT"},
		{CategoryNotify.String(), "NOTIFY"},
		{CategoryState.String(), "STATE"},
		{CategoryDrop.String(), "DROP"},
		{CategoryError.String(), "ERROR"},
		{Category(9).String(), "UNKNOWN"},
		{DropEcho.String(), "echo"},
		{DropUnknownModel.String(), "unknown_model"},
		{DropMalformed.String(), "malformed"},
		{DropCoercion.String(), "coercion"},
		{DropSetFailed.String(), "set_failed"},
		{DropReason(9).String(), "unknown"},
		{StateEntityConnection.String(), "CONNECTION"},
		{StateEntitySession.String(), "SESSION"},
		{StateEntity(9).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	events := []Event{
		{
			Timestamp:    ts,
			SessionID:    "s1",
			ConnectionID: "c1",
			Direction:    DirectionIn,
			Layer:        LayerSession,
			Category:     CategoryEdit,
			Edit:         &EditEvent{ModelID: "m1", Attribute: "age", Value: `"41"`},
		},
		{
			Timestamp: ts,
			Direction: DirectionOut,
			Layer:     LayerSession,
			Category:  CategoryNotify,
			Notify:    &NotifyEvent{ModelID: "m1", Attribute: "age", Excluded: []string{"c1"}, Payload: int64(41)},
		},
		{
			Timestamp: ts,
			Layer:     LayerSession,
			Category:  CategoryDrop,
			Drop:      &DropEvent{Reason: DropCoercion, ModelID: "m1", Attribute: "age", Detail: "not a number"},
		},
	}

	for _, want := range events {
		data, err := EncodeEvent(want)
		if err != nil {
			t.Fatalf("EncodeEvent: %v", err)
		}
		got, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("DecodeEvent: %v", err)
		}
		if !got.Timestamp.Equal(want.Timestamp) {
			t.Errorf("Timestamp: got %v, want %v", got.Timestamp, want.Timestamp)
		}
		if got.Category != want.Category {
			t.Errorf("Category: got %v, want %v", got.Category, want.Category)
		}
		switch want.Category {
		case CategoryEdit:
			if got.Edit == nil || *got.Edit != *want.Edit {
				t.Errorf("Edit: got %+v, want %+v", got.Edit, want.Edit)
			}
		case CategoryNotify:
			if got.Notify == nil || got.Notify.ModelID != "m1" || len(got.Notify.Excluded) != 1 {
				t.Errorf("Notify: got %+v", got.Notify)
			}
		case CategoryDrop:
			if got.Drop == nil || *got.Drop != *want.Drop {
				t.Errorf("Drop: got %+v, want %+v", got.Drop, want.Drop)
			}
		}
	}
}
