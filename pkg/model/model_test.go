package model

import (
	"errors"
	"testing"
)

func personSchema() Schema {
	return Schema{
		{Name: "name", Type: TypeString},
		{Name: "age", Type: TypeInt},
		{Name: "weight", Type: TypeFloat},
		{Name: "spouse", Type: TypeModel, Nullable: true},
		{Name: "fruits", Type: TypeSequence, Elem: TypeString},
		{Name: "friends", Type: TypeSequence, Elem: TypeModel},
		{Name: "phonebook", Type: TypeMapping, Elem: TypeInt},
	}
}

func newPerson(name string, age int) *Model {
	m := New("Person", personSchema())
	_ = m.Set("name", name)
	_ = m.Set("age", age)
	return m
}

func TestModelBasics(t *testing.T) {
	fred := newPerson("Fred", 42)

	t.Run("ID", func(t *testing.T) {
		if fred.ID() == "" {
			t.Fatal("expected non-empty ID")
		}
		if other := newPerson("Fred", 42); other.ID() == fred.ID() {
			t.Error("expected distinct IDs for distinct models")
		}
	})

	t.Run("Names", func(t *testing.T) {
		names := fred.Names()
		if len(names) != 7 || names[0] != "name" || names[6] != "phonebook" {
			t.Errorf("unexpected names %v", names)
		}
	})

	t.Run("CanonicalInt", func(t *testing.T) {
		v, err := fred.Get("age")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if v != int64(42) {
			t.Errorf("expected int64(42), got %T(%v)", v, v)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		fruits, _ := fred.Get("fruits")
		if s, ok := fruits.([]any); !ok || len(s) != 0 {
			t.Errorf("expected empty sequence, got %#v", fruits)
		}
		spouse, _ := fred.Get("spouse")
		if spouse != nil {
			t.Errorf("expected nil spouse, got %v", spouse)
		}
	})

	t.Run("UnknownAttribute", func(t *testing.T) {
		if _, err := fred.Get("missing"); !errors.Is(err, ErrAttributeNotFound) {
			t.Errorf("expected ErrAttributeNotFound, got %v", err)
		}
	})
}

func TestModelSetValidation(t *testing.T) {
	m := newPerson("Fred", 42)

	tests := []struct {
		name    string
		attr    string
		value   any
		wantErr error
	}{
		{"string into int", "age", "42", ErrAttributeValueType},
		{"int into string", "name", 1, ErrAttributeValueType},
		{"null into non-nullable", "name", nil, ErrAttributeNotNullable},
		{"typed nil model", "spouse", (*Model)(nil), nil},
		{"int into float", "weight", 80, nil},
		{"typed slice", "fruits", []string{"peach", "pear"}, nil},
		{"bad element", "fruits", []any{"peach", 1}, ErrAttributeValueType},
		{"typed map", "phonebook", map[string]int{"joe": 123}, nil},
		{"non-string keys", "phonebook", map[int]int{1: 2}, ErrAttributeValueType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Set(tt.attr, tt.value)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	weight, _ := m.Get("weight")
	if weight != float64(80) {
		t.Errorf("expected float64(80), got %T(%v)", weight, weight)
	}
	book, _ := m.Get("phonebook")
	if book.(map[string]any)["joe"] != int64(123) {
		t.Errorf("expected joe=123, got %v", book)
	}
}

func TestModelObserve(t *testing.T) {
	m := newPerson("Fred", 42)

	type change struct {
		id, name string
		value    any
	}
	var got []change
	cancel, err := m.Observe("age", func(id, name string, value any) {
		got = append(got, change{id, name, value})
	})
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}

	t.Run("FiresOncePerMutation", func(t *testing.T) {
		_ = m.Set("age", 43)
		if len(got) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(got))
		}
		if got[0].id != m.ID() || got[0].name != "age" || got[0].value != int64(43) {
			t.Errorf("unexpected notification %+v", got[0])
		}
	})

	t.Run("EqualValueIsSilent", func(t *testing.T) {
		_ = m.Set("age", int32(43))
		if len(got) != 1 {
			t.Errorf("expected no new notification, got %d total", len(got))
		}
	})

	t.Run("OtherAttributesNotObserved", func(t *testing.T) {
		_ = m.Set("name", "Barney")
		if len(got) != 1 {
			t.Errorf("expected no notification for name, got %d total", len(got))
		}
	})

	t.Run("FailedSetIsSilent", func(t *testing.T) {
		_ = m.Set("age", "old")
		if len(got) != 1 {
			t.Errorf("expected no notification for failed set, got %d total", len(got))
		}
	})

	t.Run("Cancel", func(t *testing.T) {
		cancel()
		cancel()
		_ = m.Set("age", 44)
		if len(got) != 1 {
			t.Errorf("expected no notification after cancel, got %d total", len(got))
		}
	})

	t.Run("UnknownAttribute", func(t *testing.T) {
		if _, err := m.Observe("missing", func(string, string, any) {}); !errors.Is(err, ErrAttributeNotFound) {
			t.Errorf("expected ErrAttributeNotFound, got %v", err)
		}
	})
}

func TestModelObserverMayMutate(t *testing.T) {
	m := newPerson("Fred", 42)

	// An observer writing another attribute must not deadlock.
	_, _ = m.Observe("age", func(_, _ string, value any) {
		_ = m.Set("name", "Fred the elder")
	})
	if err := m.Set("age", 80); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if name, _ := m.Get("name"); name != "Fred the elder" {
		t.Errorf("expected observer write, got %v", name)
	}
}

func TestNewWithIDDuplicate(t *testing.T) {
	_, err := NewWithID("x", "Broken", Schema{{Name: "a"}, {Name: "a"}})
	if !errors.Is(err, ErrDuplicateAttribute) {
		t.Errorf("expected ErrDuplicateAttribute, got %v", err)
	}
}

func TestWalk(t *testing.T) {
	fred := newPerson("Fred", 42)
	wilma := newPerson("Wilma", 40)
	dino := newPerson("Dino", 10)

	_ = fred.Set("spouse", wilma)
	_ = wilma.Set("spouse", fred)
	_ = fred.Set("friends", []*Model{dino})

	seen := map[string]int{}
	Walk(fred, func(m *Model) bool {
		seen[m.ID()]++
		return true
	})

	if len(seen) != 3 {
		t.Fatalf("expected 3 models, got %d", len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("model %s visited %d times", id, n)
		}
	}
}

func TestDataTypeString(t *testing.T) {
	if TypeSequence.String() != "sequence" {
		t.Errorf("got %q", TypeSequence.String())
	}
	if DataType(99).String() != "unknown" {
		t.Errorf("got %q", DataType(99).String())
	}
}
