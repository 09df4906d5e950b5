package main

import (
	"github.com/jigna-sync/jigna-go/pkg/model"
)

// personSchema describes the demo model.
var personSchema = model.Schema{
	{Name: "name", Type: model.TypeString, Description: "Display name"},
	{Name: "age", Type: model.TypeInt},
	{Name: "spouse", Type: model.TypeModel, Nullable: true},
	{Name: "fruits", Type: model.TypeSequence, Elem: model.TypeString},
	{Name: "friends", Type: model.TypeSequence, Elem: model.TypeModel},
	{Name: "phonebook", Type: model.TypeMapping, Elem: model.TypeInt},
}

// newFamily builds Fred and his neighbours. Only Fred is bound directly;
// the others are reachable through his attributes.
func newFamily() (*model.Model, error) {
	fred := model.New("Person", personSchema)
	wilma := model.New("Person", personSchema)
	barney := model.New("Person", personSchema)
	betty := model.New("Person", personSchema)

	steps := []struct {
		m     *model.Model
		name  string
		value any
	}{
		{wilma, "name", "Wilma"},
		{wilma, "age", 40},
		{barney, "name", "Barney"},
		{barney, "age", 38},
		{betty, "name", "Betty"},
		{betty, "age", 39},
		{barney, "spouse", betty},
		{betty, "spouse", barney},
		{fred, "name", "Fred"},
		{fred, "age", 42},
		{fred, "spouse", wilma},
		{wilma, "spouse", fred},
		{fred, "fruits", []string{"peach", "pear"}},
		{fred, "friends", []*model.Model{barney, betty}},
		{fred, "phonebook", map[string]int{"barney": 5550101, "betty": 5550102}},
	}
	for _, s := range steps {
		if err := s.m.Set(s.name, s.value); err != nil {
			return nil, err
		}
	}
	return fred, nil
}
