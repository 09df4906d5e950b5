package registry

import "github.com/jigna-sync/jigna-go/pkg/model"

// Session is the part of a sync session visible to editors.
type Session interface {
	// Registry returns the registry owned by the session.
	Registry() *Registry
}

// Editor participates in the session lifecycle. The core does not inspect
// an editor beyond calling SetupSession once at session start.
type Editor interface {
	SetupSession(s Session)
}

// EditorFunc adapts a function to the Editor interface.
type EditorFunc func(s Session)

// SetupSession calls f(s).
func (f EditorFunc) SetupSession(s Session) { f(s) }

// View describes which attributes of a model are exposed to clients.
type View struct {
	// ModelID is the ID of the model this view is bound to.
	ModelID string

	// VisibleAttributes lists the synchronized attribute names.
	VisibleAttributes []string

	// Editors are set up once when the session starts.
	Editors []Editor
}

// NewView creates a view exposing the given attributes of m.
// With no names, every attribute of m is visible.
func NewView(m *model.Model, names ...string) *View {
	if len(names) == 0 {
		names = m.Names()
	}
	visible := make([]string, len(names))
	copy(visible, names)
	return &View{
		ModelID:           m.ID(),
		VisibleAttributes: visible,
	}
}

// WithEditors appends editors to the view and returns it.
func (v *View) WithEditors(editors ...Editor) *View {
	v.Editors = append(v.Editors, editors...)
	return v
}

// IsVisible reports whether name is one of the view's visible attributes.
func (v *View) IsVisible(name string) bool {
	for _, n := range v.VisibleAttributes {
		if n == name {
			return true
		}
	}
	return false
}
