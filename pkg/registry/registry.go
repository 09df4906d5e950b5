package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jigna-sync/jigna-go/pkg/model"
)

// Registry errors.
var (
	ErrNotFound     = errors.New("model not registered")
	ErrViewMismatch = errors.New("view is bound to a different model")
)

// Entry pairs a registered model with its view.
type Entry struct {
	Model *model.Model
	View  *View
}

// Registry maps model IDs to models and views.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*model.Model
	views  map[string]*View
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		models: make(map[string]*model.Model),
		views:  make(map[string]*View),
	}
}

// Register adds m with view v. It reports whether the entry was added;
// an already registered ID is left untouched. A nil view exposes every
// attribute of m.
func (r *Registry) Register(m *model.Model, v *View) (bool, error) {
	if v == nil {
		v = NewView(m)
	}
	if v.ModelID == "" {
		v.ModelID = m.ID()
	}
	if v.ModelID != m.ID() {
		return false, fmt.Errorf("%w: view %s, model %s", ErrViewMismatch, v.ModelID, m.ID())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[m.ID()]; exists {
		return false, nil
	}
	r.models[m.ID()] = m
	r.views[m.ID()] = v
	return true, nil
}

// RegisterTree registers m with view v, then every model reachable from m's
// attribute values with a view exposing all of its attributes. It returns
// the newly added models.
func (r *Registry) RegisterTree(m *model.Model, v *View) ([]*model.Model, error) {
	var added []*model.Model
	if ok, err := r.Register(m, v); err != nil {
		return nil, err
	} else if ok {
		added = append(added, m)
	}

	added = append(added, r.RegisterReachable(m)...)
	return added, nil
}

// RegisterReachable registers every model reachable from value that is not
// yet registered, each with a view exposing all attributes, and returns
// them. Descent continues through registered models so that newly attached
// grandchildren are found too.
func (r *Registry) RegisterReachable(value any) []*model.Model {
	var added []*model.Model
	model.Walk(value, func(m *model.Model) bool {
		if ok, _ := r.Register(m, nil); ok {
			added = append(added, m)
		}
		return true
	})
	return added
}

// Model returns the model registered under id.
func (r *Registry) Model(id string) (*model.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.models[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m, nil
}

// View returns the view registered under id.
func (r *Registry) View(id string) (*View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, exists := r.views[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v, nil
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.models[id]
	return exists
}

// Entries returns a snapshot of all registrations sorted by model ID.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.models))
	for id, m := range r.models {
		entries = append(entries, Entry{Model: m, View: r.views[id]})
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Model.ID() < entries[j].Model.ID()
	})
	return entries
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models)
}

// Clear drops all entries. Used at session teardown.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = make(map[string]*model.Model)
	r.views = make(map[string]*View)
}
