package model

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ChangeFunc is invoked when an observed attribute changes.
type ChangeFunc func(modelID, name string, value any)

// Model is an addressable object with named, typed attributes.
type Model struct {
	mu sync.RWMutex

	// id is assigned once and never changes.
	id string

	// kind is the model type name, e.g. "Person".
	kind string

	// names preserves declaration order.
	names      []string
	attributes map[string]*Attribute

	// observers indexed by attribute name.
	observers map[string][]*observer
	nextObsID uint64
}

type observer struct {
	id uint64
	fn ChangeFunc
}

// New creates a model of the given kind with a freshly generated ID.
// It panics if the schema declares the same attribute twice.
func New(kind string, schema Schema) *Model {
	m, err := NewWithID(uuid.NewString(), kind, schema)
	if err != nil {
		panic(err)
	}
	return m
}

// NewWithID creates a model with a caller-supplied ID.
func NewWithID(id, kind string, schema Schema) (*Model, error) {
	m := &Model{
		id:         id,
		kind:       kind,
		names:      make([]string, 0, len(schema)),
		attributes: make(map[string]*Attribute, len(schema)),
		observers:  make(map[string][]*observer),
	}

	for i := range schema {
		meta := schema[i]
		if _, exists := m.attributes[meta.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAttribute, meta.Name)
		}
		m.attributes[meta.Name] = NewAttribute(&meta)
		m.names = append(m.names, meta.Name)
	}

	return m, nil
}

// ID returns the stable model identifier.
func (m *Model) ID() string {
	return m.id
}

// Kind returns the model type name.
func (m *Model) Kind() string {
	return m.kind
}

// Names returns the attribute names in declaration order.
func (m *Model) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.names))
	copy(names, m.names)
	return names
}

// Has reports whether the model declares an attribute with this name.
func (m *Model) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.attributes[name]
	return exists
}

// Attribute returns an attribute by name.
func (m *Model) Attribute(name string) (*Attribute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	attr, exists := m.attributes[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s.%s", ErrAttributeNotFound, m.kind, name)
	}
	return attr, nil
}

// Get reads an attribute value by name.
func (m *Model) Get(name string) (any, error) {
	attr, err := m.Attribute(name)
	if err != nil {
		return nil, err
	}
	return attr.Value(), nil
}

// Set writes an attribute value and notifies observers if it changed.
func (m *Model) Set(name string, value any) error {
	attr, err := m.Attribute(name)
	if err != nil {
		return err
	}

	stored, changed, err := attr.setValue(value)
	if err != nil {
		return err
	}
	if changed {
		m.notify(name, stored)
	}
	return nil
}

// Snapshot returns the current values of all attributes.
func (m *Model) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]any, len(m.attributes))
	for name, attr := range m.attributes {
		result[name] = attr.Value()
	}
	return result
}

// Observe registers fn for changes of the named attribute.
// The returned cancel function removes the observer; it is safe to call
// more than once.
func (m *Model) Observe(name string, fn ChangeFunc) (cancel func(), err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.attributes[name]; !exists {
		return nil, fmt.Errorf("%w: %s.%s", ErrAttributeNotFound, m.kind, name)
	}

	m.nextObsID++
	obs := &observer{id: m.nextObsID, fn: fn}
	m.observers[name] = append(m.observers[name], obs)

	var once sync.Once
	return func() {
		once.Do(func() { m.unobserve(name, obs.id) })
	}, nil
}

func (m *Model) unobserve(name string, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obs := m.observers[name]
	for i, o := range obs {
		if o.id == id {
			m.observers[name] = append(obs[:i:i], obs[i+1:]...)
			break
		}
	}
	if len(m.observers[name]) == 0 {
		delete(m.observers, name)
	}
}

// notify invokes the observers of name outside the lock.
func (m *Model) notify(name string, value any) {
	m.mu.RLock()
	obs := make([]*observer, len(m.observers[name]))
	copy(obs, m.observers[name])
	m.mu.RUnlock()

	for _, o := range obs {
		o.fn(m.id, name, value)
	}
}

// String returns a short description like "Person(3f2c...)".
func (m *Model) String() string {
	return fmt.Sprintf("%s(%s)", m.kind, m.id)
}
