// Package model implements the server-resident object graph that is mirrored
// to remote UI clients.
//
// # Models and Attributes
//
// A Model is an addressable object with a stable identifier and an ordered
// set of named, typed attributes:
//
//	Person (3f2c...)
//	├── name    string
//	├── age     int
//	├── spouse  model     (nullable)
//	├── fruits  sequence<string>
//	└── friends sequence<model>
//
// Every attribute carries a declared DataType. The declared type is the
// schema used both for validating local writes and for coercing values that
// arrive from clients, so no runtime type inspection of the previous value is
// needed.
//
// # Values
//
// Attribute values are held in a canonical representation:
//
//	TypeBool     bool
//	TypeInt      int64
//	TypeFloat    float64
//	TypeString   string
//	TypeModel    *Model
//	TypeSequence []any
//	TypeMapping  map[string]any
//
// Set accepts any Go value that converts losslessly into the canonical form
// (int, int32, []string, map[string]int, ...). Nil is accepted only for
// nullable attributes.
//
// # Change Observation
//
// Observers are registered per attribute with Observe. A successful Set that
// changes the stored value invokes every observer of that attribute exactly
// once, synchronously, on the goroutine that called Set and after the
// model's lock has been released. Writing an equal value does not notify.
package model
