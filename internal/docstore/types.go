package docstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no document is stored under the key.
	ErrNotFound = errors.New("document not found")
	// ErrUnknownSchema is returned when a stored document has a schema name or
	// version this process does not understand.
	ErrUnknownSchema = errors.New("unknown document schema")
	// ErrMalformed is returned when a document body does not decode into its schema.
	ErrMalformed = errors.New("malformed document body")
	// ErrConflict is returned when a save lost an optimistic revision check.
	ErrConflict = errors.New("document revision conflict")
)

// Envelope is the item stored in the state table for each document.
type Envelope struct {
	Key           string `dynamodbav:"doc_key"` // PK
	Schema        string `dynamodbav:"schema"`
	SchemaVersion int    `dynamodbav:"schema_version"`
	Revision      int64  `dynamodbav:"revision"`
	Body          string `dynamodbav:"body"` // JSON
	UpdatedAt     string `dynamodbav:"updated_at"`
}

// UpgradeFunc rewrites a body stored at version from into the shape of version from+1.
type UpgradeFunc func(from int, body []byte) ([]byte, error)

// Schema describes one kind of persisted document.
type Schema struct {
	Name    string
	Version int
	Upgrade UpgradeFunc
}

// Registry holds the schemas a store can read and write.
type Registry struct {
	schemas map[string]Schema
}

// NewRegistry creates a registry with the given schemas.
func NewRegistry(schemas ...Schema) *Registry {
	r := &Registry{schemas: map[string]Schema{}}
	for _, s := range schemas {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a schema.
func (r *Registry) Register(s Schema) {
	if s.Version < 1 {
		s.Version = 1
	}
	r.schemas[s.Name] = s
}

func (r *Registry) lookup(name string) (Schema, error) {
	s, ok := r.schemas[name]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q not registered", ErrUnknownSchema, name)
	}
	return s, nil
}

// upgrade walks body from version up to the schema's current version.
func (s Schema) upgrade(version int, body []byte) ([]byte, error) {
	for v := version; v < s.Version; v++ {
		if s.Upgrade == nil {
			return nil, fmt.Errorf("%w: %s v%d has no upgrade path", ErrUnknownSchema, s.Name, v)
		}
		next, err := s.Upgrade(v, body)
		if err != nil {
			return nil, fmt.Errorf("upgrade %s v%d: %w", s.Name, v, err)
		}
		body = next
	}
	return body, nil
}
