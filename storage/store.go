// Package storage persists enrolled people for the recognition engine.
// Two interchangeable backends exist: a JSON file and a SQLite database,
// selected at startup.
package storage

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("storage: person not found")

// Person is one enrollable subject. Encoding is the face signature vector;
// nil means no usable face is stored for this person.
type Person struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Age       *int      `json:"age,omitempty"`
	ImagePath string    `json:"image_path"`
	Encoding  []float64 `json:"encoding,omitempty"`
}

// Fields carries a partial update of display fields. Nil means unchanged.
// The encoding is deliberately not updatable through this path.
type Fields struct {
	Name *string
	Age  *int
}

type Store interface {
	// ListByOwner returns every person belonging to ownerID.
	ListByOwner(ctx context.Context, ownerID string) ([]Person, error)
	// Create inserts a new person. The caller assigns the ID.
	Create(ctx context.Context, p Person) error
	// Update applies display-field changes and returns the updated record,
	// or ErrNotFound.
	Update(ctx context.Context, id string, fields Fields) (Person, error)
	Close() error
}
