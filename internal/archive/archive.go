// Package archive saves the committed state of a history stream as an ordered
// list of entity records and restores it onto another stream. Entity pointers
// are stored as record ordinals; restore allocates a placeholder for every
// ordinal before any fields are read, then resolves pointers against them.
package archive

import (
	"errors"
	"fmt"
	"time"
)

// FormatVersion is written into every archive.
const FormatVersion = 1

// ErrNotFound is returned by stores for unknown archive names.
var ErrNotFound = errors.New("archive not found")

// Archive is the encoded form of one stream's entities.
type Archive struct {
	ID       string         `json:"id" cbor:"id"`
	Name     string         `json:"name" cbor:"name"`
	Version  int            `json:"version" cbor:"version"`
	Encoding string         `json:"encoding" cbor:"encoding"`
	Stream   string         `json:"stream" cbor:"stream"`
	SavedAt  time.Time      `json:"saved_at" cbor:"saved_at"`
	Records  []Record       `json:"records" cbor:"records"`
	Shared   []SharedRecord `json:"shared,omitempty" cbor:"shared,omitempty"`
}

// Record holds one entity. Owner and Attributes are ordinals; -1 is nil.
type Record struct {
	Ordinal    int               `json:"ordinal" cbor:"ordinal"`
	Kind       string            `json:"kind" cbor:"kind"`
	Tag        int64             `json:"tag,omitempty" cbor:"tag,omitempty"`
	UseCount   int               `json:"use_count,omitempty" cbor:"use_count,omitempty"`
	Attribute  bool              `json:"attribute,omitempty" cbor:"attribute,omitempty"`
	Owner      int               `json:"owner" cbor:"owner"`
	Attributes []int             `json:"attributes,omitempty" cbor:"attributes,omitempty"`
	Behavior   map[string]string `json:"behavior,omitempty" cbor:"behavior,omitempty"`
	Declared   map[string]string `json:"declared,omitempty" cbor:"declared,omitempty"`
	Fields     [][]byte          `json:"fields,omitempty" cbor:"fields,omitempty"`
}

// SharedRecord holds one shared sub-object referenced by several records.
type SharedRecord struct {
	Ordinal int    `json:"ordinal" cbor:"ordinal"`
	Payload []byte `json:"payload" cbor:"payload"`
}

// FormatError reports a record that cannot be written or restored.
type FormatError struct {
	Ordinal int
	Kind    string
	Err     error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("archive record %d (%s): %v", e.Ordinal, e.Kind, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Meta describes a stored archive without its payload.
type Meta struct {
	Name     string    `json:"name"`
	ID       string    `json:"id"`
	Encoding string    `json:"encoding"`
	Entities int       `json:"entities"`
	Size     int       `json:"size"`
	SavedAt  time.Time `json:"saved_at"`
}

// MetaOf summarises a and its encoded size.
func MetaOf(a *Archive, size int) Meta {
	return Meta{
		Name:     a.Name,
		ID:       a.ID,
		Encoding: a.Encoding,
		Entities: len(a.Records),
		Size:     size,
		SavedAt:  a.SavedAt,
	}
}
