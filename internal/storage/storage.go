// Package storage abstracts the object store that holds raw uploaded files.
package storage

import (
	"context"
	"fmt"
	"io"
)

// ObjectStore persists raw document bytes and hands back a retrievable
// locator. Implementations do not retry; a failed upload aborts the current
// pipeline attempt and is covered by the whole-job retry.
type ObjectStore interface {
	// Put stores the bytes under a key derived from suggestedName and
	// returns the object key plus a URL the object can be fetched from.
	Put(ctx context.Context, data []byte, suggestedName, contentKind string) (key, url string, err error)

	// Open returns a reader over a stored object.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a stored object. Deleting a missing object is not an
	// error.
	Delete(ctx context.Context, key string) error
}

// Error wraps a storage-layer failure so the pipeline can classify it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }
