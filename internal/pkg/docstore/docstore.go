// internal/pkg/docstore/docstore.go
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the document does not exist
var ErrNotFound = errors.New("docstore: document not found")

// ErrInvalidPath is returned for malformed collection or document paths
var ErrInvalidPath = errors.New("docstore: invalid path")

// Document is a single stored document
type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// SetOptions controls Set behaviour
type SetOptions struct {
	// Merge keeps fields of an existing document that data does not mention
	Merge bool
}

// WriteKind is the kind of a batched write
type WriteKind string

// Batched write kinds
const (
	WriteSet    WriteKind = "set"
	WriteDelete WriteKind = "delete"
)

// Write is one entry of an atomic batch
type Write struct {
	Kind  WriteKind
	Path  string
	Data  map[string]any
	Merge bool
}

// Store is a collection/document addressed key-value document service
type Store interface {
	Get(ctx context.Context, path string) (*Document, error)
	Set(ctx context.Context, path string, data map[string]any, opts SetOptions) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, collection string) ([]Document, error)
	// Commit applies all writes or none of them
	Commit(ctx context.Context, writes []Write) error
}

// MaxBatchWrites is the largest batch every backend accepts in one Commit
const MaxBatchWrites = 500

// CommitChunked commits writes in batches of at most size. Each batch is atomic
// on its own; a failure stops the remaining batches.
func CommitChunked(ctx context.Context, s Store, writes []Write, size int) error {
	if size <= 0 {
		size = MaxBatchWrites
	}
	for start := 0; start < len(writes); start += size {
		end := min(start+size, len(writes))
		if err := s.Commit(ctx, writes[start:end]); err != nil {
			return fmt.Errorf("batch %d-%d of %d: %w", start, end, len(writes), err)
		}
	}
	return nil
}

// Join builds a slash separated path from segments
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// SplitDocument splits a document path into its collection path and document id
func SplitDocument(path string) (collection, id string, err error) {
	segments, err := segmentsOf(path)
	if err != nil {
		return "", "", err
	}
	if len(segments)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	return strings.Join(segments[:len(segments)-1], "/"), segments[len(segments)-1], nil
}

// ValidateCollection checks that path addresses a collection
func ValidateCollection(path string) error {
	segments, err := segmentsOf(path)
	if err != nil {
		return err
	}
	if len(segments)%2 != 1 {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	return nil
}

func segmentsOf(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segments := strings.Split(trimmed, "/")
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return segments, nil
}

// MergeFields overlays patch onto base and returns a new map
func MergeFields(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
