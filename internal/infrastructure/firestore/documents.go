// internal/infrastructure/firestore/documents.go
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/artecho/storefront-backend/internal/pkg/docstore"
)

// maxBatchWrites is the Firestore limit for a single atomic batch
const maxBatchWrites = docstore.MaxBatchWrites

// DocumentStore implements docstore.Store on Cloud Firestore
type DocumentStore struct {
	client *firestore.Client
}

// NewDocumentStore creates a document store backed by client
func NewDocumentStore(client *Client) *DocumentStore {
	return &DocumentStore{client: client.fs}
}

// Get returns the document at path
func (s *DocumentStore) Get(ctx context.Context, path string) (*docstore.Document, error) {
	ref, err := s.doc(path)
	if err != nil {
		return nil, err
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, docstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}
	return toDocument(snap), nil
}

// Set writes data at path
func (s *DocumentStore) Set(ctx context.Context, path string, data map[string]any, opts docstore.SetOptions) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}

	if _, err := ref.Set(ctx, data, setOptions(opts.Merge)...); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Delete removes the document at path
func (s *DocumentStore) Delete(ctx context.Context, path string) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}

	if _, err := ref.Delete(ctx); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// List returns the documents directly under collection
func (s *DocumentStore) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}

	iter := s.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	var docs []docstore.Document
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", collection, err)
		}
		docs = append(docs, *toDocument(snap))
	}
	return docs, nil
}

// Commit applies writes in one batch
func (s *DocumentStore) Commit(ctx context.Context, writes []docstore.Write) error {
	if len(writes) == 0 {
		return nil
	}
	if len(writes) > maxBatchWrites {
		return fmt.Errorf("batch of %d writes exceeds the limit of %d", len(writes), maxBatchWrites)
	}

	batch := s.client.Batch()
	for _, w := range writes {
		ref, err := s.doc(w.Path)
		if err != nil {
			return err
		}
		switch w.Kind {
		case docstore.WriteSet:
			batch.Set(ref, w.Data, setOptions(w.Merge)...)
		case docstore.WriteDelete:
			batch.Delete(ref)
		default:
			return fmt.Errorf("unknown write kind %q", w.Kind)
		}
	}

	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (s *DocumentStore) doc(path string) (*firestore.DocumentRef, error) {
	if _, _, err := docstore.SplitDocument(path); err != nil {
		return nil, err
	}
	ref := s.client.Doc(path)
	if ref == nil {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, path)
	}
	return ref, nil
}

func setOptions(merge bool) []firestore.SetOption {
	if merge {
		return []firestore.SetOption{firestore.MergeAll}
	}
	return nil
}

func toDocument(snap *firestore.DocumentSnapshot) *docstore.Document {
	data := snap.Data()
	if data == nil {
		data = map[string]any{}
	}
	return &docstore.Document{ID: snap.Ref.ID, Data: data}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
