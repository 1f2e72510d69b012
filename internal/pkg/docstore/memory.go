// internal/pkg/docstore/memory.go
package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process Store, used for development and tests
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]map[string]any),
	}
}

// Get returns a copy of the document at path
func (m *Memory) Get(_ context.Context, path string) (*Document, error) {
	col, id, err := SplitDocument(path)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.collections[col][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Data: MergeFields(nil, data)}, nil
}

// Set writes a document, merging fields when requested
func (m *Memory) Set(_ context.Context, path string, data map[string]any, opts SetOptions) error {
	col, id, err := SplitDocument(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.set(col, id, data, opts.Merge)
	return nil
}

// Delete removes a document; deleting a missing document succeeds
func (m *Memory) Delete(_ context.Context, path string) error {
	col, id, err := SplitDocument(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.collections[col], id)
	return nil
}

// List returns every document of a collection ordered by id
func (m *Memory) List(_ context.Context, collection string) ([]Document, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0, len(m.collections[collection]))
	for id, data := range m.collections[collection] {
		docs = append(docs, Document{ID: id, Data: MergeFields(nil, data)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Commit validates every write before applying any of them
func (m *Memory) Commit(_ context.Context, writes []Write) error {
	type target struct{ col, id string }
	targets := make([]target, len(writes))
	for i, w := range writes {
		col, id, err := SplitDocument(w.Path)
		if err != nil {
			return fmt.Errorf("batch write %d: %w", i, err)
		}
		if w.Kind != WriteSet && w.Kind != WriteDelete {
			return fmt.Errorf("batch write %d: unknown kind %q", i, w.Kind)
		}
		targets[i] = target{col: col, id: id}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i, w := range writes {
		t := targets[i]
		if w.Kind == WriteDelete {
			delete(m.collections[t.col], t.id)
			continue
		}
		m.set(t.col, t.id, w.Data, w.Merge)
	}
	return nil
}

func (m *Memory) set(col, id string, data map[string]any, merge bool) {
	docs, ok := m.collections[col]
	if !ok {
		docs = make(map[string]map[string]any)
		m.collections[col] = docs
	}
	if existing, ok := docs[id]; ok && merge {
		docs[id] = MergeFields(existing, data)
		return
	}
	docs[id] = MergeFields(nil, data)
}
