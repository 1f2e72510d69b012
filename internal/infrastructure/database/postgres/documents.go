// internal/infrastructure/database/postgres/documents.go
package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/artecho/storefront-backend/internal/pkg/docstore"
)

// DocumentRecord is one document, keyed by its collection path and id
type DocumentRecord struct {
	Collection string    `gorm:"primaryKey;size:512" json:"collection"`
	DocID      string    `gorm:"primaryKey;size:255" json:"doc_id"`
	Data       string    `gorm:"type:text;not null" json:"data"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName overrides the table name for DocumentRecord
func (DocumentRecord) TableName() string {
	return "documents"
}

// DocumentStore implements docstore.Store on a single SQL table
type DocumentStore struct {
	db *gorm.DB
}

// NewDocumentStore creates a document store
func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Get returns the document at path
func (s *DocumentStore) Get(ctx context.Context, path string) (*docstore.Document, error) {
	col, id, err := docstore.SplitDocument(path)
	if err != nil {
		return nil, err
	}
	rec, err := findRecord(s.db.WithContext(ctx), col, id)
	if err != nil {
		return nil, err
	}
	return toDocument(rec)
}

// Set writes data at path, merging fields into an existing document when asked
func (s *DocumentStore) Set(ctx context.Context, path string, data map[string]any, opts docstore.SetOptions) error {
	col, id, err := docstore.SplitDocument(path)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return setRecord(tx, col, id, data, opts.Merge)
	})
}

// Delete removes the document at path; a missing document is not an error
func (s *DocumentStore) Delete(ctx context.Context, path string) error {
	col, id, err := docstore.SplitDocument(path)
	if err != nil {
		return err
	}
	return deleteRecord(s.db.WithContext(ctx), col, id)
}

// List returns the documents directly under collection, ordered by id
func (s *DocumentStore) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return nil, err
	}

	var recs []DocumentRecord
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("doc_id").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	docs := make([]docstore.Document, 0, len(recs))
	for i := range recs {
		doc, err := toDocument(&recs[i])
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// Commit applies writes in one transaction
func (s *DocumentStore) Commit(ctx context.Context, writes []docstore.Write) error {
	for _, w := range writes {
		if _, _, err := docstore.SplitDocument(w.Path); err != nil {
			return err
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, w := range writes {
			col, id, _ := docstore.SplitDocument(w.Path)
			var err error
			switch w.Kind {
			case docstore.WriteSet:
				err = setRecord(tx, col, id, w.Data, w.Merge)
			case docstore.WriteDelete:
				err = deleteRecord(tx, col, id)
			default:
				err = fmt.Errorf("unknown write kind %q", w.Kind)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func findRecord(tx *gorm.DB, col, id string) (*DocumentRecord, error) {
	var rec DocumentRecord
	err := tx.Where("collection = ? AND doc_id = ?", col, id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", col, id, err)
	}
	return &rec, nil
}

func setRecord(tx *gorm.DB, col, id string, data map[string]any, merge bool) error {
	if merge {
		existing, err := findRecord(tx.Clauses(clause.Locking{Strength: "UPDATE"}), col, id)
		switch {
		case err == nil:
			current, err := decodeData(existing.Data)
			if err != nil {
				return err
			}
			data = docstore.MergeFields(current, data)
		case !errors.Is(err, docstore.ErrNotFound):
			return err
		}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", col, id, err)
	}

	rec := DocumentRecord{Collection: col, DocID: id, Data: string(raw)}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", col, id, err)
	}
	return nil
}

func deleteRecord(tx *gorm.DB, col, id string) error {
	err := tx.Where("collection = ? AND doc_id = ?", col, id).Delete(&DocumentRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", col, id, err)
	}
	return nil
}

func toDocument(rec *DocumentRecord) (*docstore.Document, error) {
	data, err := decodeData(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("document %s/%s: %w", rec.Collection, rec.DocID, err)
	}
	return &docstore.Document{ID: rec.DocID, Data: data}, nil
}

func decodeData(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}
