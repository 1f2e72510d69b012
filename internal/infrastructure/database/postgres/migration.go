// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"log"

	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{
		db: db,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	log.Println("🔄 Running database auto-migrations...")

	models := []interface{}{
		&DocumentRecord{},
	}

	for _, model := range models {
		log.Printf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	log.Println("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates additional indexes for better performance
func (m *Migration) CreateIndexes() error {
	log.Println("🔄 Creating additional database indexes...")

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_documents_collection_updated ON documents(collection, updated_at DESC)",
	}

	successCount := 0
	failCount := 0

	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			log.Printf("⚠️ Failed to create index: %v", err)
			failCount++
		} else {
			successCount++
		}
	}

	log.Printf("✅ Created %d indexes successfully (%d failed)", successCount, failCount)
	return nil
}

// GetTableInfo logs how many documents each collection group holds
func (m *Migration) GetTableInfo() error {
	var rows []struct {
		Collection string
		Count      int64
	}
	if err := m.db.Model(&DocumentRecord{}).
		Select("collection, count(*) as count").
		Group("collection").
		Order("collection").
		Scan(&rows).Error; err != nil {
		return err
	}

	log.Println("📊 Document Collections:")
	log.Println("================================")

	var total int64
	for _, r := range rows {
		total += r.Count
		log.Printf("📁 %-40s | %d documents", r.Collection, r.Count)
	}

	log.Println("================================")
	log.Printf("📈 Total documents: %d in %d collections", total, len(rows))
	return nil
}
