package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	model "github.com/pdintel/docintel/models"
)

// newTestDB opens a private in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&model.Document{},
		&model.LineItem{},
		&model.FieldMapping{},
		&model.CanonicalProduct{},
		&model.DocumentChunk{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func seedDocument(t *testing.T, db *gorm.DB, mut func(*model.Document)) *model.Document {
	t.Helper()
	doc := &model.Document{
		ID:               uuid.NewString(),
		OriginalFilename: "quote.csv",
		FileFormat:       "csv",
		StoredPath:       "1700000000-quote.csv",
		ProcessingStatus: model.StatusUploaded,
		VendorName:       "Acme Industrial",
		DocumentDate:     "2024-01-15",
		Currency:         "USD",
		Tags:             "[]",
		CreatedAt:        time.Now(),
	}
	if mut != nil {
		mut(doc)
	}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("failed to seed document: %v", err)
	}
	return doc
}

func seedLineItem(t *testing.T, db *gorm.DB, docID string, mut func(*model.LineItem)) *model.LineItem {
	t.Helper()
	li := &model.LineItem{
		ID:         uuid.NewString(),
		DocumentID: docID,
		LineNumber: 1,
		Category:   model.CategoryOther,
	}
	if mut != nil {
		mut(li)
	}
	if err := db.Create(li).Error; err != nil {
		t.Fatalf("failed to seed line item: %v", err)
	}
	return li
}

func f64(v float64) *float64 { return &v }
