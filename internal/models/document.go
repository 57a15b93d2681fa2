package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is the catalog record a signature request points at. The
// stored object lives in the file store under StoredName; OriginalName
// is what the operator uploaded and what signers see.
type Document struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	StoredName   string    `gorm:"uniqueIndex;not null" json:"stored_name"`
	OriginalName string    `gorm:"not null" json:"original_name"`
	RequestName  string    `gorm:"not null" json:"request_name"`
	FileSize     int64     `json:"file_size"`
	FileHash     string    `json:"file_hash"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for the Document model
func (Document) TableName() string {
	return "documents"
}

// DocumentManager provides ORM methods for Document
type DocumentManager struct {
	db *gorm.DB
}

// NewDocumentManager creates a new DocumentManager instance
func NewDocumentManager(db *gorm.DB) *DocumentManager {
	return &DocumentManager{db: db}
}

// Create creates a new document record
func (m *DocumentManager) Create(doc *Document) error {
	return m.db.Create(doc).Error
}

// Get retrieves a document by ID
func (m *DocumentManager) Get(id uuid.UUID) (*Document, error) {
	var doc Document
	err := m.db.First(&doc, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// List retrieves all documents, newest first
func (m *DocumentManager) List() ([]Document, error) {
	var docs []Document
	err := m.db.Order("created_at DESC").Find(&docs).Error
	return docs, err
}

// Delete deletes a document record
func (m *DocumentManager) Delete(id uuid.UUID) error {
	return m.db.Delete(&Document{}, "id = ?", id).Error
}
