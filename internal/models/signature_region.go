package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SignatureRegion records the placement of one signature field on a
// document page for one signer. Regions and requests share the
// (document, signer email) key but carry no foreign key to each other:
// regions describe the document, requests describe the workflow.
type SignatureRegion struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DocumentID  uuid.UUID `gorm:"type:uuid;not null;index:idx_regions_document_signer" json:"document_id"`
	SignerEmail string    `gorm:"not null;index:idx_regions_document_signer" json:"signer_email"`
	FieldType   FieldType `gorm:"not null" json:"field_type"`
	PageNumber  int       `gorm:"not null" json:"page_number"`
	X           float64   `gorm:"not null" json:"x"`
	Y           float64   `gorm:"not null" json:"y"`
	Width       float64   `gorm:"not null" json:"width"`
	Height      float64   `gorm:"not null" json:"height"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName specifies the table name for the SignatureRegion model
func (SignatureRegion) TableName() string {
	return "signature_regions"
}

// SignatureRegionManager provides ORM methods for SignatureRegion
type SignatureRegionManager struct {
	db *gorm.DB
}

// NewSignatureRegionManager creates a new SignatureRegionManager instance
func NewSignatureRegionManager(db *gorm.DB) *SignatureRegionManager {
	return &SignatureRegionManager{db: db}
}

// Create persists a single region
func (m *SignatureRegionManager) Create(region *SignatureRegion) error {
	return m.db.Create(region).Error
}

// CreateBatch persists one region per declared field
func (m *SignatureRegionManager) CreateBatch(regions []*SignatureRegion) error {
	if len(regions) == 0 {
		return nil
	}
	return m.db.Create(regions).Error
}

// ListByDocument retrieves all regions on a document
func (m *SignatureRegionManager) ListByDocument(documentID uuid.UUID) ([]SignatureRegion, error) {
	var regions []SignatureRegion
	err := m.db.Where("document_id = ?", documentID).
		Order("page_number ASC, created_at ASC").
		Find(&regions).Error
	return regions, err
}

// ListByDocumentSigner retrieves the regions assigned to one signer
func (m *SignatureRegionManager) ListByDocumentSigner(documentID uuid.UUID, signerEmail string) ([]SignatureRegion, error) {
	var regions []SignatureRegion
	err := m.db.Where("document_id = ? AND signer_email = ?", documentID, signerEmail).
		Order("page_number ASC, created_at ASC").
		Find(&regions).Error
	return regions, err
}

// DeleteByDocument removes every region on a document. Only called as
// cascading cleanup when the owning document is deleted.
func (m *SignatureRegionManager) DeleteByDocument(documentID uuid.UUID) error {
	return m.db.Delete(&SignatureRegion{}, "document_id = ?", documentID).Error
}
