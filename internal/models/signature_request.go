package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SignatureRequest tracks one signing workflow instance for a single
// signer of a document. The token is the signer's only capability to
// act on the request.
type SignatureRequest struct {
	ID          uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DocumentID  uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_requests_document_signer" json:"document_id"`
	SignerEmail string        `gorm:"not null;uniqueIndex:idx_requests_document_signer" json:"signer_email"`
	SignerName  string        `gorm:"not null" json:"signer_name"`
	Token       string        `gorm:"uniqueIndex;not null" json:"token"`
	Status      RequestStatus `gorm:"default:'pending'" json:"status"`
	ExpiredAt   time.Time     `gorm:"not null" json:"expired_at"`
	Reason      *string       `json:"reason,omitempty"`
	CreatedAt   time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"column:updated_at" json:"updated_at"`

	// Associations
	Document Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
}

// TableName specifies the table name for the SignatureRequest model
func (SignatureRequest) TableName() string {
	return "signature_requests"
}

// BeforeCreate generates a unique token and sets status and expiry
func (sr *SignatureRequest) BeforeCreate(tx *gorm.DB) error {
	if sr.Token == "" {
		token, err := NewToken()
		if err != nil {
			return err
		}
		sr.Token = token
	}

	if sr.Status == "" {
		sr.Status = StatusPending
	}

	// Default validity window
	if sr.ExpiredAt.IsZero() {
		sr.ExpiredAt = time.Now().Add(RequestTTL)
	}

	return nil
}

// NewToken generates an opaque signing token from 32 random bytes.
func NewToken() (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(tokenBytes), nil
}

// SignatureRequestManager provides ORM methods for SignatureRequest
type SignatureRequestManager struct {
	db *gorm.DB
}

// NewSignatureRequestManager creates a new SignatureRequestManager instance
func NewSignatureRequestManager(db *gorm.DB) *SignatureRequestManager {
	return &SignatureRequestManager{db: db}
}

// Create creates a single signature request
func (m *SignatureRequestManager) Create(request *SignatureRequest) error {
	return m.db.Create(request).Error
}

// CreateBatch inserts one request per signer. Callers wanting
// all-or-nothing semantics run this inside DB.Transaction.
func (m *SignatureRequestManager) CreateBatch(requests []*SignatureRequest) error {
	if len(requests) == 0 {
		return nil
	}
	return m.db.Create(requests).Error
}

// GetByToken retrieves a request by its signing token
func (m *SignatureRequestManager) GetByToken(token string) (*SignatureRequest, error) {
	var request SignatureRequest
	err := m.db.Where("token = ?", token).Preload("Document").First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// ListByDocument retrieves all requests tied to a document
func (m *SignatureRequestManager) ListByDocument(documentID uuid.UUID) ([]SignatureRequest, error) {
	var requests []SignatureRequest
	err := m.db.Where("document_id = ?", documentID).Order("created_at ASC").Find(&requests).Error
	return requests, err
}

// ListPendingByDocument retrieves the still-pending requests for a document
func (m *SignatureRequestManager) ListPendingByDocument(documentID uuid.UUID) ([]SignatureRequest, error) {
	var requests []SignatureRequest
	err := m.db.Where("document_id = ? AND status = ?", documentID, StatusPending).
		Order("created_at ASC").
		Find(&requests).Error
	return requests, err
}

// ExistsForDocument reports whether any request is tied to the document
func (m *SignatureRequestManager) ExistsForDocument(documentID uuid.UUID) (bool, error) {
	var count int64
	err := m.db.Model(&SignatureRequest{}).Where("document_id = ?", documentID).Count(&count).Error
	return count > 0, err
}

// TransitionAll moves every pending request for a document into the
// given terminal status, recording the reason. Already-terminal rows
// are left untouched; the WHERE clause on status means a racing
// transition never overwrites one that already won. Returns whether
// any request (terminal or not) existed for the document.
func (m *SignatureRequestManager) TransitionAll(documentID uuid.UUID, to RequestStatus, reason string) (bool, error) {
	exists, err := m.ExistsForDocument(documentID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	err = m.db.Model(&SignatureRequest{}).
		Where("document_id = ? AND status = ?", documentID, StatusPending).
		Updates(map[string]interface{}{"status": to, "reason": reason}).Error
	if err != nil {
		return false, err
	}

	return true, nil
}

// MarkSigned transitions a single request from pending to signed.
// Returns false when the request was already terminal, i.e. another
// transition won first.
func (m *SignatureRequestManager) MarkSigned(id uuid.UUID) (bool, error) {
	result := m.db.Model(&SignatureRequest{}).
		Where("id = ? AND status = ?", id, StatusPending).
		Update("status", StatusSigned)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// DeleteByDocument removes every request tied to a document
func (m *SignatureRequestManager) DeleteByDocument(documentID uuid.UUID) error {
	return m.db.Delete(&SignatureRequest{}, "document_id = ?", documentID).Error
}

// Instance methods for SignatureRequest

// IsExpired checks if the signing token has passed its validity window
func (sr *SignatureRequest) IsExpired() bool {
	return time.Now().After(sr.ExpiredAt)
}

// IsPending checks if the request can still be acted on
func (sr *SignatureRequest) IsPending() bool {
	return sr.Status == StatusPending && !sr.IsExpired()
}

// SigningLink generates the signing entry link sent to the signer
func (sr *SignatureRequest) SigningLink(baseURL string) string {
	return baseURL + "/sign?token=" + sr.Token
}
