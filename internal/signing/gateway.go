package signing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"signflow/internal/models"
)

// Gateway validates inbound signing tokens before a signer may proceed
type Gateway struct {
	db *models.DB
}

// NewGateway creates a new request access gateway
func NewGateway(db *models.DB) *Gateway {
	return &Gateway{db: db}
}

// CheckToken verifies a token against existence, expiry, and status,
// in that order. The order is fixed so the same condition always
// surfaces the same error: an expired request reports ErrTokenExpired
// even when it also sits in a terminal state.
func (g *Gateway) CheckToken(token string) (*models.SignatureRequest, error) {
	request, err := g.db.SignatureRequests.GetByToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if request.IsExpired() {
		return nil, ErrTokenExpired
	}

	if request.Status != models.StatusPending {
		return nil, &StateError{Status: request.Status}
	}

	return request, nil
}

// ValidationResult is the minimum a signer's client needs to proceed
// to the signing step.
type ValidationResult struct {
	DocumentID   uuid.UUID `json:"documentId"`
	DocumentName string    `json:"documentName"`
	SignerName   string    `json:"signerName"`
}

// Validate confirms the claimed email matches the signer the token was
// issued to, comparing exactly as stored. It is an identity check
// assumed to follow CheckToken and deliberately does not re-check
// expiry or status.
func (g *Gateway) Validate(token, claimedEmail string) (*ValidationResult, error) {
	request, err := g.db.SignatureRequests.GetByToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if request.SignerEmail != claimedEmail {
		return nil, ErrUnauthorized
	}

	return &ValidationResult{
		DocumentID:   request.DocumentID,
		DocumentName: request.Document.OriginalName,
		SignerName:   request.SignerName,
	}, nil
}
