// Package signing implements the signature request lifecycle: batch
// creation with region registration, notification dispatch, terminal
// transitions, and token-based access checks.
package signing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"signflow/internal/models"
)

// Notifier delivers a signer-specific message for each request in the
// batch. Sending again for an existing token must be safe: delivery
// never mutates request state.
type Notifier interface {
	SendSignatureRequests(operatorName, requestName string, requests []models.SignatureRequest) error
}

// SignerInput describes one invited signer and their declared fields
type SignerInput struct {
	Email  string       `json:"email"`
	Name   string       `json:"name"`
	Fields []FieldInput `json:"fields"`
}

// FieldInput describes the placement of one signature field
type FieldInput struct {
	Type       models.FieldType `json:"type"`
	PageNumber int              `json:"page_number"`
	X          float64          `json:"x"`
	Y          float64          `json:"y"`
	Width      float64          `json:"width"`
	Height     float64          `json:"height"`
}

// Service orchestrates signature requests for documents
type Service struct {
	db       *models.DB
	notifier Notifier
}

// NewService creates a new signing orchestrator
func NewService(db *models.DB, notifier Notifier) *Service {
	return &Service{db: db, notifier: notifier}
}

// CreateRequests creates one pending signature request per signer plus
// one region per declared field, all in a single transaction. Either
// the whole batch is durably recorded or none of it is. The document
// must already exist in the catalog.
func (s *Service) CreateRequests(documentID uuid.UUID, signers []SignerInput) (*models.Document, []models.SignatureRequest, error) {
	document, err := s.db.Documents.Get(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, fmt.Errorf("failed to resolve document: %w", err)
	}

	requests := make([]*models.SignatureRequest, 0, len(signers))
	var regions []*models.SignatureRegion
	for _, signer := range signers {
		requests = append(requests, &models.SignatureRequest{
			DocumentID:  document.ID,
			SignerEmail: signer.Email,
			SignerName:  signer.Name,
			Status:      models.StatusPending,
		})

		for _, field := range signer.Fields {
			regions = append(regions, &models.SignatureRegion{
				DocumentID:  document.ID,
				SignerEmail: signer.Email,
				FieldType:   field.Type,
				PageNumber:  field.PageNumber,
				X:           field.X,
				Y:           field.Y,
				Width:       field.Width,
				Height:      field.Height,
			})
		}
	}

	err = s.db.Transaction(func(tx *models.DB) error {
		if err := tx.SignatureRequests.CreateBatch(requests); err != nil {
			return fmt.Errorf("failed to create signature requests: %w", err)
		}
		if err := tx.SignatureRegions.CreateBatch(regions); err != nil {
			return fmt.Errorf("failed to create signature regions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	created := make([]models.SignatureRequest, len(requests))
	for i, request := range requests {
		created[i] = *request
	}

	return document, created, nil
}

// DispatchNotifications sends one message per request. It runs after
// the creation transaction has committed: a transport failure is
// reported as ErrDeliveryFailed but never rolls the batch back, the
// requests stay pending and re-notifiable.
func (s *Service) DispatchNotifications(operatorName string, document *models.Document, requests []models.SignatureRequest) error {
	if len(requests) == 0 {
		return nil
	}
	if err := s.notifier.SendSignatureRequests(operatorName, document.RequestName, requests); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// ResendNotifications re-dispatches messages for the still-pending
// requests of a document. Tokens and statuses are left untouched, so
// repeated calls are idempotent. Returns how many requests were
// notified.
func (s *Service) ResendNotifications(documentID uuid.UUID, operatorName string) (int, error) {
	document, err := s.db.Documents.Get(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrDocumentNotFound
		}
		return 0, fmt.Errorf("failed to resolve document: %w", err)
	}

	requests, err := s.db.SignatureRequests.ListPendingByDocument(documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending requests: %w", err)
	}
	if len(requests) == 0 {
		return 0, nil
	}

	if err := s.DispatchNotifications(operatorName, document, requests); err != nil {
		return 0, err
	}
	return len(requests), nil
}

// Cancel transitions every pending request for a document to cancelled
// with the given reason. Returns whether any request existed for the
// document; repeated calls are no-ops on already-terminal rows.
func (s *Service) Cancel(documentID uuid.UUID, reason string) (bool, error) {
	return s.db.SignatureRequests.TransitionAll(documentID, models.StatusCancelled, reason)
}

// Reject transitions every pending request for a document to rejected
// with the given reason.
func (s *Service) Reject(documentID uuid.UUID, reason string) (bool, error) {
	return s.db.SignatureRequests.TransitionAll(documentID, models.StatusRejected, reason)
}

// Complete marks the request behind the token as signed. Only the
// first transition on a request wins; a request that already reached a
// terminal state reports a StateError with its current status.
func (s *Service) Complete(token string) (*models.SignatureRequest, error) {
	request, err := s.db.SignatureRequests.GetByToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if request.IsExpired() {
		return nil, ErrTokenExpired
	}

	ok, err := s.db.SignatureRequests.MarkSigned(request.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark request signed: %w", err)
	}
	if !ok {
		// Lost the race or was already terminal; report what won.
		current, err := s.db.SignatureRequests.GetByToken(token)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read request: %w", err)
		}
		return nil, &StateError{Status: current.Status}
	}

	request.Status = models.StatusSigned
	return request, nil
}

// DeleteDocumentRecords removes the requests and regions tied to a
// document inside one transaction. Cascading cleanup for catalog-level
// document deletion; regions are never deleted on their own.
func (s *Service) DeleteDocumentRecords(documentID uuid.UUID) error {
	return s.db.Transaction(func(tx *models.DB) error {
		if err := tx.SignatureRequests.DeleteByDocument(documentID); err != nil {
			return fmt.Errorf("failed to delete signature requests: %w", err)
		}
		if err := tx.SignatureRegions.DeleteByDocument(documentID); err != nil {
			return fmt.Errorf("failed to delete signature regions: %w", err)
		}
		if err := tx.Documents.Delete(documentID); err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		return nil
	})
}
