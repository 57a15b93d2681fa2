package signing

import (
	"errors"
	"fmt"

	"signflow/internal/models"
)

var (
	// ErrDocumentNotFound is returned when the referenced document does
	// not exist in the catalog.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrTokenNotFound is returned when no signature request carries
	// the presented token.
	ErrTokenNotFound = errors.New("signature request not found")

	// ErrTokenExpired is returned when the token's validity window has
	// passed, regardless of the request's status.
	ErrTokenExpired = errors.New("signature request expired")

	// ErrUnauthorized is returned when the presented identity does not
	// match the signer the request was issued to.
	ErrUnauthorized = errors.New("signer identity mismatch")

	// ErrDeliveryFailed wraps notification transport failures. The
	// already-committed request batch stays valid behind it.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

// StateError reports that a request exists and is unexpired but is not
// in the state the requested action needs. It carries the current
// status so callers can render a specific message.
type StateError struct {
	Status models.RequestStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("signature request is %s and cannot proceed", e.Status)
}
