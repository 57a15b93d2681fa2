// Package models provides GORM-based models with manager types for
// documents, signature requests, and signature regions.
package models

import "time"

// Custom types to match PostgreSQL enums
type RequestStatus string
type FieldType string

const (
	// Signature request statuses
	StatusPending   RequestStatus = "pending"
	StatusSigned    RequestStatus = "signed"
	StatusRejected  RequestStatus = "rejected"
	StatusCancelled RequestStatus = "cancelled"

	// Signature field types
	FieldSignature FieldType = "signature"
	FieldText      FieldType = "text"
	FieldDate      FieldType = "date"
	FieldCheckbox  FieldType = "checkbox"
)

// RequestTTL is how long a signing token stays valid after creation.
const RequestTTL = 7 * 24 * time.Hour

// Code returns the numeric wire encoding used by signer-facing
// responses. Pending is the baseline 0.
func (s RequestStatus) Code() int {
	switch s {
	case StatusPending:
		return 0
	case StatusSigned:
		return 1
	case StatusRejected:
		return 2
	case StatusCancelled:
		return 3
	}
	return -1
}

// IsTerminal reports whether no further transition is permitted.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusSigned || s == StatusRejected || s == StatusCancelled
}

// ValidFieldType reports whether t names a known signature field kind.
func ValidFieldType(t FieldType) bool {
	switch t {
	case FieldSignature, FieldText, FieldDate, FieldCheckbox:
		return true
	}
	return false
}
