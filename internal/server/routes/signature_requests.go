package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"signflow/internal/database"
	"signflow/internal/models"
	"signflow/internal/signing"
	"signflow/internal/storage"
)

type ServerInterface interface {
	GetDB() *models.DB
	GetSQL() database.Service
	GetSigning() *signing.Service
	GetGateway() *signing.Gateway
	GetS3Service() *storage.S3Service
}

type SignatureRequestRoutes struct {
	server ServerInterface
}

func NewSignatureRequestRoutes(server ServerInterface) *SignatureRequestRoutes {
	return &SignatureRequestRoutes{server: server}
}

func (sr *SignatureRequestRoutes) RegisterRoutes(r *gin.Engine) {
	requests := r.Group("/signature-requests")
	{
		requests.POST("/request", sr.sendSignatureRequestHandler)
		requests.PUT("/cancel/:documentID", sr.cancelSignatureRequestsHandler)
		requests.PUT("/reject/:documentID", sr.rejectSignatureRequestsHandler)
		requests.GET("/check", sr.checkTokenHandler)
		requests.POST("/validate", sr.validateSignatureRequestHandler)
		requests.PUT("/complete", sr.completeSignatureRequestHandler)
		requests.POST("/resend/:documentID", sr.resendNotificationsHandler)
		requests.GET("/status/:documentID", sr.statusSummaryHandler)
	}
}

type SendSignatureRequest struct {
	DocumentID   uuid.UUID             `json:"document_id" binding:"required"`
	OperatorName string                `json:"operator_name" binding:"required"`
	Signers      []signing.SignerInput `json:"signers" binding:"required,min=1,dive"`
}

func (sr *SignatureRequestRoutes) sendSignatureRequestHandler(c *gin.Context) {
	var req SendSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, signer := range req.Signers {
		if strings.TrimSpace(signer.Email) == "" || strings.TrimSpace(signer.Name) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Signer email and name are required"})
			return
		}
		for _, field := range signer.Fields {
			if !models.ValidFieldType(field.Type) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature field type: " + string(field.Type)})
				return
			}
		}
	}

	service := sr.server.GetSigning()

	document, requests, err := service.CreateRequests(req.DocumentID, req.Signers)
	if err != nil {
		if errors.Is(err, signing.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create signature requests"})
		return
	}

	// Remember who sent the batch for this session
	session := sessions.Default(c)
	session.Set("operator_name", req.OperatorName)
	session.Save()

	// Dispatch runs after the batch has committed: a delivery failure
	// is reported but the requests stay pending and re-notifiable.
	if err := service.DispatchNotifications(req.OperatorName, document, requests); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":         "Failed to deliver notification emails. Check the signer addresses.",
			"request_count": len(requests),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Signature requests created successfully",
		"request_count": len(requests),
	})
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

func (sr *SignatureRequestRoutes) cancelSignatureRequestsHandler(c *gin.Context) {
	sr.transitionHandler(c, "cancel")
}

func (sr *SignatureRequestRoutes) rejectSignatureRequestsHandler(c *gin.Context) {
	sr.transitionHandler(c, "reject")
}

func (sr *SignatureRequestRoutes) transitionHandler(c *gin.Context, action string) {
	documentID, err := uuid.Parse(c.Param("documentID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document ID"})
		return
	}

	var req ReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A reason is required"})
		return
	}

	service := sr.server.GetSigning()

	var found bool
	if action == "cancel" {
		found, err = service.Cancel(documentID, reason)
	} else {
		found, err = service.Reject(documentID, reason)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update signature requests"})
		return
	}

	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "No signature requests found for this document"})
		return
	}

	if action == "cancel" {
		c.JSON(http.StatusOK, gin.H{"message": "Signature requests cancelled"})
	} else {
		c.JSON(http.StatusOK, gin.H{"message": "Signature requests rejected"})
	}
}

func (sr *SignatureRequestRoutes) checkTokenHandler(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid signature request"})
		return
	}

	_, err := sr.server.GetGateway().CheckToken(token)
	if err != nil {
		var stateErr *signing.StateError
		switch {
		case errors.Is(err, signing.ErrTokenNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Invalid signature request"})
		case errors.Is(err, signing.ErrTokenExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Signature request has expired"})
		case errors.As(err, &stateErr):
			c.JSON(http.StatusForbidden, gin.H{
				"error":  "Signature request cannot proceed in its current state",
				"status": stateErr.Status.Code(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check signature request"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Signature request is valid"})
}

type ValidateRequest struct {
	Token string `json:"token" binding:"required"`
	Email string `json:"email" binding:"required"`
}

func (sr *SignatureRequestRoutes) validateSignatureRequestHandler(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := sr.server.GetGateway().Validate(req.Token, req.Email)
	if err != nil {
		if errors.Is(err, signing.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid request"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate signature request"})
		return
	}

	c.JSON(http.StatusOK, result)
}

type CompleteRequest struct {
	Token string `json:"token" binding:"required"`
}

func (sr *SignatureRequestRoutes) completeSignatureRequestHandler(c *gin.Context) {
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := sr.server.GetSigning().Complete(req.Token)
	if err != nil {
		var stateErr *signing.StateError
		switch {
		case errors.Is(err, signing.ErrTokenNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Invalid signature request"})
		case errors.Is(err, signing.ErrTokenExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Signature request has expired"})
		case errors.As(err, &stateErr):
			c.JSON(http.StatusForbidden, gin.H{
				"error":  "Signature request cannot proceed in its current state",
				"status": stateErr.Status.Code(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to complete signature request"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Signature recorded",
		"document_id": request.DocumentID,
	})
}

type ResendRequest struct {
	OperatorName string `json:"operator_name" binding:"required"`
}

func (sr *SignatureRequestRoutes) resendNotificationsHandler(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("documentID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document ID"})
		return
	}

	var req ResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sent, err := sr.server.GetSigning().ResendNotifications(documentID, req.OperatorName)
	if err != nil {
		switch {
		case errors.Is(err, signing.ErrDocumentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		case errors.Is(err, signing.ErrDeliveryFailed):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to deliver notification emails"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resend notifications"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Notifications resent",
		"sent_count": sent,
	})
}

func (sr *SignatureRequestRoutes) statusSummaryHandler(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("documentID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document ID"})
		return
	}

	counts, err := sr.server.GetSQL().DocumentStatusCounts(documentID.String())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch status summary"})
		return
	}

	if len(counts) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No signature requests found for this document"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document_id": documentID,
		"statuses":    counts,
	})
}
