package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"signflow/internal/models"
)

type DocumentRoutes struct {
	server ServerInterface
}

func NewDocumentRoutes(server ServerInterface) *DocumentRoutes {
	return &DocumentRoutes{server: server}
}

func (dr *DocumentRoutes) RegisterRoutes(r *gin.Engine) {
	documents := r.Group("/documents")
	{
		documents.POST("", dr.uploadDocumentHandler)
		documents.GET("", dr.listDocumentsHandler)
		documents.GET("/:documentID", dr.getDocumentHandler)
		documents.GET("/:documentID/file", dr.downloadDocumentHandler)
		documents.DELETE("/:documentID", dr.deleteDocumentHandler)
	}
}

func (dr *DocumentRoutes) uploadDocumentHandler(c *gin.Context) {
	err := c.Request.ParseMultipartForm(32 << 20) // 32 MB max
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse form data"})
		return
	}

	requestName := c.PostForm("request_name")
	if requestName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request name is required"})
		return
	}

	file, header, err := c.Request.FormFile("pdf")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "PDF file is required"})
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF files are allowed"})
		return
	}

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	if len(fileBytes) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is empty"})
		return
	}

	documentID := uuid.New()
	s3Service := dr.server.GetS3Service()
	uploadResult, err := s3Service.UploadDocument(c.Request.Context(), fileBytes, header.Filename, documentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload PDF"})
		return
	}

	document := &models.Document{
		ID:           documentID,
		StoredName:   uploadResult.StoredName,
		OriginalName: header.Filename,
		RequestName:  requestName,
		FileSize:     uploadResult.FileSize,
		FileHash:     uploadResult.FileHash,
	}

	db := dr.server.GetDB()
	if err := db.Documents.Create(document); err != nil {
		// Clean up uploaded file if database creation fails
		s3Service.DeleteDocument(c.Request.Context(), uploadResult.StoredName)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create document"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Document created successfully",
		"document": gin.H{
			"id":            document.ID,
			"original_name": document.OriginalName,
			"request_name":  document.RequestName,
			"file_size":     document.FileSize,
			"created_at":    document.CreatedAt,
		},
	})
}

func (dr *DocumentRoutes) listDocumentsHandler(c *gin.Context) {
	db := dr.server.GetDB()
	documents, err := db.Documents.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": documents,
		"total":     len(documents),
	})
}

func (dr *DocumentRoutes) getDocumentHandler(c *gin.Context) {
	document, ok := dr.resolveDocument(c)
	if !ok {
		return
	}

	regions, err := dr.server.GetDB().SignatureRegions.ListByDocument(document.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch signature regions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document": document,
		"regions":  regions,
	})
}

func (dr *DocumentRoutes) downloadDocumentHandler(c *gin.Context) {
	document, ok := dr.resolveDocument(c)
	if !ok {
		return
	}

	result, err := dr.server.GetS3Service().DownloadDocument(c.Request.Context(), document.StoredName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to download document"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", document.OriginalName))
	c.Data(http.StatusOK, result.MimeType, result.Data)
}

func (dr *DocumentRoutes) deleteDocumentHandler(c *gin.Context) {
	document, ok := dr.resolveDocument(c)
	if !ok {
		return
	}

	// Remove the catalog record plus its requests and regions first,
	// then the stored object. A failed object delete leaves an orphan
	// in the bucket rather than dangling records.
	if err := dr.server.GetSigning().DeleteDocumentRecords(document.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete document"})
		return
	}

	if err := dr.server.GetS3Service().DeleteDocument(c.Request.Context(), document.StoredName); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Document records deleted but file cleanup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Document deleted successfully"})
}

func (dr *DocumentRoutes) resolveDocument(c *gin.Context) (*models.Document, bool) {
	documentID, err := uuid.Parse(c.Param("documentID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document ID"})
		return nil, false
	}

	document, err := dr.server.GetDB().Documents.Get(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch document"})
		return nil, false
	}

	return document, true
}
