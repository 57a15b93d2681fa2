package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"signflow/internal/database"
	"signflow/internal/models"
	"signflow/internal/signing"
	"signflow/internal/storage"
)

var testDSN string

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:latest",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		log.Fatalf("could not start postgres container for tests: %v", err)
	}

	host, err := dbContainer.Host(context.Background())
	if err != nil {
		log.Fatalf("failed to get container host: %v", err)
	}
	port, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		log.Fatalf("failed to get container mapped port: %v", err)
	}
	testDSN = fmt.Sprintf("postgresql://user:password@%s:%s/test_db?sslmode=disable", host, port.Port())

	exitCode := m.Run()

	if err := dbContainer.Terminate(context.Background()); err != nil {
		log.Fatalf("could not teardown postgres container: %v", err)
	}
	os.Exit(exitCode)
}

type fakeNotifier struct {
	err  error
	sent int
}

func (f *fakeNotifier) SendSignatureRequests(operatorName, requestName string, requests []models.SignatureRequest) error {
	if f.err != nil {
		return f.err
	}
	f.sent += len(requests)
	return nil
}

// fakeSQL satisfies database.Service on top of the gorm handle so the
// handlers under test need no second connection.
type fakeSQL struct {
	db *models.DB
}

func (f *fakeSQL) Health() map[string]string { return map[string]string{"status": "up"} }
func (f *fakeSQL) RunMigrations() error      { return nil }
func (f *fakeSQL) Close() error              { return nil }

func (f *fakeSQL) DocumentStatusCounts(documentID string) (map[string]int, error) {
	rows, err := f.db.Raw(
		"SELECT status, COUNT(*) FROM signature_requests WHERE document_id = ?::uuid GROUP BY status",
		documentID,
	).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

type testServer struct {
	db       *models.DB
	signing  *signing.Service
	gateway  *signing.Gateway
	notifier *fakeNotifier
}

func (s *testServer) GetDB() *models.DB                { return s.db }
func (s *testServer) GetSQL() database.Service         { return &fakeSQL{db: s.db} }
func (s *testServer) GetSigning() *signing.Service     { return s.signing }
func (s *testServer) GetGateway() *signing.Gateway     { return s.gateway }
func (s *testServer) GetS3Service() *storage.S3Service { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *testServer) {
	t.Helper()

	gormDB, err := gorm.Open(gormpostgres.Open(testDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	db := models.Wrap(gormDB)
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	notifier := &fakeNotifier{}
	server := &testServer{
		db:       db,
		signing:  signing.NewService(db, notifier),
		gateway:  signing.NewGateway(db),
		notifier: notifier,
	}

	r := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	r.Use(sessions.Sessions("signflow-session", store))
	NewSignatureRequestRoutes(server).RegisterRoutes(r)
	return r, server
}

func createTestDocument(t *testing.T, db *models.DB, name string) *models.Document {
	t.Helper()

	doc := &models.Document{
		StoredName:   name + "-stored.pdf",
		OriginalName: name + ".pdf",
		RequestName:  "Review " + name,
	}
	if err := db.Documents.Create(doc); err != nil {
		t.Fatalf("failed to create test document: %v", err)
	}
	return doc
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func requestBody(doc *models.Document) gin.H {
	return gin.H{
		"document_id":   doc.ID,
		"operator_name": "Operator",
		"signers": []gin.H{
			{
				"email": "a@x.com",
				"name":  "Alice",
				"fields": []gin.H{
					{"type": "signature", "page_number": 1, "x": 50, "y": 700, "width": 120, "height": 40},
				},
			},
		},
	}
}

func TestSendSignatureRequestHandler(t *testing.T) {
	r, server := newTestRouter(t)
	doc := createTestDocument(t, server.db, "send")

	w := doJSON(r, http.MethodPost, "/signature-requests/request", requestBody(doc))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if server.notifier.sent != 1 {
		t.Errorf("expected 1 notification, got %d", server.notifier.sent)
	}
}

func TestSendSignatureRequestDocumentMissing(t *testing.T) {
	r, _ := newTestRouter(t)

	body := gin.H{
		"document_id":   "6b1c7297-5c4c-44e7-8b44-e3e7c3cbe2ee",
		"operator_name": "Operator",
		"signers":       []gin.H{{"email": "a@x.com", "name": "Alice"}},
	}
	w := doJSON(r, http.MethodPost, "/signature-requests/request", body)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSendSignatureRequestDeliveryFailure(t *testing.T) {
	r, server := newTestRouter(t)
	doc := createTestDocument(t, server.db, "delivery")
	server.notifier.err = errors.New("smtp unavailable")

	w := doJSON(r, http.MethodPost, "/signature-requests/request", requestBody(doc))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}

	// The batch must have been committed despite the delivery failure
	requests, _ := server.db.SignatureRequests.ListByDocument(doc.ID)
	if len(requests) != 1 {
		t.Errorf("expected committed request after delivery failure, got %d", len(requests))
	}
}

func TestCancelHandler(t *testing.T) {
	r, server := newTestRouter(t)
	doc := createTestDocument(t, server.db, "cancel")

	if _, _, err := server.signing.CreateRequests(doc.ID, []signing.SignerInput{
		{Email: "a@x.com", Name: "Alice"},
	}); err != nil {
		t.Fatalf("CreateRequests failed: %v", err)
	}

	// Empty reason
	w := doJSON(r, http.MethodPut, "/signature-requests/cancel/"+doc.ID.String(), gin.H{"reason": "  "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty reason, got %d", w.Code)
	}

	// Unknown document
	w = doJSON(r, http.MethodPut, "/signature-requests/cancel/6b1c7297-5c4c-44e7-8b44-e3e7c3cbe2ee", gin.H{"reason": "why"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown document, got %d", w.Code)
	}

	w = doJSON(r, http.MethodPut, "/signature-requests/cancel/"+doc.ID.String(), gin.H{"reason": "no longer needed"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	requests, _ := server.db.SignatureRequests.ListByDocument(doc.ID)
	if requests[0].Status != models.StatusCancelled {
		t.Errorf("expected cancelled, got %s", requests[0].Status)
	}
}

func TestRejectHandler(t *testing.T) {
	r, server := newTestRouter(t)
	doc := createTestDocument(t, server.db, "reject")

	if _, _, err := server.signing.CreateRequests(doc.ID, []signing.SignerInput{
		{Email: "a@x.com", Name: "Alice"},
	}); err != nil {
		t.Fatalf("CreateRequests failed: %v", err)
	}

	w := doJSON(r, http.MethodPut, "/signature-requests/reject/"+doc.ID.String(), gin.H{"reason": "wrong signer"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	requests, _ := server.db.SignatureRequests.ListByDocument(doc.ID)
	if requests[0].Status != models.StatusRejected {
		t.Errorf("expected rejected, got %s", requests[0].Status)
	}
}

func TestCheckTokenHandler(t *testing.T) {
	r, server := newTestRouter(t)
	doc := createTestDocument(t, server.db, "check")

	// Unknown token
	w := doJSON(r, http.MethodGet, "/signature-requests/check?token=missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	// Expired request, even a terminal one, reports expiry
	expired := &models.SignatureRequest{
		DocumentID:  doc.ID,
		SignerEmail: "expired@x.com",
		SignerName:  "Expired",
		Status:      models.StatusCancelled,
		ExpiredAt:   time.Now().Add(-time.Second),
	}
	if err := server.db.SignatureRequests.Create(expired); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w = doJSON(r, http.MethodGet, "/signature-requests/check?token="+expired.Token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired request, got %d", w.Code)
	}

	// Terminal but unexpired request reports its numeric status
	cancelled := &models.SignatureRequest{
		DocumentID:  doc.ID,
		SignerEmail: "cancelled@x.com",
		SignerName:  "Cancelled",
		Status:      models.StatusCancelled,
	}
	if err := server.db.SignatureRequests.Create(cancelled); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w = doJSON(r, http.MethodGet, "/signature-requests/check?token="+cancelled.Token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cancelled request, got %d", w.Code)
	}
	var resp struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != models.StatusCancelled.Code() {
		t.Errorf("expected status code %d, got %d", models.StatusCancelled.Code(), resp.Status)
	}

	// Valid pending request
	pending := &models.SignatureRequest{
		DocumentID:  doc.ID,
		SignerEmail: "pending@x.com",
		SignerName:  "Pending",
	}
	if err := server.db.SignatureRequests.Create(pending); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w = doJSON(r, http.MethodGet, "/signature-requests/check?token="+pending.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for pending request, got %d", w.Code)
	}
}

func TestValidateHandler(t *testing.T) {
	r, server := newTestRouter(t)
	doc := createTestDocument(t, server.db, "validate")

	req := &models.SignatureRequest{
		DocumentID:  doc.ID,
		SignerEmail: "a@x.com",
		SignerName:  "Alice",
	}
	if err := server.db.SignatureRequests.Create(req); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	w := doJSON(r, http.MethodPost, "/signature-requests/validate", gin.H{"token": "missing", "email": "a@x.com"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/signature-requests/validate", gin.H{"token": req.Token, "email": "b@x.com"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for mismatched email, got %d", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/signature-requests/validate", gin.H{"token": req.Token, "email": "a@x.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		DocumentID   string `json:"documentId"`
		DocumentName string `json:"documentName"`
		SignerName   string `json:"signerName"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.DocumentID != doc.ID.String() {
		t.Errorf("expected document id %s, got %s", doc.ID, resp.DocumentID)
	}
	if resp.DocumentName != doc.OriginalName {
		t.Errorf("expected document name %q, got %q", doc.OriginalName, resp.DocumentName)
	}
	if resp.SignerName != "Alice" {
		t.Errorf("expected signer name Alice, got %q", resp.SignerName)
	}
}

func TestCompleteHandler(t *testing.T) {
	r, server := newTestRouter(t)
	doc := createTestDocument(t, server.db, "complete")

	req := &models.SignatureRequest{
		DocumentID:  doc.ID,
		SignerEmail: "a@x.com",
		SignerName:  "Alice",
	}
	if err := server.db.SignatureRequests.Create(req); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	w := doJSON(r, http.MethodPut, "/signature-requests/complete", gin.H{"token": req.Token})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Completing twice reports the terminal state
	w = doJSON(r, http.MethodPut, "/signature-requests/complete", gin.H{"token": req.Token})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for repeated completion, got %d", w.Code)
	}
}

func TestStatusSummaryHandler(t *testing.T) {
	r, server := newTestRouter(t)
	doc := createTestDocument(t, server.db, "summary")

	w := doJSON(r, http.MethodGet, "/signature-requests/status/"+doc.ID.String(), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for document without requests, got %d", w.Code)
	}

	if _, _, err := server.signing.CreateRequests(doc.ID, []signing.SignerInput{
		{Email: "a@x.com", Name: "Alice"},
		{Email: "b@x.com", Name: "Bob"},
	}); err != nil {
		t.Fatalf("CreateRequests failed: %v", err)
	}

	w = doJSON(r, http.MethodGet, "/signature-requests/status/"+doc.ID.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Statuses map[string]int `json:"statuses"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Statuses["pending"] != 2 {
		t.Errorf("expected 2 pending requests, got %d", resp.Statuses["pending"])
	}
}
