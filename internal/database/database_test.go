package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// mustStartPostgresContainer starts a postgres container and returns a
// teardown function, a connection string, and an error.
func mustStartPostgresContainer() (func(context.Context, ...testcontainers.TerminateOption) error, string, error) {
	var (
		dbName = "test_db"
		dbPwd  = "password"
		dbUser = "user"
	)

	dbContainer, err := postgres.Run(
		context.Background(),
		"postgres:latest",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPwd),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := dbContainer.Host(context.Background())
	if err != nil {
		return dbContainer.Terminate, "", fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := dbContainer.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		return dbContainer.Terminate, "", fmt.Errorf("failed to get container mapped port: %w", err)
	}

	connStr := fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPwd, host, port.Port(), dbName)

	return dbContainer.Terminate, connStr, nil
}

func TestMain(m *testing.M) {
	teardown, testDbString, err := mustStartPostgresContainer()
	if err != nil {
		log.Fatalf("could not start postgres container for tests: %v", err)
	}

	if err := os.Setenv("DB_STRING", testDbString); err != nil {
		log.Fatalf("failed to set DB_STRING for tests: %v", err)
	}
	dbInstance = nil

	exitCode := m.Run()

	if teardown != nil {
		if err := teardown(context.Background()); err != nil {
			log.Fatalf("could not teardown postgres container: %v", err)
		}
	}
	os.Exit(exitCode)
}

func TestNew(t *testing.T) {
	srv := New()
	if srv == nil {
		t.Fatal("New() returned nil")
	}
}

func TestHealth(t *testing.T) {
	srv := New()

	stats := srv.Health()

	if stats["status"] != "up" {
		t.Fatalf("expected status to be up, got %s (error: %s)", stats["status"], stats["error"])
	}

	if errMsg, ok := stats["error"]; ok {
		t.Fatalf("expected error not to be present, got: %s", errMsg)
	}
}

func TestDocumentStatusCounts(t *testing.T) {
	srv := New()
	s := srv.(*service)

	// Minimal schema for the reporting query; the full schema lives in
	// migrations/ which is relative to the repository root.
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS signature_requests (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			document_id UUID NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending'
		)
	`)
	if err != nil {
		t.Fatalf("failed to create test table: %v", err)
	}

	documentID := "6b1c7297-5c4c-44e7-8b44-e3e7c3cbe2ee"
	inserts := []string{"pending", "pending", "cancelled"}
	for _, status := range inserts {
		if _, err := s.db.Exec(
			`INSERT INTO signature_requests (document_id, status) VALUES ($1::uuid, $2)`,
			documentID, status,
		); err != nil {
			t.Fatalf("failed to insert test row: %v", err)
		}
	}

	counts, err := srv.DocumentStatusCounts(documentID)
	if err != nil {
		t.Fatalf("DocumentStatusCounts failed: %v", err)
	}
	if counts["pending"] != 2 || counts["cancelled"] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}

	counts, err = srv.DocumentStatusCounts("00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("DocumentStatusCounts failed: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("expected empty counts for unknown document, got %v", counts)
	}
}
