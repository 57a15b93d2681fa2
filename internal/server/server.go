package server

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"signflow/internal/database"
	"signflow/internal/mail"
	"signflow/internal/models"
	"signflow/internal/signing"
	"signflow/internal/storage"
)

type Server struct {
	port      int
	sqlDB     database.Service
	db        *models.DB
	signing   *signing.Service
	gateway   *signing.Gateway
	s3Service *storage.S3Service
}

func (s *Server) GetDB() *models.DB {
	return s.db
}

func (s *Server) GetSQL() database.Service {
	return s.sqlDB
}

func (s *Server) GetSigning() *signing.Service {
	return s.signing
}

func (s *Server) GetGateway() *signing.Gateway {
	return s.gateway
}

func (s *Server) GetS3Service() *storage.S3Service {
	return s.s3Service
}

func NewServer() *http.Server {
	port, _ := strconv.Atoi(os.Getenv("PORT"))

	sqlDB := database.New()
	if err := sqlDB.RunMigrations(); err != nil {
		log.Printf("Warning: migrations failed: %v", err)
	}

	db, err := models.NewDB()
	if err != nil {
		log.Fatalf("Failed to initialize models: %v", err)
	}

	s3Service, err := storage.NewS3Service()
	if err != nil {
		log.Fatalf("Failed to initialize S3 service: %v", err)
	}

	mailService, err := mail.New()
	if err != nil {
		log.Fatalf("Failed to initialize mail service: %v", err)
	}

	NewServer := &Server{
		port:      port,
		sqlDB:     sqlDB,
		db:        db,
		signing:   signing.NewService(db, mailService),
		gateway:   signing.NewGateway(db),
		s3Service: s3Service,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
