package models

import (
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection and all model managers
type DB struct {
	*gorm.DB
	Documents         *DocumentManager
	SignatureRequests *SignatureRequestManager
	SignatureRegions  *SignatureRegionManager
}

// NewDB creates a new database connection and initializes all managers
func NewDB() (*DB, error) {
	dsn := os.Getenv("DB_STRING")
	if dsn == "" {
		return nil, fmt.Errorf("DB_STRING environment variable not set")
	}

	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	gormDB, err := gorm.Open(postgres.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := Wrap(gormDB)

	// Auto-migrate models (optional, can be disabled in production)
	if err := db.AutoMigrate(); err != nil {
		log.Printf("Warning: AutoMigrate failed: %v", err)
	}

	return db, nil
}

// Wrap builds a DB with managers around an existing gorm handle
func Wrap(gormDB *gorm.DB) *DB {
	return &DB{
		DB:                gormDB,
		Documents:         NewDocumentManager(gormDB),
		SignatureRequests: NewSignatureRequestManager(gormDB),
		SignatureRegions:  NewSignatureRegionManager(gormDB),
	}
}

// AutoMigrate runs GORM auto-migration for all models
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&Document{},
		&SignatureRequest{},
		&SignatureRegion{},
	)
}

// Transaction runs a function within a database transaction. Managers
// on the passed DB operate on the transaction handle.
func (db *DB) Transaction(fn func(*DB) error) error {
	return db.DB.Transaction(func(tx *gorm.DB) error {
		return fn(Wrap(tx))
	})
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
