// Package storage persists raw document bytes in S3-compatible object
// storage under collision-free names.
package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

type S3Service struct {
	client        *s3.Client
	uploader      *manager.Uploader
	downloader    *manager.Downloader
	bucket        string
	region        string
	encryptionKey []byte // 32-byte AES-256 key
}

type UploadResult struct {
	StoredName string
	Bucket     string
	FileHash   string // SHA-256 hash of original file
	FileSize   int64
	MimeType   string
	UploadedAt time.Time
}

type DownloadResult struct {
	Data     []byte
	FileHash string
	FileSize int64
	MimeType string
}

// NewS3Service creates a new S3 service instance with MinIO support
func NewS3Service() (*S3Service, error) {
	bucket := os.Getenv("AWS_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET environment variable is required")
	}

	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1" // default region
	}

	encryptionKeyHex := os.Getenv("DOCUMENT_ENCRYPTION_KEY")
	if encryptionKeyHex == "" {
		return nil, fmt.Errorf("DOCUMENT_ENCRYPTION_KEY environment variable is required (64 hex characters)")
	}

	encryptionKey, err := hex.DecodeString(encryptionKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key format: %w", err)
	}

	if len(encryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (64 hex characters)")
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client with custom endpoint for MinIO
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		endpointURL := os.Getenv("AWS_ENDPOINT_URL")
		if endpointURL != "" {
			o.BaseEndpoint = aws.String(endpointURL)
			o.UsePathStyle = true // MinIO requires path-style addressing
		}
	})

	return &S3Service{
		client:        client,
		uploader:      manager.NewUploader(client),
		downloader:    manager.NewDownloader(client),
		bucket:        bucket,
		region:        region,
		encryptionKey: encryptionKey,
	}, nil
}

// UniqueFileName derives a collision-free stored name from the
// uploaded file name by inserting a random UUID before the extension.
func UniqueFileName(originalName string) string {
	ext := filepath.Ext(originalName)
	base := strings.TrimSuffix(originalName, ext)
	return base + "-" + uuid.New().String() + ext
}

// UploadDocument encrypts and stores document bytes, returning the
// generated object name.
func (s *S3Service) UploadDocument(ctx context.Context, fileData []byte, originalName string, documentID uuid.UUID) (*UploadResult, error) {
	if !strings.HasSuffix(strings.ToLower(originalName), ".pdf") {
		return nil, fmt.Errorf("only PDF files are allowed")
	}

	// Calculate hash of original file
	hash := sha256.Sum256(fileData)
	fileHash := hex.EncodeToString(hash[:])

	encryptedData, err := s.encryptData(fileData)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt file: %w", err)
	}

	storedName := fmt.Sprintf("documents/%s/%s", documentID.String(), UniqueFileName(originalName))

	uploadInput := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(storedName),
		Body:        bytes.NewReader(encryptedData),
		ContentType: aws.String("application/pdf"),
		Metadata: map[string]string{
			"original-filename": originalName,
			"document-id":       documentID.String(),
			"original-hash":     fileHash,
			"encrypted":         "true",
		},
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	}

	_, err = s.uploader.Upload(ctx, uploadInput)
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		StoredName: storedName,
		Bucket:     s.bucket,
		FileHash:   fileHash,
		FileSize:   int64(len(fileData)),
		MimeType:   "application/pdf",
		UploadedAt: time.Now().UTC(),
	}, nil
}

// DownloadDocument downloads and decrypts a stored document
func (s *S3Service) DownloadDocument(ctx context.Context, storedName string) (*DownloadResult, error) {
	buf := manager.NewWriteAtBuffer([]byte{})

	_, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storedName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}

	decryptedData, err := s.decryptData(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt file: %w", err)
	}

	hash := sha256.Sum256(decryptedData)
	fileHash := hex.EncodeToString(hash[:])

	return &DownloadResult{
		Data:     decryptedData,
		FileHash: fileHash,
		FileSize: int64(len(decryptedData)),
		MimeType: "application/pdf",
	}, nil
}

// GeneratePresignedURL generates a presigned URL for temporary access
func (s *S3Service) GeneratePresignedURL(ctx context.Context, storedName string, expiration time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)

	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storedName),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiration
	})

	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return request.URL, nil
}

// DeleteDocument deletes a stored document
func (s *S3Service) DeleteDocument(ctx context.Context, storedName string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storedName),
	})

	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}

	return nil
}

// DocumentExists checks if a stored document exists
func (s *S3Service) DocumentExists(ctx context.Context, storedName string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storedName),
	})

	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}

	return true, nil
}

// ValidateFileIntegrity validates a file against its stored hash
func (s *S3Service) ValidateFileIntegrity(data []byte, expectedHash string) error {
	hash := sha256.Sum256(data)
	actualHash := hex.EncodeToString(hash[:])

	if actualHash != expectedHash {
		return fmt.Errorf("file integrity check failed: expected %s, got %s", expectedHash, actualHash)
	}

	return nil
}

// encryptData encrypts data using AES-256-GCM
func (s *S3Service) encryptData(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, data, nil)
	return ciphertext, nil
}

// decryptData decrypts data using AES-256-GCM
func (s *S3Service) decryptData(encryptedData []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(encryptedData) < nonceSize {
		return nil, fmt.Errorf("encrypted data too short")
	}

	nonce, ciphertext := encryptedData[:nonceSize], encryptedData[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}

	return plaintext, nil
}
