// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/hugoapp/hugo-backend/internal/config"
)

// StorageService stores dispute evidence files in S3. Evidence stays private;
// operators fetch it through presigned URLs.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

const (
	evidenceFolder  = "dispute-evidence"
	evidenceMaxSize = 10 * 1024 * 1024 // 10MB
	evidenceLinkTTL = 15 * time.Minute
)

var evidenceAllowedTypes = []string{".jpg", ".jpeg", ".png", ".pdf"}

func NewStorageService(config *config.Config) (*StorageService, error) {
	if config.AWS.AccessKeyID == "" {
		// Return service without S3 for local development
		return &StorageService{config: config}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(config.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			config.AWS.AccessKeyID,
			config.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   config,
	}, nil
}

// UploadEvidence stores one dispute evidence file and returns its location.
func (s *StorageService) UploadEvidence(file multipart.File, header *multipart.FileHeader) (*UploadResult, error) {
	if header.Size > evidenceMaxSize {
		return nil, fmt.Errorf("file size %d bytes exceeds maximum allowed size %d bytes", header.Size, int64(evidenceMaxSize))
	}

	fileExt := strings.ToLower(filepath.Ext(header.Filename))
	allowed := false
	for _, allowedType := range evidenceAllowedTypes {
		if fileExt == allowedType {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("file type %s is not allowed", fileExt)
	}

	key := s.generateFileName(header.Filename)

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if s.s3Client == nil {
		// Local development: no object store, just hand back a stable key.
		return &UploadResult{
			URL:      fmt.Sprintf("http://localhost:8080/uploads/%s", key),
			Key:      key,
			Size:     int64(len(fileBytes)),
			MimeType: header.Header.Get("Content-Type"),
		}, nil
	}

	_, err = s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(fileBytes),
		ContentType:   aws.String(header.Header.Get("Content-Type")),
		ContentLength: aws.Int64(int64(len(fileBytes))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		URL: fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s",
			s.config.AWS.S3Bucket, s.config.AWS.Region, key),
		Key:      key,
		Size:     int64(len(fileBytes)),
		MimeType: header.Header.Get("Content-Type"),
	}, nil
}

// EvidenceLink returns a fetchable link for a stored evidence key. With S3
// configured the link is presigned and short-lived; in local development it is
// the static upload path.
func (s *StorageService) EvidenceLink(key string) (string, error) {
	if s.s3Client == nil {
		return fmt.Sprintf("http://localhost:8080/uploads/%s", key), nil
	}
	return s.GeneratePresignedURL(key, evidenceLinkTTL)
}

// GeneratePresignedURL creates a time-limited link for operators reviewing a
// dispute.
func (s *StorageService) GeneratePresignedURL(key string, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		return "", fmt.Errorf("S3 client not configured")
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return url, nil
}

func (s *StorageService) generateFileName(originalName string) string {
	id := uuid.New()
	ext := filepath.Ext(originalName)
	timestamp := time.Now().Format("20060102")
	return fmt.Sprintf("%s/%s_%s%s", evidenceFolder, timestamp, id.String()[:8], ext)
}
