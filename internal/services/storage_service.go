// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/shareview/insights-backend/internal/config"
	"github.com/shareview/insights-backend/internal/models"
	"github.com/shareview/insights-backend/internal/utils"
)

// ReportArchive stores an immutable copy of a report as it was published.
type ReportArchive interface {
	Archive(ctx context.Context, report *models.Report, insights []models.Insight) (string, error)
	URL(key string, expiration time.Duration) (string, error)
}

// ArchivedReport is the document written for each published report.
type ArchivedReport struct {
	Report     *models.Report   `json:"report"`
	Insights   []models.Insight `json:"insights"`
	ArchivedAt time.Time        `json:"archived_at"`
}

type StorageService struct {
	s3Client *s3.S3
	config   config.AWSConfig
}

// NewStorageService returns an S3-backed archive when AWS credentials are
// configured, otherwise one that writes to the local archive directory.
func NewStorageService(cfg config.AWSConfig) (*StorageService, error) {
	if !cfg.S3Enabled() {
		return &StorageService{config: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

func (s *StorageService) Archive(ctx context.Context, report *models.Report, insights []models.Insight) (string, error) {
	body, err := json.MarshalIndent(ArchivedReport{
		Report:     report,
		Insights:   insights,
		ArchivedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report archive: %w", err)
	}

	key := s.archiveKey(report)
	if s.s3Client != nil {
		return key, s.uploadToS3(ctx, key, body)
	}
	return key, s.writeLocal(key, body)
}

func (s *StorageService) archiveKey(report *models.Report) string {
	return fmt.Sprintf("%s/%s/%s/%s.json",
		s.config.ArchivePrefix,
		report.RetailerID,
		report.PeriodStart.Format(utils.DateLayout),
		report.ID,
	)
}

func (s *StorageService) uploadToS3(ctx context.Context, key string, body []byte) error {
	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload report archive: %w", err)
	}
	return nil
}

func (s *StorageService) writeLocal(key string, body []byte) error {
	if s.config.LocalArchiveDir == "" {
		return fmt.Errorf("no report archive destination configured")
	}
	path := filepath.Join(s.config.LocalArchiveDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write report archive: %w", err)
	}
	return nil
}

// URL returns a presigned download link, or the local file path when S3 is
// not configured.
func (s *StorageService) URL(key string, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		return filepath.Join(s.config.LocalArchiveDir, filepath.FromSlash(key)), nil
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url, nil
}
