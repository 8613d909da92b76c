package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/yourusername/account-api/internal/config"
)

// UploadedAsset is a durably stored object and its public address.
type UploadedAsset struct {
	Key string
	URL string
}

// AssetService stores and removes user uploaded binary assets.
type AssetService interface {
	Upload(ctx context.Context, data []byte, contentType string) (*UploadedAsset, error)
	Destroy(ctx context.Context, key string) error
}

// NoopAssetService is used when asset storage is disabled.
type NoopAssetService struct{}

func (s *NoopAssetService) Upload(ctx context.Context, data []byte, contentType string) (*UploadedAsset, error) {
	log.Printf("[AssetService] noop upload size=%d", len(data))
	return &UploadedAsset{}, nil
}

func (s *NoopAssetService) Destroy(ctx context.Context, key string) error {
	log.Printf("[AssetService] noop destroy key=%s", key)
	return nil
}

// S3AssetService stores assets in an S3 compatible bucket.
type S3AssetService struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

func NewS3AssetService(cfg config.StorageConfig) (*S3AssetService, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("storage credentials are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	publicBaseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3AssetService{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: publicBaseURL,
	}, nil
}

func (s *S3AssetService) Upload(ctx context.Context, data []byte, contentType string) (*UploadedAsset, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty asset payload")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := profileImageKey()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload asset: %w", err)
	}

	return &UploadedAsset{
		Key: key,
		URL: fmt.Sprintf("%s/%s", s.publicBaseURL, key),
	}, nil
}

func (s *S3AssetService) Destroy(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

func profileImageKey() string {
	d := time.Now()
	return fmt.Sprintf("profile-images/%d/%02d/%02d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}
