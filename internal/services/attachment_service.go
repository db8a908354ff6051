package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "github.com/garrettallen/cardboards/config"
)

var (
	// ErrAttachmentsDisabled is returned when no attachment bucket is configured
	ErrAttachmentsDisabled = errors.New("attachment storage is not configured")
	ErrAttachmentNotFound  = errors.New("attachment not found")
)

// Attachment describes a file stored for a card
type Attachment struct {
	URL        string    `json:"url"`
	Key        string    `json:"key"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ObjectStore is the subset of the S3 client used for attachments
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// AttachmentService stores card attachments
type AttachmentService interface {
	Upload(ctx context.Context, boardID, cardID string, file io.Reader, filename, contentType string, size int64) (*Attachment, error)
	Delete(ctx context.Context, boardID, cardID, key string) error
}

type attachmentService struct {
	store   ObjectStore
	bucket  string
	baseURL string
}

// NewAttachmentService creates an AttachmentService backed by S3-compatible storage
func NewAttachmentService(ctx context.Context, cfg *appconfig.Config) (AttachmentService, error) {
	if !cfg.AttachmentsEnabled() {
		return nil, ErrAttachmentsDisabled
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AttachmentStorageRegion),
	}
	if cfg.AttachmentStorageKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AttachmentStorageKey,
			cfg.AttachmentStorageSecret,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := cfg.AttachmentStorageEndpoint
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(endpoint))
			o.UsePathStyle = true
		}
	})

	baseURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.AttachmentStorageBucket, cfg.AttachmentStorageRegion)
	if endpoint != "" {
		baseURL = fmt.Sprintf("%s/%s", endpointURL(endpoint), cfg.AttachmentStorageBucket)
	}

	return NewAttachmentServiceWithStore(client, cfg.AttachmentStorageBucket, baseURL), nil
}

// NewAttachmentServiceWithStore creates an AttachmentService over an existing store
func NewAttachmentServiceWithStore(store ObjectStore, bucket, baseURL string) AttachmentService {
	return &attachmentService{
		store:   store,
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func endpointURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return strings.TrimSuffix(endpoint, "/")
	}
	return "https://" + strings.TrimSuffix(endpoint, "/")
}

// Upload stores a file under boards/<board>/cards/<card>/ with a unique name
func (s *attachmentService) Upload(ctx context.Context, boardID, cardID string, file io.Reader, filename, contentType string, size int64) (*Attachment, error) {
	key := fmt.Sprintf("%s%s%s", cardPrefix(boardID, cardID), uuid.NewString(), strings.ToLower(filepath.Ext(filename)))

	_, err := s.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload attachment: %w", err)
	}

	return &Attachment{
		URL:        fmt.Sprintf("%s/%s", s.baseURL, key),
		Key:        key,
		Filename:   filename,
		Size:       size,
		MimeType:   contentType,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// Delete removes a stored attachment of the card
func (s *attachmentService) Delete(ctx context.Context, boardID, cardID, key string) error {
	if !strings.HasPrefix(key, cardPrefix(boardID, cardID)) {
		return fmt.Errorf("%w: %s is not stored for card %s", ErrAttachmentNotFound, key, cardID)
	}

	_, err := s.store.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

func cardPrefix(boardID, cardID string) string {
	return fmt.Sprintf("boards/%s/cards/%s/", boardID, cardID)
}
