package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// StorageService keeps raw datasets: uploaded profile files and scrape
// results, archived per session.
type StorageService interface {
	ReadUpload(file *multipart.FileHeader) ([]byte, error)
	Archive(ctx context.Context, key string, data []byte) (string, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
}

var allowedUploadExtensions = map[string]bool{".json": true}

func readUpload(file *multipart.FileHeader, maxSize int64) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedUploadExtensions[ext] {
		return nil, fmt.Errorf("invalid file extension: %s", ext)
	}
	if maxSize > 0 && file.Size > maxSize {
		return nil, fmt.Errorf("file exceeds maximum size of %d bytes", maxSize)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	return data, nil
}

type localStorage struct {
	uploadPath  string
	maxFileSize int64
}

func NewLocalStorage(uploadPath string, maxFileSize int64) (StorageService, error) {
	if err := os.MkdirAll(uploadPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &localStorage{uploadPath: uploadPath, maxFileSize: maxFileSize}, nil
}

func (s *localStorage) ReadUpload(file *multipart.FileHeader) ([]byte, error) {
	return readUpload(file, s.maxFileSize)
}

func (s *localStorage) Archive(_ context.Context, key string, data []byte) (string, error) {
	path := filepath.Join(s.uploadPath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return key, nil
}

func (s *localStorage) Fetch(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.uploadPath, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

type R2Options struct {
	AccountID string
	Bucket    string
	AccessKey string
	SecretKey string
}

type r2Storage struct {
	client      *s3.Client
	bucket      string
	maxFileSize int64
}

// NewR2Storage archives to a Cloudflare R2 bucket through the S3 API.
func NewR2Storage(ctx context.Context, opts R2Options, maxFileSize int64) (StorageService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load r2 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", opts.AccountID))
	})

	return &r2Storage{client: client, bucket: opts.Bucket, maxFileSize: maxFileSize}, nil
}

func (s *r2Storage) ReadUpload(file *multipart.FileHeader) ([]byte, error) {
	return readUpload(file, s.maxFileSize)
}

func (s *r2Storage) Archive(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to r2: %w", key, err)
	}
	return key, nil
}

func (s *r2Storage) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from r2: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
