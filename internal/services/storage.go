package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
	"github.com/MLSAKIIT/Showcase/internal/config"
)

var ErrObjectNotFound = errors.New("stored object not found")

// AllowedResumeTypes maps accepted extensions to the MIME type sent to the model.
var AllowedResumeTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

type StoredFile struct {
	Key          string
	OriginalName string
	MimeType     string
	Size         int64
}

// StorageService keeps uploaded resumes until the pipeline has read them.
type StorageService interface {
	SaveFile(ctx context.Context, file *multipart.FileHeader) (*StoredFile, error)
	Load(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
}

// NewStorageService picks the backend named in the configuration.
func NewStorageService(ctx context.Context, cfg config.StorageConfig) (StorageService, error) {
	switch cfg.Backend {
	case "", "local":
		s := &localStorage{uploadPath: cfg.UploadPath, maxSize: cfg.MaxFileSize}
		if err := s.EnsureUploadDir(); err != nil {
			return nil, err
		}
		return s, nil
	case "minio":
		return newMinIOStorage(ctx, cfg)
	default:
		return nil, apperrors.Configuration(fmt.Sprintf("unknown storage backend %q", cfg.Backend))
	}
}

// validateUpload checks extension and size and returns the key to store under.
func validateUpload(file *multipart.FileHeader, maxSize int64) (*StoredFile, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	mimeType, ok := AllowedResumeTypes[ext]
	if !ok {
		return nil, apperrors.FileValidation(
			fmt.Sprintf("Invalid file extension: %s. Allowed: pdf, png, jpg, jpeg, webp", ext),
			file.Filename, ext, 0)
	}
	if file.Size == 0 {
		return nil, apperrors.FileValidation("Uploaded file is empty", file.Filename, ext, 0)
	}
	if maxSize > 0 && file.Size > maxSize {
		return nil, apperrors.FileValidation(
			fmt.Sprintf("File too large. Maximum size is %d bytes", maxSize),
			file.Filename, ext, maxSize)
	}

	return &StoredFile{
		Key:          fmt.Sprintf("resume_%s%s", uuid.New().String(), ext),
		OriginalName: file.Filename,
		MimeType:     mimeType,
		Size:         file.Size,
	}, nil
}

type localStorage struct {
	uploadPath string
	maxSize    int64
}

func (s *localStorage) EnsureUploadDir() error {
	if err := os.MkdirAll(s.uploadPath, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	return nil
}

func (s *localStorage) SaveFile(_ context.Context, file *multipart.FileHeader) (*StoredFile, error) {
	stored, err := validateUpload(file, s.maxSize)
	if err != nil {
		return nil, err
	}

	// Open source file
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	// Create destination file
	dst, err := os.Create(s.path(stored.Key))
	if err != nil {
		return nil, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	return stored, nil
}

func (s *localStorage) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (s *localStorage) DeleteFile(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *localStorage) path(key string) string {
	return filepath.Join(s.uploadPath, filepath.Base(key))
}

type minioStorage struct {
	client  *minio.Client
	bucket  string
	maxSize int64
}

func newMinIOStorage(ctx context.Context, cfg config.StorageConfig) (*minioStorage, error) {
	mc := cfg.MinIO
	client, err := minio.New(mc.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(mc.AccessKeyID, mc.SecretAccessKey, ""),
		Secure: mc.UseSSL,
		Region: mc.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, mc.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", mc.Bucket, err)
	}
	if !exists {
		if !mc.AutoCreateBucket {
			return nil, fmt.Errorf("bucket %q does not exist (auto create disabled)", mc.Bucket)
		}
		if err := client.MakeBucket(ctx, mc.Bucket, minio.MakeBucketOptions{Region: mc.Region}); err != nil {
			return nil, fmt.Errorf("make bucket %q: %w", mc.Bucket, err)
		}
	}

	return &minioStorage{client: client, bucket: mc.Bucket, maxSize: cfg.MaxFileSize}, nil
}

func (s *minioStorage) SaveFile(ctx context.Context, file *multipart.FileHeader) (*StoredFile, error) {
	stored, err := validateUpload(file, s.maxSize)
	if err != nil {
		return nil, err
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	opts := minio.PutObjectOptions{ContentType: stored.MimeType}
	if _, err := s.client.PutObject(ctx, s.bucket, stored.Key, src, file.Size, opts); err != nil {
		return nil, fmt.Errorf("put object %q: %w", stored.Key, err)
	}
	return stored, nil
}

func (s *minioStorage) Load(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, obj); err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("read object %q: %w", key, err)
	}
	return buf.Bytes(), nil
}

// DeleteFile treats a missing object as already deleted.
func (s *minioStorage) DeleteFile(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		switch strings.ToLower(minioErr.Code) {
		case "nosuchkey", "notfound":
			return true
		}
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "nosuchkey") || strings.Contains(lower, "specified key does not exist")
}
