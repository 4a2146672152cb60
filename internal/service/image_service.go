package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
	"github.com/noah-isme/ctp-api/pkg/storage"
)

const imageKeyPrefix = "images/"

// ImageConfig bounds uploads and signed URL lifetime.
type ImageConfig struct {
	MaxFileSizeBytes  int64
	AllowedExtensions []string
	SignedURLTTL      time.Duration
	Timeout           time.Duration
}

// ImageService validates and stores images in the configured object store.
type ImageService struct {
	store   storage.ObjectStore
	config  ImageConfig
	allowed map[string]struct{}
	metrics *MetricsService
	logger  *zap.Logger
}

// NewImageService builds an image service.
func NewImageService(store storage.ObjectStore, config ImageConfig, metrics *MetricsService, logger *zap.Logger) *ImageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 5 * 1024 * 1024
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{"jpg", "jpeg", "png", "webp"}
	}
	if config.SignedURLTTL <= 0 {
		config.SignedURLTTL = time.Hour
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	allowed := make(map[string]struct{}, len(config.AllowedExtensions))
	for _, ext := range config.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &ImageService{store: store, config: config, allowed: allowed, metrics: metrics, logger: logger}
}

// Upload validates size and extension, stores the blob under images/<uuid>.<ext> and
// returns a signed URL for it.
func (s *ImageService) Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (*models.ImageUpload, error) {
	if size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image is empty")
	}
	if size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("image exceeds maximum size of %d bytes", s.config.MaxFileSizeBytes))
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if _, ok := s.allowed[ext]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("extension %q is not allowed", ext))
	}
	if contentType == "" {
		contentType = "image/" + strings.Replace(ext, "jpg", "jpeg", 1)
	}

	key := imageKeyPrefix + uuid.NewString() + "." + ext
	putCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	err := s.store.Put(putCtx, key, contentType, io.LimitReader(body, s.config.MaxFileSizeBytes), size)
	s.metrics.RecordImageUpload(err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, appErrors.Internal(err, "image upload timed out")
		}
		return nil, appErrors.Internal(err, "failed to store image")
	}

	url, expiresAt, err := s.store.SignedURL(ctx, key, s.config.SignedURLTTL)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign image url")
	}
	s.logger.Info("image uploaded", zap.String("key", key), zap.Int64("size", size))
	return &models.ImageUpload{Key: key, ContentType: contentType, Size: size, URL: url, ExpiresAt: expiresAt}, nil
}

// SignedURL returns a time limited retrieval URL for a stored image.
func (s *ImageService) SignedURL(ctx context.Context, key string) (*models.SignedImageURL, error) {
	if err := validateImageKey(key); err != nil {
		return nil, err
	}
	url, expiresAt, err := s.store.SignedURL(ctx, key, s.config.SignedURLTTL)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign image url")
	}
	return &models.SignedImageURL{Key: key, URL: url, ExpiresAt: expiresAt}, nil
}

// Delete removes a stored image.
func (s *ImageService) Delete(ctx context.Context, key string) error {
	if err := validateImageKey(key); err != nil {
		return err
	}
	delCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	if err := s.store.Delete(delCtx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return appErrors.NotFound("Image", key)
		}
		return appErrors.Internal(err, "failed to delete image")
	}
	return nil
}

func validateImageKey(key string) error {
	if !strings.HasPrefix(key, imageKeyPrefix) || strings.Contains(key, "..") || len(key) == len(imageKeyPrefix) {
		return appErrors.Clone(appErrors.ErrValidation, "invalid image key")
	}
	return nil
}
