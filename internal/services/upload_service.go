package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/SAP-F-2025/answer-sheet-service/internal/config"
	"github.com/SAP-F-2025/answer-sheet-service/internal/metrics"
	"github.com/SAP-F-2025/answer-sheet-service/internal/storage"
	"github.com/SAP-F-2025/answer-sheet-service/internal/validator"
	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	webpContentType = "image/webp"
	// maxSourcePixels bounds the decoded size of an upload before any pixel
	// data is allocated.
	maxSourcePixels = 40_000_000
)

var supportedImageFormats = map[string]bool{
	"png":  true,
	"jpeg": true,
	"gif":  true,
	"webp": true,
}

type uploadService struct {
	storage   storage.Provider
	logger    *slog.Logger
	validator *validator.Validator
	metrics   *metrics.Metrics
	opLogger  *ServiceLogger
	cfg       config.UploadConfig
	now       func() time.Time
}

func NewUploadService(provider storage.Provider, logger *slog.Logger, validator *validator.Validator, metrics *metrics.Metrics, cfg config.UploadConfig) UploadService {
	return &uploadService{
		storage:   provider,
		logger:    logger,
		validator: validator,
		metrics:   metrics,
		opLogger:  NewServiceLogger(logger, "upload"),
		cfg:       cfg,
		now:       time.Now,
	}
}

// UploadImage decodes a base64 image, shrinks it to the configured box and
// stores it as WebP.
func (s *uploadService) UploadImage(ctx context.Context, req *UploadImageRequest, userID string) (resp *UploadResponse, err error) {
	started := time.Now()
	defer func() {
		resourceID := ""
		if resp != nil {
			resourceID = resp.Key
		}
		s.opLogger.LogOperation(ctx, "upload_image", userID, resourceID, "image", started, err)
	}()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	raw, err := s.decodePayload(req.Image)
	if err != nil {
		return nil, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if !supportedImageFormats[format] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, format)
	}
	if cfg.Width*cfg.Height > maxSourcePixels {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if s.cfg.MaxWidth > 0 && s.cfg.MaxHeight > 0 {
		img = imaging.Fit(img, s.cfg.MaxWidth, s.cfg.MaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: s.quality()}); err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}

	key := s.objectKey()
	size := buf.Len()
	url, err := s.storage.Upload(ctx, key, &buf, int64(size), webpContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}
	s.metrics.UploadBytes.Observe(float64(size))

	bounds := img.Bounds()
	s.logger.Info("Image stored",
		"key", key,
		"source_format", format,
		"source_bytes", len(raw),
		"stored_bytes", size,
		"filename", req.Filename)

	return &UploadResponse{
		URL:         url,
		Key:         key,
		Size:        size,
		ContentType: webpContentType,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

// decodePayload accepts a data URL or bare base64, padded or not.
func (s *uploadService) decodePayload(payload string) ([]byte, error) {
	data := strings.TrimSpace(payload)
	if strings.HasPrefix(data, "data:") {
		comma := strings.IndexByte(data, ',')
		if comma < 0 || !strings.HasSuffix(data[:comma], ";base64") {
			return nil, fmt.Errorf("%w: malformed data URL", ErrInvalidImage)
		}
		data = data[comma+1:]
	}
	if data == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	if s.cfg.MaxBytes > 0 && base64.RawStdEncoding.DecodedLen(len(strings.TrimRight(data, "="))) > s.cfg.MaxBytes {
		return nil, ErrImageTooLarge
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return raw, nil
}

func (s *uploadService) quality() float32 {
	if s.cfg.WebPQuality <= 0 || s.cfg.WebPQuality > 100 {
		return 80
	}
	return s.cfg.WebPQuality
}

func (s *uploadService) objectKey() string {
	return fmt.Sprintf("images/%s/%s.webp", s.now().UTC().Format("2006/01/02"), uuid.NewString())
}
