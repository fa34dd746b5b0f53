// Package storage persists uploaded exam documents in a blob store keyed by
// path.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// DocumentStore uploads and retrieves submission documents.
type DocumentStore interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// CloudinaryStore implements DocumentStore using Cloudinary raw uploads.
type CloudinaryStore struct {
	client *cloudinary.Cloudinary
	http   *http.Client
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary-backed document store.
func New(cfg Config, logger zerolog.Logger) (*CloudinaryStore, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &CloudinaryStore{
		client: cld,
		http:   &http.Client{Timeout: 30 * time.Second},
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "document_store").Logger(),
	}, nil
}

// Upload stores the document and returns its addressable path (a secure URL).
func (s *CloudinaryStore) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	publicID := buildPublicID(name)

	result, err := s.client.Upload.Upload(ctx, reader, uploader.UploadParams{
		Folder:       s.folder,
		PublicID:     publicID,
		ResourceType: "raw",
	})
	if err != nil {
		return "", fmt.Errorf("upload document: %w", err)
	}

	s.logger.Info().Str("public_id", result.PublicID).Msg("document uploaded")

	return result.SecureURL, nil
}

// Fetch retrieves the document bytes for the stored path. Cloudinary exposes
// raw assets over HTTPS, so the path is fetched directly.
func (s *CloudinaryStore) Fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch document: unexpected status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func buildPublicID(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	stem = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, stem)

	return fmt.Sprintf("%s_%d", stem, time.Now().UnixNano())
}
