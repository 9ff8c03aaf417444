package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arturoeanton/go-product-lens/internal/domain"
	"github.com/arturoeanton/go-product-lens/internal/imaging"
	"github.com/arturoeanton/go-product-lens/internal/port"
)

// RegisterRequest is an admin request to add a reference product.
type RegisterRequest struct {
	Credential  string
	Name        string
	Price       string
	Filename    string
	ContentType string
	Image       []byte
}

// CatalogService handles catalog registration and listing.
type CatalogService struct {
	models *Models
	store  port.CatalogStore
	media  port.MediaStore
	secret string
}

// NewCatalogService creates a new catalog service. An empty secret rejects every registration.
func NewCatalogService(models *Models, store port.CatalogStore, media port.MediaStore, secret string) *CatalogService {
	return &CatalogService{models: models, store: store, media: media, secret: secret}
}

// Authorized reports whether credential matches the admin secret.
func (s *CatalogService) Authorized(credential string) bool {
	if s.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(credential), []byte(s.secret)) == 1
}

// Register validates the credential, embeds the reference image and appends it to the catalog.
// The reference image is embedded as uploaded, without subject localization; catalog photos
// are expected to be clean product shots.
func (s *CatalogService) Register(ctx context.Context, req RegisterRequest) (*domain.CatalogEntry, error) {
	if !s.Authorized(req.Credential) {
		return nil, port.ErrUnauthorized
	}

	name := strings.TrimSpace(req.Name)
	price := strings.TrimSpace(req.Price)
	if name == "" || price == "" {
		return nil, fmt.Errorf("%w: name and price are required", port.ErrInvalidInput)
	}

	img, format, err := imaging.Decode(req.Image)
	if err != nil {
		return nil, err
	}

	coarse, err := s.models.Coarse.EmbedCoarse(ctx, img)
	if err != nil {
		return nil, err
	}
	fine, err := s.models.Fine.EmbedFine(ctx, img)
	if err != nil {
		return nil, err
	}

	filename := MediaFilename(name, req.Filename, format)
	url, err := s.media.Save(ctx, filename, req.ContentType, req.Image)
	if err != nil {
		return nil, fmt.Errorf("save media: %w", err)
	}

	entry := &domain.CatalogEntry{
		ID:        uuid.NewString(),
		Name:      name,
		Price:     price,
		ImageURL:  url,
		Coarse:    coarse,
		Fine:      fine,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Upsert(ctx, entry); err != nil {
		// The image must not stay public without a catalog row.
		if derr := s.media.Delete(context.WithoutCancel(ctx), filename); derr != nil {
			slog.Warn("failed to remove orphaned media", "file", filename, "error", derr)
		}
		return nil, err
	}

	slog.Info("📦 Product registered", "id", entry.ID, "name", entry.Name)
	return entry, nil
}

// List returns catalog metadata, newest first.
func (s *CatalogService) List(ctx context.Context, limit int) ([]domain.CatalogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.List(ctx, limit)
}

// Count returns the catalog size.
func (s *CatalogService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// MediaFilename builds "{name without spaces}_{8 hex chars}.{ext}". The extension
// comes from the uploaded file name, or the decoded format when it has none.
func MediaFilename(name, uploaded, format string) string {
	ext := ""
	if i := strings.LastIndexByte(uploaded, '.'); i >= 0 && i < len(uploaded)-1 {
		ext = strings.ToLower(uploaded[i+1:])
	}
	if ext == "" || strings.ContainsAny(ext, `/\`) {
		ext = format
	}
	if ext == "" {
		ext = "png"
	}
	base := strings.Join(strings.Fields(name), "")
	return fmt.Sprintf("%s_%s.%s", base, uuid.NewString()[:8], ext)
}
