package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arturoeanton/go-product-lens/internal/domain"
	"github.com/arturoeanton/go-product-lens/internal/port"
)

// VectorStore implements port.CatalogStore on pgvector.
type VectorStore struct {
	store *PostgresStore
}

// NewVectorStore creates a vector store backed by the given Postgres store.
func NewVectorStore(store *PostgresStore) *VectorStore {
	return &VectorStore{store: store}
}

// EnsureSchema creates the catalog tables sized from schemas and pins each kind's
// width and preprocessing in catalog_schema.
func (v *VectorStore) EnsureSchema(ctx context.Context, schemas []domain.VectorSchema) error {
	dims := make(map[string]int, len(schemas))
	for _, s := range schemas {
		dims[s.Kind] = s.Dimension
	}
	if dims[domain.KindCoarse] <= 0 || dims[domain.KindFine] <= 0 {
		return fmt.Errorf("ensure schema: both %s and %s dimensions are required", domain.KindCoarse, domain.KindFine)
	}

	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS catalog_schema (
			kind       TEXT PRIMARY KEY,
			dimension  INTEGER NOT NULL,
			preprocess TEXT NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS products (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			price            TEXT NOT NULL,
			image_url        TEXT NOT NULL,
			coarse_embedding vector(%d) NOT NULL,
			fine_embedding   vector(%d) NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, dims[domain.KindCoarse], dims[domain.KindFine]),
		`CREATE INDEX IF NOT EXISTS products_coarse_hnsw
			ON products USING hnsw (coarse_embedding vector_cosine_ops)`,
	}
	for _, stmt := range statements {
		if _, err := v.store.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	for _, s := range schemas {
		var stored domain.VectorSchema
		err := v.store.db.QueryRowContext(ctx,
			`SELECT kind, dimension, preprocess FROM catalog_schema WHERE kind = $1`, s.Kind,
		).Scan(&stored.Kind, &stored.Dimension, &stored.Preprocess)
		if errors.Is(err, sql.ErrNoRows) {
			if _, err := v.store.db.ExecContext(ctx,
				`INSERT INTO catalog_schema (kind, dimension, preprocess) VALUES ($1, $2, $3)`,
				s.Kind, s.Dimension, s.Preprocess,
			); err != nil {
				return fmt.Errorf("pin schema %s: %w", s.Kind, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("read schema %s: %w", s.Kind, err)
		}
		if err := compareSchema(stored, s); err != nil {
			return err
		}
	}
	return nil
}

// Upsert appends a catalog entry; an existing ID is left untouched.
func (v *VectorStore) Upsert(ctx context.Context, e *domain.CatalogEntry) error {
	query := `INSERT INTO products (id, name, price, image_url, coarse_embedding, fine_embedding, created_at)
	          VALUES ($1, $2, $3, $4, $5::vector, $6::vector, $7)
	          ON CONFLICT (id) DO NOTHING`

	_, err := v.store.db.ExecContext(ctx, query,
		e.ID, e.Name, e.Price, e.ImageURL, vectorToString(e.Coarse), vectorToString(e.Fine), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// SearchByCoarse performs a cosine similarity search on coarse embeddings.
func (v *VectorStore) SearchByCoarse(ctx context.Context, vec domain.CoarseVector, matchCount int, minThreshold float64) ([]domain.Candidate, error) {
	vectorStr := vectorToString(vec)
	query := `SELECT p.id, p.name, p.price, p.image_url, p.fine_embedding::text, p.created_at,
	                 1 - (p.coarse_embedding <=> $1::vector) AS similarity
	          FROM products p
	          WHERE 1 - (p.coarse_embedding <=> $1::vector) >= $2
	          ORDER BY p.coarse_embedding <=> $1::vector
	          LIMIT $3`

	rows, err := v.store.db.QueryContext(ctx, query, vectorStr, minThreshold, matchCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrRetrieval, err)
	}
	defer rows.Close()

	var results []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		var fine string
		if err := rows.Scan(
			&c.Entry.ID, &c.Entry.Name, &c.Entry.Price, &c.Entry.ImageURL,
			&fine, &c.Entry.CreatedAt, &c.CoarseScore,
		); err != nil {
			return nil, fmt.Errorf("%w: scan candidate: %w", port.ErrRetrieval, err)
		}
		parsed, err := parseVector(fine)
		if err != nil {
			return nil, fmt.Errorf("%w: product %s: %w", port.ErrRetrieval, c.Entry.ID, err)
		}
		c.Entry.Fine = domain.FineVector(parsed)
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrRetrieval, err)
	}
	return results, nil
}

// Count returns the number of catalog entries.
func (v *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// List returns catalog metadata, newest first.
func (v *VectorStore) List(ctx context.Context, limit int) ([]domain.CatalogEntry, error) {
	query := `SELECT id, name, price, image_url, created_at FROM products ORDER BY created_at DESC LIMIT $1`

	rows, err := v.store.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var entries []domain.CatalogEntry
	for rows.Next() {
		var e domain.CatalogEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Price, &e.ImageURL, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// compareSchema rejects a configured schema that differs from the stored one.
func compareSchema(stored, configured domain.VectorSchema) error {
	if stored.Dimension != configured.Dimension || stored.Preprocess != configured.Preprocess {
		return fmt.Errorf("%w: %s vectors stored as %d/%q, configured %d/%q; migrate the catalog",
			port.ErrSchemaMismatch, configured.Kind,
			stored.Dimension, stored.Preprocess, configured.Dimension, configured.Preprocess)
	}
	return nil
}

// vectorToString converts a vector to pgvector string format: [0.1,0.2,0.3].
func vectorToString(v []float64) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = strconv.FormatFloat(val, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseVector parses pgvector text output back into a slice.
func parseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("parse vector: malformed %q", truncate(s, 32))
	}
	body := s[1 : len(s)-1]
	if body == "" {
		return []float64{}, nil
	}
	parts := strings.Split(body, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector element %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
