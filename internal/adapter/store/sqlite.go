package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/arturoeanton/go-product-lens/internal/domain"
	"github.com/arturoeanton/go-product-lens/internal/port"
	"github.com/arturoeanton/go-product-lens/internal/vecmath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteCatalog implements port.CatalogStore on a single SQLite file.
// Vectors are stored as little-endian float64 BLOBs and searched by a full scan,
// which suits catalogs of a few thousand products.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens (or creates) the catalog database at path.
// Use ":memory:" for an ephemeral catalog.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: writes serialize anyway and ":memory:" is per-connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLiteCatalog{db: db}, nil
}

// Close closes the database.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables and pins each kind's width and preprocessing.
func (s *SQLiteCatalog) EnsureSchema(ctx context.Context, schemas []domain.VectorSchema) error {
	createSQL := `
	CREATE TABLE IF NOT EXISTS catalog_schema (
		kind TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		preprocess TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		image_url TEXT NOT NULL,
		coarse_embedding BLOB NOT NULL,
		fine_embedding BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		resource TEXT NOT NULL,
		resource_id TEXT NOT NULL DEFAULT '',
		details TEXT NOT NULL DEFAULT '{}',
		ip TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_products_created ON products(created_at);`

	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	for _, sc := range schemas {
		var stored domain.VectorSchema
		err := s.db.QueryRowContext(ctx,
			`SELECT kind, dimension, preprocess FROM catalog_schema WHERE kind = ?`, sc.Kind,
		).Scan(&stored.Kind, &stored.Dimension, &stored.Preprocess)
		if errors.Is(err, sql.ErrNoRows) {
			if _, err := s.db.ExecContext(ctx,
				`INSERT INTO catalog_schema (kind, dimension, preprocess) VALUES (?, ?, ?)`,
				sc.Kind, sc.Dimension, sc.Preprocess,
			); err != nil {
				return fmt.Errorf("pin schema %s: %w", sc.Kind, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("read schema %s: %w", sc.Kind, err)
		}
		if err := compareSchema(stored, sc); err != nil {
			return err
		}
	}
	return nil
}

// Upsert appends a catalog entry; an existing ID is left untouched.
func (s *SQLiteCatalog) Upsert(ctx context.Context, e *domain.CatalogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, price, image_url, coarse_embedding, fine_embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		e.ID, e.Name, e.Price, e.ImageURL, encodeVector(e.Coarse), encodeVector(e.Fine), e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}

// SearchByCoarse scans every entry and returns the best matches by cosine similarity.
// Ties keep insertion order.
func (s *SQLiteCatalog) SearchByCoarse(ctx context.Context, vec domain.CoarseVector, matchCount int, minThreshold float64) ([]domain.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, price, image_url, coarse_embedding, fine_embedding, created_at
		 FROM products ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrRetrieval, err)
	}
	defer rows.Close()

	var results []domain.Candidate
	for rows.Next() {
		var (
			c            domain.Candidate
			coarse, fine []byte
			created      int64
		)
		if err := rows.Scan(&c.Entry.ID, &c.Entry.Name, &c.Entry.Price, &c.Entry.ImageURL, &coarse, &fine, &created); err != nil {
			return nil, fmt.Errorf("%w: scan candidate: %w", port.ErrRetrieval, err)
		}
		coarseVec, err := decodeVector(coarse)
		if err != nil {
			return nil, fmt.Errorf("%w: product %s: %w", port.ErrRetrieval, c.Entry.ID, err)
		}
		score, err := vecmath.Dot(vec, coarseVec)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: product %s: %w", port.ErrRetrieval, port.ErrDimensionMismatch, c.Entry.ID, err)
		}
		if score < minThreshold {
			continue
		}
		fineVec, err := decodeVector(fine)
		if err != nil {
			return nil, fmt.Errorf("%w: product %s: %w", port.ErrRetrieval, c.Entry.ID, err)
		}
		c.Entry.Fine = domain.FineVector(fineVec)
		c.Entry.CreatedAt = time.Unix(0, created).UTC()
		c.CoarseScore = score
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", port.ErrRetrieval, err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CoarseScore > results[j].CoarseScore
	})
	if matchCount >= 0 && len(results) > matchCount {
		results = results[:matchCount]
	}
	return results, nil
}

// Count returns the number of catalog entries.
func (s *SQLiteCatalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// List returns catalog metadata, newest first.
func (s *SQLiteCatalog) List(ctx context.Context, limit int) ([]domain.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, price, image_url, created_at FROM products ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var entries []domain.CatalogEntry
	for rows.Next() {
		var e domain.CatalogEntry
		var created int64
		if err := rows.Scan(&e.ID, &e.Name, &e.Price, &e.ImageURL, &created); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// WriteAudit implements middleware.AuditWriter.
func (s *SQLiteCatalog) WriteAudit(action, resource, resourceID, details, ip, userAgent string) error {
	_, err := s.db.Exec(
		`INSERT INTO audit_logs (action, resource, resource_id, details, ip, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		action, resource, resourceID, details, ip, userAgent, time.Now().UnixNano(),
	)
	return err
}

// ListAuditLogs returns recent audit logs, optionally filtered by action.
func (s *SQLiteCatalog) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `SELECT id, action, resource, resource_id, details, ip, user_agent, created_at FROM audit_logs`
	var args []interface{}
	if action != "" {
		query += ` WHERE action = ?`
		args = append(args, action)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		var created int64
		if err := rows.Scan(&l.ID, &l.Action, &l.Resource, &l.ResourceID, &l.Details, &l.IP, &l.UserAgent, &created); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		l.CreatedAt = time.Unix(0, created).UTC()
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("decode vector: %d bytes is not a multiple of 8", len(b))
	}
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out, nil
}
