package domain

import "time"

// CatalogEntry is a registered reference product. Entries are immutable once stored.
type CatalogEntry struct {
	ID        string       `json:"id"         db:"id"`
	Name      string       `json:"name"       db:"name"`
	Price     string       `json:"price"      db:"price"`
	ImageURL  string       `json:"image"      db:"image_url"`
	Coarse    CoarseVector `json:"-"          db:"coarse_embedding"`
	Fine      FineVector   `json:"-"          db:"fine_embedding"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// Candidate is a catalog entry scored against one query.
type Candidate struct {
	Entry       CatalogEntry
	CoarseScore float64
	FineScore   float64
}
