package domain

// CoarseVector is a unit-norm semantic embedding used for broad catalog retrieval.
type CoarseVector []float64

// FineVector is a unit-norm geometry-sensitive embedding used only to re-rank a short list.
// It is a distinct type from CoarseVector so the two kinds can never be compared by accident.
type FineVector []float64

// Embedding kinds as persisted in the catalog schema table.
const (
	KindCoarse = "coarse"
	KindFine   = "fine"
)

// VectorSchema pins the width and preprocessing of one embedding kind.
// Stored vectors are only comparable with query vectors built under the same schema.
type VectorSchema struct {
	Kind       string `json:"kind"       db:"kind"`
	Dimension  int    `json:"dimension"  db:"dimension"`
	Preprocess string `json:"preprocess" db:"preprocess"`
}
