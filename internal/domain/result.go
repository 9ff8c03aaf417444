package domain

// MatchResult is the outcome of one pipeline run: exactly one of Found, NotFound or Failed.
// The interface is sealed; switches over it must handle all three cases.
type MatchResult interface {
	matchResult()
}

// Found is a verified match at or above the strict threshold.
type Found struct {
	Entry CatalogEntry
	Score float64
}

// BestGuess is the top candidate that failed verification.
type BestGuess struct {
	Name       string
	Confidence float64 // fine score rounded to two decimals
}

// NotFound means no confirmed match. Guess is nil when coarse retrieval returned nothing.
type NotFound struct {
	Guess *BestGuess
}

// Failed means a lower-level failure (store unreachable, model error) ended the run.
type Failed struct {
	Reason string
}

func (Found) matchResult()    {}
func (NotFound) matchResult() {}
func (Failed) matchResult()   {}
