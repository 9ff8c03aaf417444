package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/arturoeanton/go-product-lens/internal/domain"
	"github.com/arturoeanton/go-product-lens/internal/imaging"
	"github.com/arturoeanton/go-product-lens/internal/port"
	"github.com/arturoeanton/go-product-lens/internal/vecmath"
)

// Stage is a pipeline checkpoint. A run only moves forward.
type Stage int

const (
	StageReceived Stage = iota
	StageCropped
	StageCoarseRetrieved
	StageFineScored
	StageDecided
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageCropped:
		return "cropped"
	case StageCoarseRetrieved:
		return "coarse_retrieved"
	case StageFineScored:
		return "fine_scored"
	case StageDecided:
		return "decided"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Default decision parameters.
const (
	DefaultMatchCount      = 15
	DefaultLooseThreshold  = 0.10
	DefaultStrictThreshold = 0.65
)

// MatchConfig tunes retrieval and verification. Thresholds are used as given,
// so a zero loose threshold keeps every retrieved candidate.
type MatchConfig struct {
	MatchCount      int
	LooseThreshold  float64
	StrictThreshold float64
}

// DefaultMatchConfig returns the stock retrieval and decision parameters.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		MatchCount:      DefaultMatchCount,
		LooseThreshold:  DefaultLooseThreshold,
		StrictThreshold: DefaultStrictThreshold,
	}
}

// withDefaults only repairs a non-positive match count, which would make
// retrieval return nothing.
func (c MatchConfig) withDefaults() MatchConfig {
	if c.MatchCount <= 0 {
		c.MatchCount = DefaultMatchCount
	}
	return c
}

// MatchService runs the localize, retrieve, verify, decide pipeline.
type MatchService struct {
	models *Models
	store  port.CatalogStore
	cfg    MatchConfig
}

// NewMatchService creates a new match service.
func NewMatchService(models *Models, store port.CatalogStore, cfg MatchConfig) *MatchService {
	return &MatchService{models: models, store: store, cfg: cfg.withDefaults()}
}

// Identify decodes an uploaded image and runs the pipeline on it. Only an
// undecodable image is returned as an error; every other outcome is a MatchResult.
func (s *MatchService) Identify(ctx context.Context, data []byte) (domain.MatchResult, error) {
	img, format, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	slog.Debug("match: decoded query", "format", format, "bounds", img.Bounds())
	return s.Match(ctx, img), nil
}

// Match runs one query image through the pipeline.
func (s *MatchService) Match(ctx context.Context, img *image.RGBA) domain.MatchResult {
	r := run{started: time.Now()}
	r.advance(StageReceived)

	cropped := s.models.Localizer.Crop(ctx, img)
	r.advance(StageCropped, "bounds", cropped.Bounds())

	coarse, err := s.models.Coarse.EmbedCoarse(ctx, cropped)
	if err != nil {
		return r.fail("model error", err)
	}
	candidates, err := s.store.SearchByCoarse(ctx, coarse, s.cfg.MatchCount, s.cfg.LooseThreshold)
	if err != nil {
		return r.fail("catalog error", err)
	}
	r.advance(StageCoarseRetrieved, "candidates", len(candidates))
	if len(candidates) == 0 {
		return r.decide(domain.NotFound{})
	}

	fine, err := s.models.Fine.EmbedFine(ctx, cropped)
	if err != nil {
		return r.fail("model error", err)
	}
	ranked, err := rank(fine, candidates)
	if err != nil {
		return r.fail("verification error", err)
	}
	r.advance(StageFineScored, "best", ranked[0].Entry.Name, "score", ranked[0].FineScore)

	return r.decide(decide(ranked, s.cfg.StrictThreshold))
}

// rank scores every candidate against the query fine vector and sorts them by
// descending fine score. Equal scores keep their retrieval order.
func rank(query domain.FineVector, candidates []domain.Candidate) ([]domain.Candidate, error) {
	ranked := make([]domain.Candidate, len(candidates))
	for i, c := range candidates {
		if len(c.Entry.Fine) != len(query) {
			return nil, fmt.Errorf("%w: candidate %s has %d fine values, query has %d",
				port.ErrDimensionMismatch, c.Entry.ID, len(c.Entry.Fine), len(query))
		}
		score, err := vecmath.Dot(query, c.Entry.Fine)
		if err != nil {
			return nil, err
		}
		c.FineScore = score
		ranked[i] = c
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FineScore > ranked[j].FineScore
	})
	return ranked, nil
}

// decide applies the strict threshold to the top of a non-empty ranked list.
// A score equal to the threshold is a match.
func decide(ranked []domain.Candidate, strict float64) domain.MatchResult {
	if len(ranked) == 0 {
		return domain.NotFound{}
	}
	best := ranked[0]
	if best.FineScore < strict {
		return domain.NotFound{Guess: &domain.BestGuess{
			Name:       best.Entry.Name,
			Confidence: roundScore(best.FineScore),
		}}
	}
	return domain.Found{Entry: best.Entry, Score: best.FineScore}
}

func roundScore(s float64) float64 {
	return math.Round(s*100) / 100
}

// run tracks stage transitions for one pipeline invocation.
type run struct {
	stage   Stage
	started time.Time
}

func (r *run) advance(to Stage, attrs ...any) {
	r.stage = to
	slog.Debug("match: stage", append([]any{"stage", to.String()}, attrs...)...)
}

func (r *run) fail(what string, err error) domain.MatchResult {
	slog.Error("match: pipeline failed", "stage", r.stage.String(), "error", err,
		"retrieval", errors.Is(err, port.ErrRetrieval))
	return r.decide(domain.Failed{Reason: fmt.Sprintf("%s: %v", what, err)})
}

func (r *run) decide(result domain.MatchResult) domain.MatchResult {
	r.advance(StageDecided, "outcome", Outcome(result), "elapsed", time.Since(r.started))
	return result
}

// Outcome names the variant of a result for logs and job records.
func Outcome(result domain.MatchResult) string {
	switch result.(type) {
	case domain.Found:
		return "found"
	case domain.NotFound:
		return "not_found"
	case domain.Failed:
		return "failed"
	}
	return "unknown"
}
