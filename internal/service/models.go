package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arturoeanton/go-product-lens/internal/domain"
	"github.com/arturoeanton/go-product-lens/internal/port"
)

const readyRetryInterval = 2 * time.Second

// Models groups the three shared model handles. It is built once at startup and
// passed by pointer to every pipeline run; nothing in it is mutated afterwards.
type Models struct {
	Localizer *Localizer
	Coarse    *CoarseEmbedder
	Fine      *FineEmbedder
}

// WaitReady blocks until every model backend answers or ctx ends.
// Serving must not start before it returns nil.
func (m *Models) WaitReady(ctx context.Context) error {
	checks := []struct {
		name string
		ping func(context.Context) error
	}{
		{"detector", m.Localizer.Ping},
		{"coarse", m.Coarse.encoder.Ping},
		{"fine", m.Fine.encoder.Ping},
	}

	for _, c := range checks {
		for {
			err := c.ping(ctx)
			if err == nil {
				slog.Info("model ready", "model", c.name)
				break
			}
			slog.Warn("model not ready", "model", c.name, "error", err)

			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %s: %w", port.ErrModelUnavailable, c.name, err)
			case <-time.After(readyRetryInterval):
			}
		}
	}
	return nil
}

// Schemas returns the vector schemas the catalog must be pinned to.
func (m *Models) Schemas() []domain.VectorSchema {
	return []domain.VectorSchema{m.Coarse.Schema(), m.Fine.Schema()}
}
