package templates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meme-forge/backend/internal/models"
)

const (
	// DefaultTarget is the number of new templates one fetch run tries to
	// accumulate.
	DefaultTarget = 20

	// DefaultMaxAttempts bounds the retry loop.
	DefaultMaxAttempts = 5

	defaultBackoff = time.Second
)

// ErrNoNewTemplates reports that every fetched template was already known.
// It is distinct from a fetch failure: the sources were reachable, there
// was just nothing new to get.
var ErrNoNewTemplates = errors.New("no new templates found")

// Source fetches one batch of candidate templates from an external
// provider.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.TemplateRecord, error)
}

// Fetcher runs the bounded fetch/dedup loop against a template source.
type Fetcher struct {
	logger  *zap.Logger
	backoff time.Duration
}

// NewFetcher creates a fetcher with the default inter-attempt backoff.
func NewFetcher(logger *zap.Logger) *Fetcher {
	return &Fetcher{
		logger:  logger,
		backoff: defaultBackoff,
	}
}

// FetchNew fetches batches from source until target new templates have been
// accepted or maxAttempts batches have been consumed. A template is new
// when its OriginalURL is not in existing and was not accepted earlier in
// this call; records without an OriginalURL are exempt from deduplication.
// The result is truncated to exactly target. A failed batch consumes its
// attempt; only a failure on the final attempt propagates. When the loop
// ends with nothing accepted, ErrNoNewTemplates is returned.
func (f *Fetcher) FetchNew(ctx context.Context, source Source, existing map[string]struct{}, target, maxAttempts int) ([]models.TemplateRecord, error) {
	if target <= 0 {
		target = DefaultTarget
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	seen := make(map[string]struct{}, len(existing))
	for url := range existing {
		seen[url] = struct{}{}
	}

	var accepted []models.TemplateRecord
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		f.logger.Debug("Fetch attempt",
			zap.String("source", source.Name()),
			zap.Int("attempt", attempt),
			zap.Int("accepted", len(accepted)),
		)

		batch, err := source.Fetch(ctx)
		if err != nil {
			f.logger.Warn("Fetch attempt failed",
				zap.String("source", source.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if attempt == maxAttempts {
				return nil, fmt.Errorf("fetch from %s: %w", source.Name(), err)
			}
			continue
		}

		for _, record := range batch {
			if record.OriginalURL != "" {
				if _, dup := seen[record.OriginalURL]; dup {
					f.logger.Debug("Skipping duplicate template",
						zap.String("name", record.Name),
						zap.String("url", record.OriginalURL),
					)
					continue
				}
				seen[record.OriginalURL] = struct{}{}
			}
			accepted = append(accepted, record)
		}

		if len(accepted) >= target {
			accepted = accepted[:target]
			break
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.backoff):
			}
		}
	}

	if len(accepted) == 0 {
		return nil, ErrNoNewTemplates
	}

	f.logger.Info("Fetch run complete",
		zap.String("source", source.Name()),
		zap.Int("accepted", len(accepted)),
	)
	return accepted, nil
}
