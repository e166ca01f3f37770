package templates

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/meme-forge/backend/internal/models"
)

// scriptedSource replays a fixed sequence of batches and errors, one per
// Fetch call. The last entry repeats once the script runs out.
type scriptedSource struct {
	batches [][]models.TemplateRecord
	errs    []error
	calls   int
}

func (s *scriptedSource) Name() string {
	return "scripted"
}

func (s *scriptedSource) Fetch(ctx context.Context) ([]models.TemplateRecord, error) {
	i := s.calls
	s.calls++
	if i >= len(s.batches) {
		i = len(s.batches) - 1
	}
	return s.batches[i], s.errs[i]
}

func rec(url string) models.TemplateRecord {
	return models.TemplateRecord{
		Name:        url,
		Source:      "scripted",
		OriginalURL: url,
	}
}

func batchOf(n int, prefix string) []models.TemplateRecord {
	batch := make([]models.TemplateRecord, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, rec(fmt.Sprintf("https://example.com/%s-%d.png", prefix, i)))
	}
	return batch
}

func newTestFetcher() *Fetcher {
	return &Fetcher{
		logger:  zap.NewNop(),
		backoff: time.Millisecond,
	}
}

func TestFetchNew_TruncatesToTarget(t *testing.T) {
	source := &scriptedSource{
		batches: [][]models.TemplateRecord{batchOf(30, "a")},
		errs:    []error{nil},
	}

	records, err := newTestFetcher().FetchNew(context.Background(), source, nil, 20, 5)
	assert.NoError(t, err)
	assert.Len(t, records, 20)
	assert.Equal(t, 1, source.calls, "target reached on the first batch, no retries")
}

func TestFetchNew_SkipsExistingURLs(t *testing.T) {
	source := &scriptedSource{
		batches: [][]models.TemplateRecord{{rec("https://a.png"), rec("https://b.png"), rec("https://c.png")}},
		errs:    []error{nil},
	}
	existing := map[string]struct{}{"https://a.png": {}}

	records, err := newTestFetcher().FetchNew(context.Background(), source, existing, 20, 1)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	for _, record := range records {
		assert.NotEqual(t, "https://a.png", record.OriginalURL)
	}
}

func TestFetchNew_DedupsWithinRun(t *testing.T) {
	source := &scriptedSource{
		batches: [][]models.TemplateRecord{{rec("https://a.png"), rec("https://a.png"), rec("https://b.png")}},
		errs:    []error{nil},
	}

	records, err := newTestFetcher().FetchNew(context.Background(), source, nil, 20, 1)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFetchNew_EmptyURLExemptFromDedup(t *testing.T) {
	source := &scriptedSource{
		batches: [][]models.TemplateRecord{{
			{Name: "one"},
			{Name: "two"},
		}},
		errs: []error{nil},
	}

	records, err := newTestFetcher().FetchNew(context.Background(), source, nil, 20, 1)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFetchNew_AccumulatesAcrossAttempts(t *testing.T) {
	source := &scriptedSource{
		batches: [][]models.TemplateRecord{
			{rec("https://a.png")},
			{rec("https://b.png")},
			{rec("https://c.png")},
		},
		errs: []error{nil, nil, nil},
	}

	records, err := newTestFetcher().FetchNew(context.Background(), source, nil, 3, 5)
	assert.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, 3, source.calls)
}

func TestFetchNew_SecondRunFindsNothingNew(t *testing.T) {
	source := &scriptedSource{
		batches: [][]models.TemplateRecord{batchOf(5, "a")},
		errs:    []error{nil},
	}
	fetcher := newTestFetcher()

	first, err := fetcher.FetchNew(context.Background(), source, nil, 20, 1)
	assert.NoError(t, err)
	assert.Len(t, first, 5)

	existing := make(map[string]struct{})
	for _, record := range first {
		existing[record.OriginalURL] = struct{}{}
	}

	source.calls = 0
	_, err = fetcher.FetchNew(context.Background(), source, existing, 20, 1)
	assert.ErrorIs(t, err, ErrNoNewTemplates)
}

func TestFetchNew_ErrorOnlyPropagatesFromFinalAttempt(t *testing.T) {
	errFetch := errors.New("listing unavailable")
	source := &scriptedSource{
		batches: [][]models.TemplateRecord{nil, {rec("https://a.png")}},
		errs:    []error{errFetch, nil},
	}

	records, err := newTestFetcher().FetchNew(context.Background(), source, nil, 20, 2)
	assert.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFetchNew_FinalAttemptErrorPropagates(t *testing.T) {
	errFetch := errors.New("listing unavailable")
	source := &scriptedSource{
		batches: [][]models.TemplateRecord{nil, nil},
		errs:    []error{errFetch, errFetch},
	}

	_, err := newTestFetcher().FetchNew(context.Background(), source, nil, 20, 2)
	assert.ErrorIs(t, err, errFetch)
	assert.Equal(t, 2, source.calls)
}

func TestFetchNew_ContextCanceledDuringBackoff(t *testing.T) {
	source := &scriptedSource{
		batches: [][]models.TemplateRecord{nil},
		errs:    []error{nil},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher().FetchNew(ctx, source, nil, 20, 3)
	assert.ErrorIs(t, err, context.Canceled)
}
