package coupon

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Importer loads coupon files and upserts their coupons.
type Importer struct {
	loader Loader
	store  Store
	logger zerolog.Logger
}

// NewImporter creates a coupon importer.
func NewImporter(loader Loader, store Store, logger zerolog.Logger) *Importer {
	return &Importer{
		loader: loader,
		store:  store,
		logger: logger.With().Str("component", "coupon-importer").Logger(),
	}
}

// Import loads every file concurrently and upserts the union of their
// coupons. When a code appears in several files the last file listed wins.
// Nothing is written unless every file loads.
func (i *Importer) Import(ctx context.Context, files []string) (int, error) {
	if len(files) == 0 {
		return 0, nil
	}

	i.logger.Info().Int("file_count", len(files)).Msg("importing coupon files")

	type loadResult struct {
		index int
		set   *Set
		err   error
	}

	resultChan := make(chan loadResult, len(files))
	var wg sync.WaitGroup

	for idx, path := range files {
		wg.Add(1)
		go func(index int, path string) {
			defer wg.Done()

			set, err := i.loader.Load(ctx, path)
			resultChan <- loadResult{index: index, set: set, err: err}
		}(idx, path)
	}

	wg.Wait()
	close(resultChan)

	// Collect results in order
	results := make([]loadResult, len(files))
	for result := range resultChan {
		results[result.index] = result
	}

	merged := NewSet(0)
	for idx, result := range results {
		if result.err != nil {
			i.logger.Error().
				Err(result.err).
				Str("file", files[idx]).
				Msg("failed to load coupon file")
			return 0, fmt.Errorf("failed to load coupon file %s: %w", files[idx], result.err)
		}
		merged.AddAll(result.set)
	}

	n, err := i.store.UpsertMany(ctx, merged.Coupons())
	if err != nil {
		return 0, fmt.Errorf("failed to store coupons: %w", err)
	}

	i.logger.Info().
		Int("file_count", len(files)).
		Int("imported", n).
		Msg("coupon files imported")

	return n, nil
}
