package ingest

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dyike/DexterGo/internal/models"
	"github.com/dyike/DexterGo/internal/providers"
)

// Sink receives fixed-size batches of ingested market data.
type Sink interface {
	FlushQuotes(ctx context.Context, quotes []*models.Quote) error
	FlushBars(ctx context.Context, bars []*models.Bar) error
	FlushInfos(ctx context.Context, infos []*models.BasicInfo) error
}

// Ingestor pulls market data for symbol universes through the provider
// manager and hands it to the sink in batches. Fetches run concurrently up to
// the configured limits; a symbol that yields nothing is skipped, not fatal.
type Ingestor struct {
	mgr  *providers.Manager
	sink Sink

	snapshotConcurrency int
	backfillConcurrency int
	batchSize           int
}

type Options struct {
	SnapshotConcurrency int
	BackfillConcurrency int
	BatchSize           int
}

func New(mgr *providers.Manager, sink Sink, opts Options) *Ingestor {
	if opts.SnapshotConcurrency <= 0 {
		opts.SnapshotConcurrency = 8
	}
	if opts.BackfillConcurrency <= 0 {
		opts.BackfillConcurrency = 3
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	return &Ingestor{
		mgr:                 mgr,
		sink:                sink,
		snapshotConcurrency: opts.SnapshotConcurrency,
		backfillConcurrency: opts.BackfillConcurrency,
		batchSize:           opts.BatchSize,
	}
}

// batcher accumulates items and flushes every time the batch fills.
type batcher[T any] struct {
	mu    sync.Mutex
	items []*T
	size  int
	flush func(context.Context, []*T) error
}

func (b *batcher[T]) add(ctx context.Context, item *T) {
	b.mu.Lock()
	b.items = append(b.items, item)
	var out []*T
	if len(b.items) >= b.size {
		out = b.items
		b.items = nil
	}
	b.mu.Unlock()
	if out != nil {
		if err := b.flush(ctx, out); err != nil {
			log.Printf("Batch flush failed (%d items): %v", len(out), err)
		}
	}
}

func (b *batcher[T]) drain(ctx context.Context) {
	b.mu.Lock()
	out := b.items
	b.items = nil
	b.mu.Unlock()
	if len(out) > 0 {
		if err := b.flush(ctx, out); err != nil {
			log.Printf("Final flush failed (%d items): %v", len(out), err)
		}
	}
}

// SnapshotQuotes fetches the latest quote for every symbol and returns how
// many were captured.
func (ing *Ingestor) SnapshotQuotes(ctx context.Context, symbols []models.SymbolKey) int {
	b := &batcher[models.Quote]{size: ing.batchSize, flush: ing.sink.FlushQuotes}
	captured := ing.forEach(ctx, symbols, ing.snapshotConcurrency, func(sym models.SymbolKey) bool {
		q, _ := ing.mgr.GetQuote(ctx, sym)
		if q == nil {
			return false
		}
		b.add(ctx, q)
		return true
	})
	b.drain(ctx)
	return captured
}

// BackfillBars fetches history for every symbol and returns how many symbols
// produced at least one bar.
func (ing *Ingestor) BackfillBars(ctx context.Context, symbols []models.SymbolKey, timeframe models.TimeFrame, start, end time.Time) int {
	b := &batcher[models.Bar]{size: ing.batchSize, flush: ing.sink.FlushBars}
	covered := ing.forEach(ctx, symbols, ing.backfillConcurrency, func(sym models.SymbolKey) bool {
		bars, _, err := ing.mgr.GetBars(ctx, sym, timeframe, start, end)
		if err != nil {
			log.Printf("Backfill failed for %s: %v", sym, err)
			return false
		}
		if len(bars) == 0 {
			return false
		}
		for _, bar := range bars {
			b.add(ctx, bar)
		}
		return true
	})
	b.drain(ctx)
	return covered
}

// EnrichBasicInfo fetches static descriptive data for every symbol.
func (ing *Ingestor) EnrichBasicInfo(ctx context.Context, symbols []models.SymbolKey) int {
	b := &batcher[models.BasicInfo]{size: ing.batchSize, flush: ing.sink.FlushInfos}
	enriched := ing.forEach(ctx, symbols, ing.snapshotConcurrency, func(sym models.SymbolKey) bool {
		info, _ := ing.mgr.GetBasicInfo(ctx, sym)
		if info == nil {
			return false
		}
		b.add(ctx, info)
		return true
	})
	b.drain(ctx)
	return enriched
}

// forEach runs fn over the symbols with at most limit in flight and returns
// how many calls reported success.
func (ing *Ingestor) forEach(ctx context.Context, symbols []models.SymbolKey, limit int, fn func(models.SymbolKey) bool) int {
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(sym models.SymbolKey) {
			defer wg.Done()
			defer func() { <-sem }()
			if fn(sym) {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(sym)
	}
	wg.Wait()
	return succeeded
}
