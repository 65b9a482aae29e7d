package search

import (
	"context"
	"errors"
	"log"
	"time"
)

var logger = log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)

// DefaultFields are searched when a query names none.
var DefaultFields = []string{"content"}

// EnsureIndex creates index with the chunk schema unless it already exists.
func EnsureIndex(ctx context.Context, e Engine, index string) error {
	ok, err := e.IndexExists(ctx, index)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	logger.Printf("creating index %s", index)
	return e.CreateIndex(ctx, index, ChunkIndexSpec())
}

// GetIndexStats returns the document count. A missing index counts zero.
func GetIndexStats(ctx context.Context, e Engine, index string) (IndexStats, error) {
	st, err := e.Stats(ctx, index)
	if errors.Is(err, ErrIndexNotFound) {
		return IndexStats{Count: 0}, nil
	}
	return st, err
}

// BulkIndexFromSnapshot upserts every chunk of the workspace snapshot into
// index in one refreshed bulk call. Item failures are logged; the result is
// the number of chunks accepted by the engine.
func BulkIndexFromSnapshot(ctx context.Context, e Engine, index, workingDir, workspace string) (int, error) {
	path := SnapshotPath(workingDir, workspace)
	records, err := LoadSnapshot(path)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		logger.Printf("warning: no chunk data found to index: %s", path)
		return 0, nil
	}
	actions := SnapshotActions(records)
	res, err := e.Bulk(ctx, index, actions, true)
	if err != nil {
		return 0, err
	}
	indexed := res.Items - len(res.Failed)
	if res.Errors || len(res.Failed) > 0 {
		logger.Printf("warning: bulk index into %s completed with errors; items=%d failed=%d", index, res.Items, len(res.Failed))
		for i, f := range res.Failed {
			if i == 5 {
				logger.Printf("... %d more failures", len(res.Failed)-i)
				break
			}
			logger.Printf("bulk failure id=%s status=%d: %s", f.ID, f.Status, f.Reason)
		}
	} else {
		logger.Printf("bulk indexed %d chunks into %s", indexed, index)
	}
	return indexed, nil
}

// SearchBM25 runs a multi-field match query and returns up to size hits
// in engine order.
func SearchBM25(ctx context.Context, e Engine, index, query string, size int, fields ...string) ([]Hit, error) {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	hits, err := e.Search(ctx, index, query, fields, size)
	if err != nil {
		return nil, err
	}
	if size >= 0 && len(hits) > size {
		hits = hits[:size]
	}
	return hits, nil
}

// Gateway binds an engine to one index and snapshot location.
type Gateway struct {
	Engine     Engine
	Index      string
	WorkingDir string
	Workspace  string
	Cache      *Cache
	Metrics    *Metrics
}

// Enabled reports whether an engine is configured.
func (g *Gateway) Enabled() bool { return g != nil && g.Engine != nil }

func (g *Gateway) observe(op string, start time.Time, err error) {
	if g.Metrics != nil {
		g.Metrics.Observe(op, time.Since(start), err)
	}
}

// EnsureIndex creates the gateway index if missing.
func (g *Gateway) EnsureIndex(ctx context.Context) (err error) {
	if !g.Enabled() {
		return ErrNotConfigured
	}
	start := time.Now()
	defer func() { g.observe("ensure_index", start, err) }()
	return EnsureIndex(ctx, g.Engine, g.Index)
}

// Stats returns the gateway index stats.
func (g *Gateway) Stats(ctx context.Context) (st IndexStats, err error) {
	if !g.Enabled() {
		return IndexStats{}, ErrNotConfigured
	}
	start := time.Now()
	defer func() { g.observe("stats", start, err) }()
	return GetIndexStats(ctx, g.Engine, g.Index)
}

// Reindex ensures the index and bulk loads the snapshot. Cached hits for
// the index are invalidated afterwards.
func (g *Gateway) Reindex(ctx context.Context) (n int, err error) {
	if !g.Enabled() {
		return 0, ErrNotConfigured
	}
	start := time.Now()
	defer func() { g.observe("reindex", start, err) }()
	if err := EnsureIndex(ctx, g.Engine, g.Index); err != nil {
		return 0, err
	}
	n, err = BulkIndexFromSnapshot(ctx, g.Engine, g.Index, g.WorkingDir, g.Workspace)
	if err != nil {
		return 0, err
	}
	if g.Metrics != nil {
		g.Metrics.BulkDocuments.Add(float64(n))
	}
	if g.Cache != nil {
		g.Cache.Invalidate(ctx, g.Index)
	}
	return n, nil
}

// Search runs SearchBM25 against the gateway index, through the cache when
// one is attached.
func (g *Gateway) Search(ctx context.Context, query string, size int, fields ...string) (hits []Hit, err error) {
	if !g.Enabled() {
		return nil, ErrNotConfigured
	}
	if len(fields) == 0 {
		fields = DefaultFields
	}
	start := time.Now()
	defer func() { g.observe("search", start, err) }()
	var key string
	if g.Cache != nil {
		key = CacheKey(query, fields, size)
		if cached, ok := g.Cache.Get(ctx, g.Index, key); ok {
			return cached, nil
		}
	}
	hits, err = SearchBM25(ctx, g.Engine, g.Index, query, size, fields...)
	if err != nil {
		return nil, err
	}
	if g.Cache != nil {
		g.Cache.Set(ctx, g.Index, key, hits)
	}
	return hits, nil
}
