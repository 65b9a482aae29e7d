package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/mapping"
	"github.com/blevesearch/bleve/search/query"
)

// Bleve is an embedded Engine. With an empty dir indices live in memory.
type Bleve struct {
	dir     string
	mu      sync.RWMutex
	indices map[string]bleve.Index
}

// NewBleve returns an embedded engine storing indices under dir.
func NewBleve(dir string) *Bleve {
	return &Bleve{dir: dir, indices: make(map[string]bleve.Index)}
}

func (b *Bleve) path(index string) string { return filepath.Join(b.dir, index) }

// lookup returns an open index, opening it from disk if needed.
func (b *Bleve) lookup(index string) (bleve.Index, error) {
	b.mu.RLock()
	idx, ok := b.indices[index]
	b.mu.RUnlock()
	if ok {
		return idx, nil
	}
	if b.dir == "" {
		return nil, ErrIndexNotFound
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx, ok := b.indices[index]; ok {
		return idx, nil
	}
	if _, err := os.Stat(b.path(index)); errors.Is(err, os.ErrNotExist) {
		return nil, ErrIndexNotFound
	}
	idx, err := bleve.Open(b.path(index))
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", index, err)
	}
	b.indices[index] = idx
	return idx, nil
}

func (b *Bleve) IndexExists(_ context.Context, index string) (bool, error) {
	_, err := b.lookup(index)
	if errors.Is(err, ErrIndexNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (b *Bleve) CreateIndex(_ context.Context, index string, spec IndexSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.indices[index]; ok {
		return nil
	}
	m := bleveMapping(spec)
	var (
		idx bleve.Index
		err error
	)
	if b.dir == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if err := os.MkdirAll(b.dir, 0o755); err != nil {
			return err
		}
		idx, err = bleve.New(b.path(index), m)
	}
	if err != nil {
		return fmt.Errorf("create index %s: %w", index, err)
	}
	b.indices[index] = idx
	return nil
}

func (b *Bleve) Bulk(_ context.Context, index string, actions []BulkAction, _ bool) (BulkResult, error) {
	idx, err := b.lookup(index)
	if err != nil {
		return BulkResult{}, err
	}
	res := BulkResult{Items: len(actions)}
	batch := idx.NewBatch()
	for _, a := range actions {
		doc, err := toMap(a.Document)
		if err == nil {
			err = batch.Index(a.ID, doc)
		}
		if err != nil {
			res.Errors = true
			res.Failed = append(res.Failed, BulkFailure{ID: a.ID, Status: 400, Reason: err.Error()})
		}
	}
	// bleve batches are visible to readers once applied
	if err := idx.Batch(batch); err != nil {
		return BulkResult{}, fmt.Errorf("bulk: %w", err)
	}
	return res, nil
}

func (b *Bleve) Search(_ context.Context, index, q string, fields []string, size int) ([]Hit, error) {
	idx, err := b.lookup(index)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	matches := make([]query.Query, 0, len(fields))
	for _, f := range fields {
		mq := bleve.NewMatchQuery(q)
		mq.SetField(f)
		matches = append(matches, mq)
	}
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(matches...), size, 0, false)
	req.Fields = []string{"*"}
	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{Index: index, ID: h.ID, Score: h.Score, Source: h.Fields})
	}
	return hits, nil
}

func (b *Bleve) Stats(_ context.Context, index string) (IndexStats, error) {
	idx, err := b.lookup(index)
	if err != nil {
		return IndexStats{}, fmt.Errorf("stats %s: %w", index, err)
	}
	n, err := idx.DocCount()
	if err != nil {
		return IndexStats{}, err
	}
	return IndexStats{Count: int64(n)}, nil
}

// Close closes every open index.
func (b *Bleve) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var first error
	for name, idx := range b.indices {
		if err := idx.Close(); err != nil && first == nil {
			first = err
		}
		delete(b.indices, name)
	}
	return first
}

func bleveMapping(spec IndexSpec) *mapping.IndexMappingImpl {
	doc := bleve.NewDocumentMapping()
	for _, f := range spec.Fields {
		switch f.Type {
		case FieldText:
			fm := bleve.NewTextFieldMapping()
			fm.Analyzer = standard.Name
			doc.AddFieldMappingsAt(f.Name, fm)
		case FieldKeyword:
			fm := bleve.NewTextFieldMapping()
			fm.Analyzer = keyword.Name
			doc.AddFieldMappingsAt(f.Name, fm)
		case FieldInteger:
			doc.AddFieldMappingsAt(f.Name, bleve.NewNumericFieldMapping())
		case FieldObject:
			doc.AddSubDocumentMapping(f.Name, bleve.NewDocumentMapping())
		}
	}
	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

func toMap(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
