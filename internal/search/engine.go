// Package search indexes chunk-store snapshots into a full-text engine and
// runs BM25 keyword queries against it.
package search

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrIndexNotFound is returned by engines when the index does not exist.
	ErrIndexNotFound = errors.New("index not found")
	// ErrNotConfigured means no engine host was configured.
	ErrNotConfigured = errors.New("search engine not configured")
)

// Engine is the search backend the gateway talks to.
type Engine interface {
	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, spec IndexSpec) error
	Bulk(ctx context.Context, index string, actions []BulkAction, refresh bool) (BulkResult, error)
	Search(ctx context.Context, index, query string, fields []string, size int) ([]Hit, error)
	Stats(ctx context.Context, index string) (IndexStats, error)
}

// IndexSpec describes index settings and field mappings.
type IndexSpec struct {
	Shards   int
	Replicas int
	Fields   []FieldSpec
}

// FieldType is a mapping type.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldKeyword FieldType = "keyword"
	FieldInteger FieldType = "integer"
	FieldObject  FieldType = "object"
)

// FieldSpec maps one top-level field.
type FieldSpec struct {
	Name string
	Type FieldType
}

// ChunkIndexSpec is the fixed schema for chunk documents.
func ChunkIndexSpec() IndexSpec {
	return IndexSpec{
		Shards:   1,
		Replicas: 0,
		Fields: []FieldSpec{
			{Name: "content", Type: FieldText},
			{Name: "file_path", Type: FieldKeyword},
			{Name: "doc_id", Type: FieldKeyword},
			{Name: "chunk_id", Type: FieldKeyword},
			{Name: "chunk_order_index", Type: FieldInteger},
			{Name: "metadata", Type: FieldObject},
		},
	}
}

// Body renders the index settings and mappings as a create-index request body.
func (s IndexSpec) Body() map[string]any {
	props := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		m := map[string]any{"type": string(f.Type)}
		if f.Type == FieldObject {
			m["enabled"] = true
		}
		props[f.Name] = m
	}
	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"number_of_shards":   s.Shards,
				"number_of_replicas": s.Replicas,
			},
		},
		"mappings": map[string]any{"properties": props},
	}
}

// BulkAction upserts Document under ID.
type BulkAction struct {
	ID       string
	Document any
}

// BulkResult summarises a bulk call.
type BulkResult struct {
	Items  int
	Errors bool
	Failed []BulkFailure
}

// BulkFailure is one rejected item.
type BulkFailure struct {
	ID     string
	Status int
	Reason string
}

// Hit is one ranked search result. Its fields are engine-defined.
type Hit struct {
	Index  string         `json:"_index"`
	ID     string         `json:"_id"`
	Score  float64        `json:"_score"`
	Source map[string]any `json:"_source"`
}

// IndexStats holds document statistics for an index.
type IndexStats struct {
	Count int64 `json:"count"`
}

// EngineError is a non-2xx engine response.
type EngineError struct {
	Op     string
	Status int
	Body   string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("search %s: status %d: %s", e.Op, e.Status, e.Body)
}
