package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SnapshotFile is the chunk-store snapshot name inside a workspace.
const SnapshotFile = "kv_store_text_chunks.json"

// ChunkRecord is one entry of the chunk-store snapshot.
type ChunkRecord struct {
	Content         string `json:"content"`
	FilePath        string `json:"file_path"`
	SourceID        string `json:"source_id"`
	FullDocID       string `json:"full_doc_id"`
	ChunkOrderIndex int    `json:"chunk_order_index"`
	SourceType      string `json:"source_type"`
	CreateTime      int64  `json:"create_time"`
	UpdateTime      int64  `json:"update_time"`
}

// IndexDocument is the indexed projection of a chunk.
type IndexDocument struct {
	Content         string        `json:"content"`
	FilePath        string        `json:"file_path"`
	DocID           string        `json:"doc_id"`
	ChunkID         string        `json:"chunk_id"`
	ChunkOrderIndex int           `json:"chunk_order_index"`
	Metadata        ChunkMetadata `json:"metadata"`
}

// ChunkMetadata is stored as a dynamic object.
type ChunkMetadata struct {
	SourceType string `json:"source_type"`
	CreateTime int64  `json:"create_time"`
	UpdateTime int64  `json:"update_time"`
}

// Project maps a snapshot record to its index document. file_path falls
// back to source_id.
func Project(chunkID string, r ChunkRecord) IndexDocument {
	path := r.FilePath
	if path == "" {
		path = r.SourceID
	}
	return IndexDocument{
		Content:         r.Content,
		FilePath:        path,
		DocID:           r.FullDocID,
		ChunkID:         chunkID,
		ChunkOrderIndex: r.ChunkOrderIndex,
		Metadata: ChunkMetadata{
			SourceType: r.SourceType,
			CreateTime: r.CreateTime,
			UpdateTime: r.UpdateTime,
		},
	}
}

// SnapshotPath returns <workingDir>/<workspace>/kv_store_text_chunks.json.
func SnapshotPath(workingDir, workspace string) string {
	if workspace == "" {
		return filepath.Join(workingDir, SnapshotFile)
	}
	return filepath.Join(workingDir, workspace, SnapshotFile)
}

// LoadSnapshot reads the snapshot at path. A missing file yields an empty
// map.
func LoadSnapshot(path string) (map[string]ChunkRecord, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]ChunkRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	out := map[string]ChunkRecord{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return out, nil
}

// SnapshotActions turns records into upserts keyed by chunk id, in chunk
// id order.
func SnapshotActions(records map[string]ChunkRecord) []BulkAction {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	actions := make([]BulkAction, 0, len(ids))
	for _, id := range ids {
		actions = append(actions, BulkAction{ID: id, Document: Project(id, records[id])})
	}
	return actions
}
