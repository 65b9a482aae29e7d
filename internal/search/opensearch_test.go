package search

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeHost(t *testing.T) {
	cases := []struct {
		host   string
		verify bool
		want   string
	}{
		{"localhost:9200", true, "https://localhost:9200"},
		{"localhost:9200", false, "http://localhost:9200"},
		{"http://es:9200", true, "http://es:9200"},
		{"https://es:9200", false, "https://es:9200"},
		{"  ", true, ""},
	}
	for _, tc := range cases {
		if got := NormalizeHost(tc.host, tc.verify); got != tc.want {
			t.Errorf("NormalizeHost(%q,%v)=%q want %q", tc.host, tc.verify, got, tc.want)
		}
	}
}

func TestBuildClientWithoutHost(t *testing.T) {
	c, err := BuildClient(ClientConfig{})
	if err != nil || c != nil {
		t.Fatalf("expected nil client and no error, got %v %v", c, err)
	}
}

func newTestOpenSearch(t *testing.T) (*OpenSearch, *fakeOpenSearch) {
	t.Helper()
	fake := newFakeOpenSearch(t)
	srv := fake.server()
	c, err := BuildClient(ClientConfig{Host: srv.URL, User: "admin", Password: "pw", VerifyCerts: true})
	if err != nil {
		t.Fatalf("BuildClient: %v", err)
	}
	return c, fake
}

func TestOpenSearchEnsureIndexIdempotent(t *testing.T) {
	c, fake := newTestOpenSearch(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := EnsureIndex(ctx, c, "chunks"); err != nil {
			t.Fatalf("EnsureIndex #%d: %v", i, err)
		}
	}
	if fake.creates != 1 {
		t.Fatalf("expected one create, got %d", fake.creates)
	}
	if fake.auth != "admin" {
		t.Fatalf("expected basic auth user admin, got %q", fake.auth)
	}
}

func TestOpenSearchCreateIndexRace(t *testing.T) {
	c, _ := newTestOpenSearch(t)
	ctx := context.Background()
	if err := c.CreateIndex(ctx, "chunks", ChunkIndexSpec()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := c.CreateIndex(ctx, "chunks", ChunkIndexSpec()); err != nil {
		t.Fatalf("already-exists must not fail: %v", err)
	}
}

func TestOpenSearchStatsMissingIndex(t *testing.T) {
	c, _ := newTestOpenSearch(t)
	ctx := context.Background()
	if _, err := c.Stats(ctx, "nope"); !errors.Is(err, ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound from engine, got %v", err)
	}
	st, err := GetIndexStats(ctx, c, "nope")
	if err != nil || st.Count != 0 {
		t.Fatalf("expected count 0 without error, got %+v %v", st, err)
	}
}

func TestOpenSearchBulkFromSnapshotOverwrites(t *testing.T) {
	c, fake := newTestOpenSearch(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeSnapshot(t, dir, "", testChunks)

	if err := EnsureIndex(ctx, c, "chunks"); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	for i := 0; i < 2; i++ {
		n, err := BulkIndexFromSnapshot(ctx, c, "chunks", dir, "")
		if err != nil {
			t.Fatalf("bulk #%d: %v", i, err)
		}
		if n != len(testChunks) {
			t.Fatalf("bulk #%d: indexed %d want %d", i, n, len(testChunks))
		}
	}
	st, err := GetIndexStats(ctx, c, "chunks")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Count != int64(len(testChunks)) {
		t.Fatalf("expected %d docs after two runs, got %d", len(testChunks), st.Count)
	}
	if fake.refresh != "true" {
		t.Fatalf("expected refresh=true, got %q", fake.refresh)
	}

	// body is NDJSON: action line, document line
	sc := bufio.NewScanner(bytes.NewReader(fake.bulkBody))
	var lines int
	for sc.Scan() {
		lines++
		if lines == 1 {
			var meta map[string]map[string]string
			if err := json.Unmarshal(sc.Bytes(), &meta); err != nil {
				t.Fatalf("action line: %v", err)
			}
			if meta["index"]["_id"] != "chunk-a" || meta["index"]["_index"] != "chunks" {
				t.Fatalf("unexpected action %v", meta)
			}
		}
		if lines == 2 {
			var doc IndexDocument
			if err := json.Unmarshal(sc.Bytes(), &doc); err != nil {
				t.Fatalf("doc line: %v", err)
			}
			if doc.ChunkID != "chunk-a" || doc.Metadata.CreateTime != 100 {
				t.Fatalf("unexpected doc %+v", doc)
			}
		}
	}
	if lines != 2*len(testChunks) {
		t.Fatalf("expected %d lines, got %d", 2*len(testChunks), lines)
	}
}

func TestOpenSearchBulkPartialFailure(t *testing.T) {
	c, fake := newTestOpenSearch(t)
	fake.failIDs["chunk-b"] = true
	dir := t.TempDir()
	writeSnapshot(t, dir, "ws", testChunks)

	n, err := BulkIndexFromSnapshot(context.Background(), c, "chunks", dir, "ws")
	if err != nil {
		t.Fatalf("partial failures must not be returned: %v", err)
	}
	if n != len(testChunks)-1 {
		t.Fatalf("expected %d indexed, got %d", len(testChunks)-1, n)
	}
}

func TestOpenSearchBulkEmptySnapshot(t *testing.T) {
	c, fake := newTestOpenSearch(t)
	n, err := BulkIndexFromSnapshot(context.Background(), c, "chunks", t.TempDir(), "")
	if err != nil || n != 0 {
		t.Fatalf("expected 0 without error, got %d %v", n, err)
	}
	if fake.bulkBody != nil {
		t.Fatalf("no bulk call expected for empty snapshot")
	}
}

func TestOpenSearchSearchBM25(t *testing.T) {
	c, fake := newTestOpenSearch(t)
	ctx := context.Background()
	dir := t.TempDir()
	writeSnapshot(t, dir, "", testChunks)
	if err := EnsureIndex(ctx, c, "chunks"); err != nil {
		t.Fatal(err)
	}
	if _, err := BulkIndexFromSnapshot(ctx, c, "chunks", dir, ""); err != nil {
		t.Fatal(err)
	}

	hits, err := SearchBM25(ctx, c, "chunks", "bm25", 1)
	if err != nil {
		t.Fatalf("SearchBM25: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "chunk-c" {
		t.Fatalf("expected chunk-c first, got %+v", hits)
	}
	if hits[0].Source["file_path"] != "docs/c.md" {
		t.Fatalf("expected source passthrough, got %+v", hits[0].Source)
	}
	mm := fake.search["query"].(map[string]any)["multi_match"].(map[string]any)
	fields := mm["fields"].([]any)
	if len(fields) != 1 || fields[0] != "content" {
		t.Fatalf("expected default fields [content], got %v", fields)
	}

	if _, err := SearchBM25(ctx, c, "missing", "bm25", 5); !errors.Is(err, ErrIndexNotFound) {
		t.Fatalf("expected index error to propagate, got %v", err)
	}
}

func TestOpenSearchServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer srv.Close()
	c, err := BuildClient(ClientConfig{Host: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	var engErr *EngineError
	if err := EnsureIndex(context.Background(), c, "chunks"); !errors.As(err, &engErr) || engErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 engine error, got %v", err)
	}
	if _, err := GetIndexStats(context.Background(), c, "chunks"); !errors.As(err, &engErr) {
		t.Fatalf("expected stats error to propagate, got %v", err)
	}
}

func TestOpenSearchInsecureTLS(t *testing.T) {
	fake := newFakeOpenSearch(t)
	srv := httptest.NewTLSServer(fake)
	defer srv.Close()
	c, err := BuildClient(ClientConfig{Host: srv.URL, VerifyCerts: false})
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := c.IndexExists(context.Background(), "chunks"); err != nil || ok {
		t.Fatalf("expected reachable server with no index, got %v %v", ok, err)
	}
}
