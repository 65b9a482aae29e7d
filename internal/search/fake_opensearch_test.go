package search

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
)

// fakeOpenSearch implements the slice of the OpenSearch REST API the engine
// uses, keeping documents in memory.
type fakeOpenSearch struct {
	t *testing.T

	mu       sync.Mutex
	indices  map[string]map[string]map[string]any
	creates  int
	bulkBody []byte
	refresh  string
	search   map[string]any
	auth     string
	failIDs  map[string]bool
}

func newFakeOpenSearch(t *testing.T) *fakeOpenSearch {
	return &fakeOpenSearch{t: t, indices: map[string]map[string]map[string]any{}, failIDs: map[string]bool{}}
}

func (f *fakeOpenSearch) server() *httptest.Server {
	srv := httptest.NewServer(f)
	f.t.Cleanup(srv.Close)
	return srv
}

func (f *fakeOpenSearch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, _, ok := r.BasicAuth(); ok {
		f.auth = user
	}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	index := parts[0]
	docs, exists := f.indices[index]
	w.Header().Set("Content-Type", "application/json")

	switch {
	case len(parts) == 1 && r.Method == http.MethodHead:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case len(parts) == 1 && r.Method == http.MethodPut:
		if exists {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"type":"resource_already_exists_exception"},"status":400}`)
			return
		}
		f.creates++
		f.indices[index] = map[string]map[string]any{}
		_, _ = io.WriteString(w, `{"acknowledged":true,"index":"`+index+`"}`)
	case len(parts) >= 2 && parts[1] == "_bulk":
		if !exists {
			docs = map[string]map[string]any{}
			f.indices[index] = docs
		}
		f.refresh = r.URL.Query().Get("refresh")
		body, _ := io.ReadAll(r.Body)
		f.bulkBody = body
		var items []map[string]any
		errs := false
		sc := bufio.NewScanner(bytes.NewReader(body))
		sc.Buffer(make([]byte, 1<<20), 1<<20)
		for sc.Scan() {
			var meta map[string]map[string]string
			if err := json.Unmarshal(sc.Bytes(), &meta); err != nil {
				f.t.Errorf("bad action line: %s", sc.Text())
				return
			}
			if !sc.Scan() {
				f.t.Errorf("action without document")
				return
			}
			var doc map[string]any
			_ = json.Unmarshal(sc.Bytes(), &doc)
			id := meta["index"]["_id"]
			if f.failIDs[id] {
				errs = true
				items = append(items, map[string]any{"index": map[string]any{
					"_id": id, "status": 400,
					"error": map[string]any{"type": "mapper_parsing_exception", "reason": "bad doc"},
				}})
				continue
			}
			docs[id] = doc
			items = append(items, map[string]any{"index": map[string]any{"_id": id, "status": 201}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"took": 1, "errors": errs, "items": items})
	case len(parts) >= 2 && parts[1] == "_stats":
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"type":"index_not_found_exception"},"status":404}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"indices": map[string]any{index: map[string]any{"total": map[string]any{"docs": map[string]any{"count": len(docs)}}}},
		})
	case len(parts) >= 2 && parts[1] == "_search":
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"type":"index_not_found_exception"},"status":404}`)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.search = body
		mm := body["query"].(map[string]any)["multi_match"].(map[string]any)
		q := strings.ToLower(mm["query"].(string))
		size := int(body["size"].(float64))
		type scored struct {
			id    string
			score float64
		}
		var found []scored
		for id, doc := range docs {
			content, _ := doc["content"].(string)
			n := strings.Count(strings.ToLower(content), q)
			if n > 0 {
				found = append(found, scored{id, float64(n)})
			}
		}
		sort.Slice(found, func(i, j int) bool {
			if found[i].score == found[j].score {
				return found[i].id < found[j].id
			}
			return found[i].score > found[j].score
		})
		if len(found) > size {
			found = found[:size]
		}
		hits := make([]map[string]any, 0, len(found))
		for _, s := range found {
			hits = append(hits, map[string]any{"_index": index, "_id": s.id, "_score": s.score, "_source": docs[s.id]})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"hits": map[string]any{"total": map[string]any{"value": len(hits)}, "hits": hits}})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
