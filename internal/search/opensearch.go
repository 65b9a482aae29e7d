package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// RequestTimeout bounds every engine call.
const RequestTimeout = 30 * time.Second

// ClientConfig holds OpenSearch connection settings.
type ClientConfig struct {
	Host        string
	User        string
	Password    string
	VerifyCerts bool
}

// OpenSearch is an Engine backed by an OpenSearch cluster.
type OpenSearch struct {
	client  *opensearch.Client
	address string
	timeout time.Duration
}

// NormalizeHost adds a scheme when host has none: https when certificates
// are verified, http otherwise.
func NormalizeHost(host string, verifyCerts bool) string {
	host = strings.TrimSpace(host)
	if host == "" || strings.Contains(host, "://") {
		return host
	}
	if verifyCerts {
		return "https://" + host
	}
	return "http://" + host
}

// BuildClient connects to OpenSearch. An empty host is not an error: it
// returns nil and logs that BM25 search is disabled.
func BuildClient(cfg ClientConfig) (*OpenSearch, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		logger.Printf("warning: search host not configured; BM25 search is disabled")
		return nil, nil
	}
	address := NormalizeHost(cfg.Host, cfg.VerifyCerts)
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: RequestTimeout,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: !cfg.VerifyCerts}, //nolint:gosec // opt-in via verify_certs=false
	}
	osCfg := opensearch.Config{
		Addresses: []string{address},
		Transport: transport,
	}
	if cfg.User != "" {
		osCfg.Username = cfg.User
		osCfg.Password = cfg.Password
	}
	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("opensearch client: %w", err)
	}
	return &OpenSearch{client: client, address: address, timeout: RequestTimeout}, nil
}

// Address returns the normalized engine address.
func (o *OpenSearch) Address() string { return o.address }

func (o *OpenSearch) IndexExists(ctx context.Context, index string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	res, err := opensearchapi.IndicesExistsRequest{Index: []string{index}}.Do(ctx, o.client)
	if err != nil {
		return false, fmt.Errorf("index exists: %w", err)
	}
	defer closeBody(res)
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, engineError("index exists", res)
	}
}

func (o *OpenSearch) CreateIndex(ctx context.Context, index string, spec IndexSpec) error {
	body, err := json.Marshal(spec.Body())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	res, err := opensearchapi.IndicesCreateRequest{Index: index, Body: bytes.NewReader(body)}.Do(ctx, o.client)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer closeBody(res)
	if res.IsError() {
		e := engineError("create index", res)
		// lost a creation race with another process
		if strings.Contains(e.Body, "resource_already_exists_exception") {
			return nil
		}
		return e
	}
	return nil
}

func (o *OpenSearch) Bulk(ctx context.Context, index string, actions []BulkAction, refresh bool) (BulkResult, error) {
	body, err := EncodeBulk(index, actions)
	if err != nil {
		return BulkResult{}, err
	}
	req := opensearchapi.BulkRequest{Index: index, Body: bytes.NewReader(body)}
	if refresh {
		req.Refresh = "true"
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	res, err := req.Do(ctx, o.client)
	if err != nil {
		return BulkResult{}, fmt.Errorf("bulk: %w", err)
	}
	defer closeBody(res)
	if res.IsError() {
		return BulkResult{}, engineError("bulk", res)
	}
	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return BulkResult{}, fmt.Errorf("decode bulk response: %w", err)
	}
	return parsed.result(), nil
}

func (o *OpenSearch) Search(ctx context.Context, index, query string, fields []string, size int) ([]Hit, error) {
	body, err := json.Marshal(map[string]any{
		"size": size,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  query,
				"fields": fields,
			},
		},
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	res, err := opensearchapi.SearchRequest{Index: []string{index}, Body: bytes.NewReader(body)}.Do(ctx, o.client)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer closeBody(res)
	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("search %s: %w", index, ErrIndexNotFound)
	}
	if res.IsError() {
		return nil, engineError("search", res)
	}
	var parsed struct {
		Hits struct {
			Hits []Hit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return parsed.Hits.Hits, nil
}

func (o *OpenSearch) Stats(ctx context.Context, index string) (IndexStats, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	res, err := opensearchapi.IndicesStatsRequest{Index: []string{index}, Metric: []string{"docs"}}.Do(ctx, o.client)
	if err != nil {
		return IndexStats{}, fmt.Errorf("index stats: %w", err)
	}
	defer closeBody(res)
	if res.StatusCode == http.StatusNotFound {
		return IndexStats{}, fmt.Errorf("stats %s: %w", index, ErrIndexNotFound)
	}
	if res.IsError() {
		return IndexStats{}, engineError("index stats", res)
	}
	var parsed struct {
		Indices map[string]struct {
			Total struct {
				Docs struct {
					Count int64 `json:"count"`
				} `json:"docs"`
			} `json:"total"`
		} `json:"indices"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return IndexStats{}, fmt.Errorf("decode stats response: %w", err)
	}
	return IndexStats{Count: parsed.Indices[index].Total.Docs.Count}, nil
}

// EncodeBulk renders actions as an NDJSON bulk body of index/document pairs.
func EncodeBulk(index string, actions []BulkAction) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, a := range actions {
		meta := map[string]any{"index": map[string]any{"_index": index, "_id": a.ID}}
		if err := enc.Encode(meta); err != nil {
			return nil, err
		}
		if err := enc.Encode(a.Document); err != nil {
			return nil, fmt.Errorf("encode document %s: %w", a.ID, err)
		}
	}
	return buf.Bytes(), nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

func (b bulkResponse) result() BulkResult {
	out := BulkResult{Items: len(b.Items), Errors: b.Errors}
	for _, item := range b.Items {
		for _, op := range item {
			if op.Error == nil {
				continue
			}
			out.Failed = append(out.Failed, BulkFailure{
				ID:     op.ID,
				Status: op.Status,
				Reason: op.Error.Type + ": " + op.Error.Reason,
			})
		}
	}
	return out
}

func engineError(op string, res *opensearchapi.Response) *EngineError {
	var body string
	if res.Body != nil {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		body = string(b)
	}
	return &EngineError{Op: op, Status: res.StatusCode, Body: body}
}

func closeBody(res *opensearchapi.Response) {
	if res != nil && res.Body != nil {
		_ = res.Body.Close()
	}
}
