// Package chroma provides a collection persister on Chroma's REST API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/kbase/pkg/vector"
)

const (
	// CollectionPrefix namespaces kbase collections inside the Chroma database.
	CollectionPrefix = "kbase-"

	apiBase = "/api/v2/tenants/default_tenant/databases/default_database"

	defaultMaxRetries    = 5
	defaultRetryDelay    = 500 * time.Millisecond
	defaultMaxRetryDelay = 5 * time.Second
)

// Persister implements vector.Persister on Chroma. Each kbase collection maps
// to one Chroma collection: texts are stored as documents, vectors as
// embeddings and the unit position as metadata.
type Persister struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Ensure Persister implements vector.Persister.
var _ vector.Persister = (*Persister)(nil)

// Config holds configuration for the Chroma persister.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// Timeout bounds every HTTP request. Defaults to 60s.
	Timeout time.Duration

	// MaxRetries is how many times the startup heartbeat is attempted.
	MaxRetries int

	// RetryDelay is the first backoff delay; it doubles up to MaxRetryDelay.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// NewPersister creates a Chroma persister, waiting for the server to answer
// its heartbeat with exponential backoff.
func NewPersister(c Config, logger *slog.Logger) (*Persister, error) {
	if c.URL == "" {
		return nil, errors.New("chroma URL is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	delay := c.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	maxDelay := c.MaxRetryDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxRetryDelay
	}

	p := &Persister{
		baseURL:    strings.TrimRight(c.URL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = p.heartbeat(context.Background())
		if lastErr == nil {
			logger.Info("connected to Chroma", "url", c.URL, "attempts", attempt)
			return p, nil
		}

		logger.Debug("chroma not ready", "attempt", attempt, "error", lastErr)
		if attempt < maxRetries {
			time.Sleep(delay)
			delay = min(delay*2, maxDelay)
		}
	}

	return nil, fmt.Errorf("connecting to chroma after %d attempts: %w", maxRetries, lastErr)
}

func (p *Persister) heartbeat(ctx context.Context) error {
	status, err := p.do(ctx, http.MethodGet, "/api/v2/heartbeat", nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("heartbeat status %d", status)
	}
	return nil
}

// Save drops and recreates the Chroma collection for c, then adds every unit.
func (p *Persister) Save(ctx context.Context, c *vector.Collection) error {
	if err := p.Delete(ctx, c.ID()); err != nil {
		return err
	}
	if c.IsEmpty() {
		return nil
	}

	var created chromaCollection
	status, err := p.do(ctx, http.MethodPost, apiBase+"/collections", chromaCreateRequest{
		Name:     CollectionPrefix + c.ID(),
		Metadata: map[string]any{"hnsw:space": "cosine", "dimension": c.Dimension()},
	}, &created)
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("failed to create collection: status %d", status)
	}

	req := chromaAddRequest{
		IDs:        make([]string, c.Len()),
		Embeddings: c.Vectors(),
		Metadatas:  make([]map[string]any, c.Len()),
		Documents:  c.Texts(),
	}
	for i := range c.Len() {
		req.IDs[i] = strconv.Itoa(i)
		req.Metadatas[i] = map[string]any{"position": i}
	}

	status, err = p.do(ctx, http.MethodPost, apiBase+"/collections/"+created.ID+"/add", req, nil)
	if err != nil {
		return fmt.Errorf("adding units: %w", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("failed to add units: status %d", status)
	}

	p.logger.Debug("saved collection to chroma", "collection", c.ID(), "units", c.Len())
	return nil
}

// Load reads every record of the collection and orders it by position.
func (p *Persister) Load(ctx context.Context, id string) (*vector.Collection, error) {
	var coll chromaCollection
	status, err := p.do(ctx, http.MethodGet, apiBase+"/collections/"+CollectionPrefix+id, nil, &coll)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching collection: %v", vector.ErrCorruptIndex, err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: collection %s", vector.ErrNotFound, id)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: fetching collection: status %d", vector.ErrCorruptIndex, status)
	}

	var got chromaGetResponse
	status, err = p.do(ctx, http.MethodPost, apiBase+"/collections/"+coll.ID+"/get", chromaGetRequest{
		Include: []string{"documents", "embeddings", "metadatas"},
	}, &got)
	if err != nil {
		return nil, fmt.Errorf("%w: reading records: %v", vector.ErrCorruptIndex, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: reading records: status %d", vector.ErrCorruptIndex, status)
	}

	n := len(got.IDs)
	if len(got.Documents) != n || len(got.Embeddings) != n || len(got.Metadatas) != n {
		return nil, fmt.Errorf("%w: %d ids, %d documents, %d embeddings",
			vector.ErrCorruptIndex, n, len(got.Documents), len(got.Embeddings))
	}

	texts := make([]string, n)
	vectors := make([][]float32, n)
	seen := make([]bool, n)
	for i := range n {
		pos, ok := position(got.Metadatas[i])
		if !ok || pos < 0 || pos >= n || seen[pos] || got.Documents[i] == nil {
			return nil, fmt.Errorf("%w: bad record %s", vector.ErrCorruptIndex, got.IDs[i])
		}
		seen[pos] = true
		texts[pos] = *got.Documents[i]
		vectors[pos] = got.Embeddings[i]
	}

	c, err := vector.NewCollection(id, texts, vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrCorruptIndex, err)
	}
	return c, nil
}

// position reads the numeric "position" metadata, which JSON decodes as float64.
func position(meta map[string]any) (int, bool) {
	switch v := meta["position"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// Delete drops the Chroma collection. A missing collection is not an error.
func (p *Persister) Delete(ctx context.Context, id string) error {
	status, err := p.do(ctx, http.MethodDelete, apiBase+"/collections/"+CollectionPrefix+id, nil, nil)
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	// Chroma answers 404, or 400 on older builds, for a missing collection.
	if status != http.StatusOK && status != http.StatusNotFound && status != http.StatusBadRequest {
		return fmt.Errorf("failed to delete collection: status %d", status)
	}
	return nil
}

// List returns the kbase collections present in Chroma.
func (p *Persister) List(ctx context.Context) ([]string, error) {
	var colls []chromaCollection
	status, err := p.do(ctx, http.MethodGet, apiBase+"/collections", nil, &colls)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("failed to list collections: status %d", status)
	}

	var ids []string
	for _, c := range colls {
		if id, ok := strings.CutPrefix(c.Name, CollectionPrefix); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close releases resources held by the persister.
func (p *Persister) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// do sends a JSON request and decodes a 2xx response into out when non-nil.
// Non-2xx bodies are logged at debug level and only the status is returned.
func (p *Persister) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(resp.Body)
		p.logger.Debug("chroma request failed", "method", method, "path", path, "status", resp.StatusCode, "body", string(msg))
		return resp.StatusCode, nil
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
