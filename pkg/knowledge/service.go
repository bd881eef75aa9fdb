// Package knowledge ties the retrieval core together: it chunks and embeds
// documents into collections, retrieves the units most similar to a query
// and assembles them into a labeled context for answer generation.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/kbase/pkg/answer"
	"github.com/papercomputeco/kbase/pkg/assembler"
	"github.com/papercomputeco/kbase/pkg/chunker"
	"github.com/papercomputeco/kbase/pkg/embeddings"
	"github.com/papercomputeco/kbase/pkg/eventstream"
	"github.com/papercomputeco/kbase/pkg/eventstream/nop"
	"github.com/papercomputeco/kbase/pkg/retriever"
	"github.com/papercomputeco/kbase/pkg/vector"
)

// DefaultCollections are the document slots a fresh install exposes.
var DefaultCollections = []string{"file1", "file2"}

// DefaultSimilarityThreshold drops weakly related units.
const DefaultSimilarityThreshold float32 = 0.2

var collectionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidCollectionID reports whether id can name a collection.
func ValidCollectionID(id string) bool {
	return collectionIDPattern.MatchString(id)
}

// Retrieval overrides the query parameters of a single collection.
type Retrieval struct {
	TopK      int
	Threshold *float32
}

// Config configures a Service.
type Config struct {
	Store    *vector.Store
	Embedder embeddings.Embedder

	// Generator is optional; without it Ask returns ErrNoGenerator.
	Generator answer.Generator

	// Publisher is optional; a nop publisher is used when nil.
	Publisher eventstream.Publisher

	// Collections is the ordered list of default collections. Queries
	// without explicit collections search these, in this order.
	Collections []string

	MaxChunkChars       int
	TopK                int
	SimilarityThreshold float32
	MaxContextChars     int

	// Overrides holds per-collection retrieval settings.
	Overrides map[string]Retrieval

	// EmbedTimeout bounds each embedding call. Zero means no extra bound.
	EmbedTimeout time.Duration

	// Preamble replaces answer.DefaultPreamble when set.
	Preamble string

	Logger *slog.Logger
}

// Service is safe for concurrent use.
type Service struct {
	store     *vector.Store
	embedder  embeddings.Embedder
	generator answer.Generator
	publisher eventstream.Publisher

	collections     []string
	maxChunkChars   int
	topK            int
	threshold       float32
	maxContextChars int
	overrides       map[string]Retrieval
	embedTimeout    time.Duration
	preamble        string

	logger *slog.Logger
}

// NewService validates c and creates a Service.
func NewService(c Config) (*Service, error) {
	if c.Store == nil {
		return nil, errors.New("store is required")
	}
	if c.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	collections := c.Collections
	if len(collections) == 0 {
		collections = DefaultCollections
	}
	for _, id := range collections {
		if !ValidCollectionID(id) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCollection, id)
		}
	}

	publisher := c.Publisher
	if publisher == nil {
		publisher = nop.NewPublisher()
	}

	topK := c.TopK
	if topK <= 0 {
		topK = retriever.DefaultTopK
	}

	return &Service{
		store:           c.Store,
		embedder:        c.Embedder,
		generator:       c.Generator,
		publisher:       publisher,
		collections:     slices.Clone(collections),
		maxChunkChars:   c.MaxChunkChars,
		topK:            topK,
		threshold:       c.SimilarityThreshold,
		maxContextChars: c.MaxContextChars,
		overrides:       c.Overrides,
		embedTimeout:    c.EmbedTimeout,
		preamble:        c.Preamble,
		logger:          c.Logger,
	}, nil
}

// CanAnswer reports whether a Generator is configured.
func (s *Service) CanAnswer() bool {
	return s.generator != nil
}

// Hydrate loads every persisted collection into memory.
func (s *Service) Hydrate(ctx context.Context) (int, error) {
	return s.store.Hydrate(ctx)
}

// IngestResult describes a re-processed collection.
type IngestResult struct {
	Collection string `json:"collection"`
	Units      int    `json:"units"`
	Dimension  int    `json:"dimension"`
	Persisted  bool   `json:"persisted"`
}

// Ingest re-processes collection from rawText: the text is chunked and
// embedded, then the collection is replaced wholesale and persisted.
//
// Embedding happens before the collection is touched, so readers keep
// seeing the previous collection until the swap and an embedding failure
// leaves it unchanged. When only persisting fails, the new collection is
// live in memory and both a result and an error wrapping
// vector.ErrPersistence are returned.
func (s *Service) Ingest(ctx context.Context, collection, rawText, source string) (*IngestResult, error) {
	if !ValidCollectionID(collection) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}

	units := chunker.Chunk(rawText, s.maxChunkChars)
	if len(units) == 0 {
		return nil, fmt.Errorf("%w: document has no text", vector.ErrEmptyInput)
	}

	start := time.Now()
	vectors, err := s.embed(ctx, units)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("embedded document",
		"collection", collection,
		"units", len(units),
		"duration", time.Since(start),
	)

	c, err := s.store.Replace(ctx, collection, units, vectors)
	if c == nil {
		return nil, err
	}

	result := &IngestResult{
		Collection: collection,
		Units:      c.Len(),
		Dimension:  c.Dimension(),
		Persisted:  err == nil,
	}

	if err != nil {
		s.logger.Warn("collection updated in memory but not persisted",
			"collection", collection,
			"error", err,
		)
	} else {
		s.logger.Info("collection indexed",
			"collection", collection,
			"units", result.Units,
			"dimension", result.Dimension,
		)
	}

	event := eventstream.NewCollectionIndexedEvent(collection, result.Units, result.Dimension, result.Persisted)
	event.Source = source
	s.publish(ctx, event)

	return result, err
}

// Delete empties collection and removes its persisted artifacts.
func (s *Service) Delete(ctx context.Context, collection string) error {
	if !ValidCollectionID(collection) {
		return fmt.Errorf("%w: %q", ErrInvalidCollection, collection)
	}

	if err := s.store.Delete(ctx, collection); err != nil {
		return err
	}

	s.logger.Info("collection deleted", "collection", collection)
	s.publish(ctx, eventstream.NewCollectionDeletedEvent(collection))
	return nil
}

// CollectionInfo summarizes one collection.
type CollectionInfo struct {
	ID        string `json:"id"`
	Units     int    `json:"units"`
	Dimension int    `json:"dimension"`
}

// Collections lists the default collections, in configured order, followed
// by any other known collection in id order.
func (s *Service) Collections() []CollectionInfo {
	out := make([]CollectionInfo, 0, len(s.collections))
	for _, id := range s.targets(nil) {
		c := s.store.Snapshot(id)
		out = append(out, CollectionInfo{ID: id, Units: c.Len(), Dimension: c.Dimension()})
	}
	return out
}

// Search retrieves the best matching units of every requested collection.
// With no collections given, the default collections are searched. The
// returned sections follow the requested order and are labeled with the
// collection id.
func (s *Service) Search(ctx context.Context, query string, collections []string) ([]assembler.Section, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", vector.ErrEmptyInput)
	}

	ids := s.targets(collections)
	for _, id := range ids {
		if !ValidCollectionID(id) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCollection, id)
		}
	}

	snapshots := make([]*vector.Collection, len(ids))
	populated := false
	for i, id := range ids {
		snapshots[i] = s.store.Snapshot(id)
		if !snapshots[i].IsEmpty() {
			populated = true
		}
	}
	if !populated {
		return nil, ErrNoDocuments
	}

	vectors, err := s.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	queryVector := vectors[0]

	sections := make([]assembler.Section, len(ids))
	var g errgroup.Group
	for i, c := range snapshots {
		topK, threshold := s.retrieval(ids[i])
		g.Go(func() error {
			results, err := retriever.Search(c, queryVector, topK, threshold)
			if err != nil {
				return err
			}
			sections[i] = assembler.Section{Label: ids[i], Results: results}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("search complete", "collections", ids, "query_chars", len(query))
	return sections, nil
}

// ContextResult is an assembled context plus the results behind it.
type ContextResult struct {
	Query     string              `json:"query"`
	Context   string              `json:"context"`
	Sources   []retriever.Result  `json:"sources"`
	Labels    []string            `json:"labels"`
	Truncated bool                `json:"truncated"`
	Sections  []assembler.Section `json:"-"`
}

// Context retrieves and assembles the labeled context for query.
func (s *Service) Context(ctx context.Context, query string, collections []string) (*ContextResult, error) {
	sections, err := s.Search(ctx, query, collections)
	if err != nil {
		return nil, err
	}

	assembled := assembler.Assemble(sections, s.maxContextChars)
	if assembled.Truncated {
		s.logger.Debug("context truncated",
			"max_context_chars", s.maxContextChars,
			"units_kept", assembled.Units,
		)
	}

	return &ContextResult{
		Query:     strings.TrimSpace(query),
		Context:   assembled.Context,
		Sources:   includedSources(sections, assembled.Units),
		Labels:    assembled.Labels,
		Truncated: assembled.Truncated,
		Sections:  sections,
	}, nil
}

// includedSources flattens sections in order, keeping the first n results,
// which are exactly the units the assembler kept.
func includedSources(sections []assembler.Section, n int) []retriever.Result {
	out := make([]retriever.Result, 0, n)
	for _, section := range sections {
		for _, r := range section.Results {
			if len(out) == n {
				return out
			}
			out = append(out, r)
		}
	}
	return out
}

// Answer is a generated answer with its supporting context.
type Answer struct {
	Query     string             `json:"query"`
	Answer    string             `json:"answer"`
	Context   string             `json:"context"`
	Sources   []retriever.Result `json:"sources"`
	Truncated bool               `json:"truncated"`
	Timestamp time.Time          `json:"timestamp"`
}

// Ask answers query from the assembled context of the given collections.
func (s *Service) Ask(ctx context.Context, query string, collections []string) (*Answer, error) {
	if s.generator == nil {
		return nil, ErrNoGenerator
	}

	cr, err := s.Context(ctx, query, collections)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	text, err := s.generator.Generate(ctx, answer.Prompt{
		Preamble: s.preamble,
		Context:  cr.Context,
		Question: cr.Query,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("answer generated",
		"duration", time.Since(start),
		"context_chars", len(cr.Context),
	)

	return &Answer{
		Query:     cr.Query,
		Answer:    text,
		Context:   cr.Context,
		Sources:   cr.Sources,
		Truncated: cr.Truncated,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Close releases the store, the embedder and the publisher.
func (s *Service) Close() error {
	return errors.Join(
		s.store.Close(),
		s.embedder.Close(),
		s.publisher.Close(),
	)
}

// targets resolves the collections a query addresses: the requested ones in
// request order, or the defaults followed by any other known collection.
func (s *Service) targets(requested []string) []string {
	if len(requested) > 0 {
		out := make([]string, 0, len(requested))
		for _, id := range requested {
			if !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
		return out
	}

	out := slices.Clone(s.collections)
	for _, c := range s.store.Collections() {
		if !slices.Contains(out, c.ID()) {
			out = append(out, c.ID())
		}
	}
	return out
}

func (s *Service) retrieval(id string) (int, float32) {
	topK, threshold := s.topK, s.threshold
	if o, ok := s.overrides[id]; ok {
		if o.TopK > 0 {
			topK = o.TopK
		}
		if o.Threshold != nil {
			threshold = *o.Threshold
		}
	}
	return topK, threshold
}

func (s *Service) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.embedTimeout)
		defer cancel()
	}
	return embeddings.EmbedAll(ctx, s.embedder, texts)
}

func (s *Service) publish(ctx context.Context, event *eventstream.CollectionEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish collection event",
			"event_type", event.EventType,
			"collection", event.Collection,
			"error", err,
		)
	}
}
