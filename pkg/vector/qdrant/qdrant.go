// Package qdrant provides a collection persister on Qdrant's gRPC API.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/kbase/pkg/vector"
)

const (
	// CollectionPrefix namespaces kbase collections inside Qdrant.
	CollectionPrefix = "kbase_"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	pageSize = 256
)

// Config holds configuration for the Qdrant persister.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Persister implements vector.Persister on Qdrant. Each kbase collection is a
// Qdrant collection whose point ids are unit positions; the text lives in the
// payload and the embedding in the point vector.
type Persister struct {
	client *qdrant.Client
	logger *slog.Logger
}

// Ensure Persister implements vector.Persister.
var _ vector.Persister = (*Persister)(nil)

// NewPersister connects to Qdrant and checks that it answers.
func NewPersister(ctx context.Context, c Config, logger *slog.Logger) (*Persister, error) {
	if c.Host == "" {
		return nil, errors.New("qdrant host is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	port := c.Port
	if port == 0 {
		port = DefaultPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   c.Host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	health, err := client.HealthCheck(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant health check: %w", err)
	}

	logger.Info("connected to Qdrant",
		"host", c.Host,
		"port", port,
		"version", health.GetVersion(),
	)

	return &Persister{client: client, logger: logger}, nil
}

func collectionName(id string) string {
	return CollectionPrefix + id
}

// Save drops and recreates the Qdrant collection for c, then upserts every unit.
func (p *Persister) Save(ctx context.Context, c *vector.Collection) error {
	if err := p.Delete(ctx, c.ID()); err != nil {
		return err
	}
	if c.IsEmpty() {
		return nil
	}

	name := collectionName(c.ID())

	// Cosine collections store normalized vectors; Dot keeps them as given.
	if err := p.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(c.Dimension()),
			Distance: qdrant.Distance_Dot,
		}),
	}); err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	wait := true
	for start := 0; start < c.Len(); start += pageSize {
		end := min(start+pageSize, c.Len())

		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDNum(uint64(i)),
				Vectors: qdrant.NewVectors(c.Vector(i)...),
				Payload: qdrant.NewValueMap(map[string]any{
					"text":     c.Text(i),
					"position": i,
				}),
			})
		}

		if _, err := p.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Wait:           &wait,
			Points:         points,
		}); err != nil {
			return fmt.Errorf("upserting units %d-%d: %w", start, end-1, err)
		}
	}

	p.logger.Debug("saved collection to qdrant", "collection", c.ID(), "units", c.Len())
	return nil
}

// Load scrolls every point of the collection in id order.
func (p *Persister) Load(ctx context.Context, id string) (*vector.Collection, error) {
	name := collectionName(id)

	exists, err := p.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: checking collection %s: %v", vector.ErrCorruptIndex, name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: collection %s", vector.ErrNotFound, id)
	}

	exact := true
	count, err := p.client.Count(ctx, &qdrant.CountPoints{CollectionName: name, Exact: &exact})
	if err != nil {
		return nil, fmt.Errorf("%w: counting points: %v", vector.ErrCorruptIndex, err)
	}

	texts := make([]string, 0, count)
	vectors := make([][]float32, 0, count)
	limit := uint32(pageSize)

	for uint64(len(texts)) < count {
		points, err := p.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: name,
			Offset:         qdrant.NewIDNum(uint64(len(texts))),
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: scrolling points: %v", vector.ErrCorruptIndex, err)
		}
		if len(points) == 0 {
			break
		}

		for _, pt := range points {
			if pt.GetId().GetNum() != uint64(len(texts)) {
				return nil, fmt.Errorf("%w: gap in point ids at %d", vector.ErrCorruptIndex, len(texts))
			}
			text, ok := pt.GetPayload()["text"]
			if !ok {
				return nil, fmt.Errorf("%w: point %d has no text", vector.ErrCorruptIndex, len(texts))
			}
			texts = append(texts, text.GetStringValue())
			vectors = append(vectors, denseVector(pt.GetVectors()))
		}
	}

	if uint64(len(texts)) != count {
		return nil, fmt.Errorf("%w: counted %d points, read %d", vector.ErrCorruptIndex, count, len(texts))
	}

	c, err := vector.NewCollection(id, texts, vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrCorruptIndex, err)
	}
	return c, nil
}

func denseVector(v *qdrant.VectorsOutput) []float32 {
	out := v.GetVector()
	if dense := out.GetDense(); dense != nil {
		return dense.GetData()
	}
	return out.GetData()
}

// Delete drops the Qdrant collection. A missing collection is not an error.
func (p *Persister) Delete(ctx context.Context, id string) error {
	name := collectionName(id)

	exists, err := p.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if !exists {
		return nil
	}

	if err := p.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	return nil
}

// List returns the kbase collections present in Qdrant.
func (p *Persister) List(ctx context.Context) ([]string, error) {
	names, err := p.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	var ids []string
	for _, name := range names {
		if id, ok := strings.CutPrefix(name, CollectionPrefix); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes the gRPC connection.
func (p *Persister) Close() error {
	return p.client.Close()
}
