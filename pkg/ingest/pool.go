// Package ingest provides an asynchronous worker pool that re-processes
// collections from documents, and a file watcher that feeds it.
//
// The pool decouples embedding, which can take many seconds, from the caller
// (an HTTP handler or a file watcher) so the caller returns immediately.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/papercomputeco/kbase/pkg/knowledge"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 64
)

// Ingester re-processes one collection from raw text.
type Ingester interface {
	Ingest(ctx context.Context, collection, rawText, source string) (*knowledge.IngestResult, error)
}

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Collection string

	// Text is the raw document. When empty, the document is read from Path.
	Text string

	// Path is the source file, also reported as the event source.
	Path string
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Ingester processes each job.
	Ingester Ingester

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of each worker's buffered job channel.
	QueueSize uint

	// Timeout bounds a single job. Zero means no bound.
	Timeout time.Duration

	// OnDone is called after every job, from the worker goroutine.
	OnDone func(Job, *knowledge.IngestResult, error)

	Logger *slog.Logger
}

// Pool processes ingest jobs asynchronously.
//
// Jobs for one collection always go to the same worker, so they are applied
// in the order they were enqueued and the last enqueued document wins.
type Pool struct {
	config *Config
	queues []chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Ingester == nil {
		return nil, errors.New("ingester is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queues: make([]chan Job, c.NumWorkers),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		wp.queues[i] = make(chan Job, c.QueueSize)
		go wp.worker(i, wp.queues[i])
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is
// closed, resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Error("job not queued, pool closed", "collection", job.Collection)
		return false
	}

	select {
	case p.queues[p.route(job.Collection)] <- job:
		p.logger.Debug("job queued",
			"collection", job.Collection,
			"path", job.Path,
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"collection", job.Collection,
			"path", job.Path,
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) route(collection string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(collection))
	return int(h.Sum32() % uint32(len(p.queues)))
}

// worker is the inner worker thread that continuously pulls jobs off its queue
func (p *Pool) worker(id uint, queue <-chan Job) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range queue {
		p.processJob(job)
	}

	p.logger.Debug("ingest worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	ctx := context.Background()
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	result, err := p.run(ctx, job)
	if err != nil {
		p.logger.Error("async ingest failed",
			"collection", job.Collection,
			"path", job.Path,
			"error", err,
		)
	}

	if p.config.OnDone != nil {
		p.config.OnDone(job, result, err)
	}
}

func (p *Pool) run(ctx context.Context, job Job) (*knowledge.IngestResult, error) {
	text := job.Text
	if text == "" {
		if job.Path == "" {
			return nil, errors.New("job has neither text nor path")
		}
		var err error
		text, err = ReadDocument(job.Path)
		if err != nil {
			return nil, err
		}
	}

	return p.config.Ingester.Ingest(ctx, job.Collection, text, job.Path)
}

// ReadDocument reads a UTF-8 text document. Form feeds in the file separate
// pages.
func ReadDocument(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("document %s is not UTF-8 text", path)
	}
	return string(raw), nil
}
