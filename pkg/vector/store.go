package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// StoreConfig configures a Store.
type StoreConfig struct {
	// Persister is the optional durable backend. A nil Persister makes the
	// store memory-only and Persist a no-op.
	Persister Persister

	// Timeout bounds every Persister call. Zero means no extra bound beyond
	// the caller's context.
	Timeout time.Duration

	// Collections pre-registers slots so they are listed even while empty.
	Collections []string
}

// Store holds one Collection per id.
//
// Mutations of a single collection (Append, Persist, Replace, Load, Delete)
// are serialized by a per-collection mutex. Each mutation builds a new
// immutable Collection and publishes it with an atomic swap, so Snapshot
// never observes a partially replaced collection and never blocks on a
// writer.
type Store struct {
	persister Persister
	timeout   time.Duration
	logger    *slog.Logger

	mu    sync.RWMutex
	slots map[string]*slot
}

type slot struct {
	write   sync.Mutex
	current atomic.Pointer[Collection]
}

// NewStore creates a new collection store.
func NewStore(c StoreConfig, logger *slog.Logger) *Store {
	s := &Store{
		persister: c.Persister,
		timeout:   c.Timeout,
		logger:    logger,
		slots:     make(map[string]*slot),
	}

	for _, id := range c.Collections {
		s.slot(id)
	}

	return s
}

// slot returns the slot for id, creating an empty one if needed.
func (s *Store) slot(id string) *slot {
	s.mu.RLock()
	sl, ok := s.slots[id]
	s.mu.RUnlock()
	if ok {
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sl, ok := s.slots[id]; ok {
		return sl
	}

	sl = &slot{}
	sl.current.Store(EmptyCollection(id))
	s.slots[id] = sl
	return sl
}

// Snapshot returns the current collection for id. Unknown ids return an
// empty collection.
func (s *Store) Snapshot(id string) *Collection {
	s.mu.RLock()
	sl, ok := s.slots[id]
	s.mu.RUnlock()
	if !ok {
		return EmptyCollection(id)
	}
	return sl.current.Load()
}

// Collections returns snapshots of every known collection ordered by id.
func (s *Store) Collections() []*Collection {
	s.mu.RLock()
	out := make([]*Collection, 0, len(s.slots))
	for _, sl := range s.slots {
		out = append(out, sl.current.Load())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Append replaces the content of collection id with units and vectors.
// Prior content is discarded, never merged. On any error the collection is
// left unchanged.
func (s *Store) Append(_ context.Context, id string, units []string, vectors [][]float32) error {
	sl := s.slot(id)
	sl.write.Lock()
	defer sl.write.Unlock()

	_, err := s.appendLocked(sl, id, units, vectors)
	return err
}

func (s *Store) appendLocked(sl *slot, id string, units []string, vectors [][]float32) (*Collection, error) {
	if len(units) == 0 && len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no units for collection %q", ErrEmptyInput, id)
	}

	next, err := NewCollection(id, units, vectors)
	if err != nil {
		return nil, err
	}

	prev := sl.current.Load()
	if !prev.IsEmpty() && prev.Dimension() != next.Dimension() {
		return nil, fmt.Errorf("%w: collection %q has dimension %d, got %d",
			ErrDimensionMismatch, id, prev.Dimension(), next.Dimension())
	}

	sl.current.Store(next)

	s.logger.Debug("collection replaced",
		"collection", id,
		"units", next.Len(),
		"dimension", next.Dimension(),
		"previous_units", prev.Len(),
	)

	return next, nil
}

// Persist writes the current snapshot of collection id through the
// configured Persister. On failure the in-memory collection stays valid
// and queryable.
func (s *Store) Persist(ctx context.Context, id string) error {
	sl := s.slot(id)
	sl.write.Lock()
	defer sl.write.Unlock()

	return s.persistLocked(ctx, sl.current.Load())
}

func (s *Store) persistLocked(ctx context.Context, c *Collection) error {
	if s.persister == nil {
		return nil
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	var err error
	if c.IsEmpty() {
		err = s.persister.Delete(ctx, c.ID())
	} else {
		err = s.persister.Save(ctx, c)
	}
	if err != nil {
		return fmt.Errorf("%w: collection %q: %v", ErrPersistence, c.ID(), err)
	}

	s.logger.Debug("collection persisted", "collection", c.ID(), "units", c.Len())
	return nil
}

// Replace appends and then persists collection id as one serialized
// operation. The returned collection is non-nil whenever the in-memory
// replacement succeeded, even if persisting it failed.
func (s *Store) Replace(ctx context.Context, id string, units []string, vectors [][]float32) (*Collection, error) {
	sl := s.slot(id)
	sl.write.Lock()
	defer sl.write.Unlock()

	next, err := s.appendLocked(sl, id, units, vectors)
	if err != nil {
		return nil, err
	}

	return next, s.persistLocked(ctx, next)
}

// Load reads collection id from the Persister and installs it.
// Every failure is reported as ErrCorruptIndex; callers treat it as
// "no data for this collection".
func (s *Store) Load(ctx context.Context, id string) (*Collection, error) {
	if s.persister == nil {
		return nil, fmt.Errorf("%w: collection %q: %w", ErrCorruptIndex, id, ErrNotFound)
	}

	sl := s.slot(id)
	sl.write.Lock()
	defer sl.write.Unlock()

	ctx, cancel := s.bound(ctx)
	defer cancel()

	c, err := s.persister.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrCorruptIndex) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: collection %q: %w", ErrCorruptIndex, id, err)
	}

	if c == nil || c.ID() != id {
		return nil, fmt.Errorf("%w: collection %q did not load as itself", ErrCorruptIndex, id)
	}

	sl.current.Store(c)
	return c, nil
}

// Hydrate loads every persisted collection plus every pre-registered slot.
// Collections that cannot be loaded are logged and left empty. It returns
// the number of collections loaded with data.
func (s *Store) Hydrate(ctx context.Context) (int, error) {
	if s.persister == nil {
		return 0, nil
	}

	listCtx, cancel := s.bound(ctx)
	persisted, err := s.persister.List(listCtx)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("%w: listing collections: %v", ErrCorruptIndex, err)
	}

	ids := make(map[string]struct{}, len(persisted))
	for _, id := range persisted {
		ids[id] = struct{}{}
	}
	s.mu.RLock()
	for id := range s.slots {
		ids[id] = struct{}{}
	}
	s.mu.RUnlock()

	loaded := 0
	for id := range ids {
		c, err := s.Load(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				s.logger.Debug("no persisted collection", "collection", id)
			} else {
				s.logger.Warn("collection index unavailable, starting empty",
					"collection", id,
					"error", err,
				)
			}
			continue
		}

		s.logger.Info("collection loaded",
			"collection", id,
			"units", c.Len(),
			"dimension", c.Dimension(),
		)
		loaded++
	}

	return loaded, nil
}

// Delete empties collection id and removes its persisted artifacts.
func (s *Store) Delete(ctx context.Context, id string) error {
	sl := s.slot(id)
	sl.write.Lock()
	defer sl.write.Unlock()

	sl.current.Store(EmptyCollection(id))

	if s.persister == nil {
		return nil
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.persister.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: deleting collection %q: %v", ErrPersistence, id, err)
	}
	return nil
}

// Close releases the Persister.
func (s *Store) Close() error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Close()
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
