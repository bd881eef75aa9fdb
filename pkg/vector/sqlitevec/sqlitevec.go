// Package sqlitevec provides a SQLite-backed collection persister using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/kbase/pkg/vector"
)

// Persister implements vector.Persister using SQLite with sqlite-vec.
//
// Text units live in kb_units; each collection's embeddings live in their own
// vec0 virtual table (kb_vec_<n>) sized to that collection's dimension, with
// rowid = position + 1.
type Persister struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure Persister implements vector.Persister.
var _ vector.Persister = (*Persister)(nil)

// Config holds configuration for the SQLite persister.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string
}

// NewPersister opens (and migrates) the SQLite database at c.DBPath.
func NewPersister(c Config, logger *slog.Logger) (*Persister, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: every connection to ":memory:" is a separate database,
	// and vec0 tables are created on the fly.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kb_collections (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			dimension INTEGER NOT NULL,
			unit_count INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating collections table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kb_units (
			collection_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			text TEXT NOT NULL,
			PRIMARY KEY (collection_id, position)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating units table: %w", err)
	}

	logger.Info("sqlite-vec persister initialized",
		"db_path", c.DBPath,
		"vec_version", vecVersion,
	)

	return &Persister{
		db:     db,
		logger: logger,
	}, nil
}

func vecTable(collectionID int64) string {
	return fmt.Sprintf("kb_vec_%d", collectionID)
}

// Save replaces the persisted state of c inside one transaction.
func (p *Persister) Save(ctx context.Context, c *vector.Collection) error {
	if c.IsEmpty() {
		return p.Delete(ctx, c.ID())
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO kb_collections(name, dimension, unit_count) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET dimension = excluded.dimension, unit_count = excluded.unit_count
	`, c.ID(), c.Dimension(), c.Len()); err != nil {
		return fmt.Errorf("upserting collection %s: %w", c.ID(), err)
	}

	var collectionID int64
	if err := tx.QueryRowContext(ctx,
		`SELECT rowid FROM kb_collections WHERE name = ?`, c.ID(),
	).Scan(&collectionID); err != nil {
		return fmt.Errorf("reading collection rowid: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM kb_units WHERE collection_id = ?`, collectionID,
	); err != nil {
		return fmt.Errorf("clearing units: %w", err)
	}

	table := vecTable(collectionID)
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return fmt.Errorf("dropping %s: %w", table, err)
	}

	// vec0 columns have a fixed width, so the table is recreated per save.
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE %s USING vec0(embedding float[%d])`,
		table, c.Dimension(),
	)
	if _, err := tx.ExecContext(ctx, createVec); err != nil {
		return fmt.Errorf("creating vec0 table: %w", err)
	}

	for i := range c.Len() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kb_units(collection_id, position, text) VALUES (?, ?, ?)`,
			collectionID, i, c.Text(i),
		); err != nil {
			return fmt.Errorf("inserting unit %d: %w", i, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+`(rowid, embedding) VALUES (?, ?)`,
			int64(i)+1, vector.EncodeFloat32(c.Vector(i)),
		); err != nil {
			return fmt.Errorf("inserting embedding %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	p.logger.Debug("saved collection to sqlite-vec",
		"collection", c.ID(),
		"units", c.Len(),
		"dimension", c.Dimension(),
	)

	return nil
}

// Load reads a collection back in position order.
func (p *Persister) Load(ctx context.Context, id string) (*vector.Collection, error) {
	var (
		collectionID int64
		dimension    int
		count        int
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT rowid, dimension, unit_count FROM kb_collections WHERE name = ?`, id,
	).Scan(&collectionID, &dimension, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: collection %s", vector.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading collection %s: %v", vector.ErrCorruptIndex, id, err)
	}

	texts, err := p.loadUnits(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	vectors, err := p.loadVectors(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	if len(texts) != count || len(vectors) != count {
		return nil, fmt.Errorf("%w: collection %s records %d units, found %d texts and %d vectors",
			vector.ErrCorruptIndex, id, count, len(texts), len(vectors))
	}

	c, err := vector.NewCollection(id, texts, vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrCorruptIndex, err)
	}
	if c.Dimension() != dimension {
		return nil, fmt.Errorf("%w: collection %s records dimension %d, found %d",
			vector.ErrCorruptIndex, id, dimension, c.Dimension())
	}

	return c, nil
}

func (p *Persister) loadUnits(ctx context.Context, collectionID int64) ([]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT position, text FROM kb_units WHERE collection_id = ? ORDER BY position`, collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying units: %v", vector.ErrCorruptIndex, err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var (
			position int
			text     string
		)
		if err := rows.Scan(&position, &text); err != nil {
			return nil, fmt.Errorf("%w: scanning unit: %v", vector.ErrCorruptIndex, err)
		}
		if position != len(texts) {
			return nil, fmt.Errorf("%w: gap in unit positions at %d", vector.ErrCorruptIndex, len(texts))
		}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating units: %v", vector.ErrCorruptIndex, err)
	}

	return texts, nil
}

func (p *Persister) loadVectors(ctx context.Context, collectionID int64) ([][]float32, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT rowid, embedding FROM `+vecTable(collectionID)+` ORDER BY rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying embeddings: %v", vector.ErrCorruptIndex, err)
	}
	defer rows.Close()

	var vectors [][]float32
	for rows.Next() {
		var (
			rowID int64
			blob  []byte
		)
		if err := rows.Scan(&rowID, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning embedding: %v", vector.ErrCorruptIndex, err)
		}
		if rowID != int64(len(vectors))+1 {
			return nil, fmt.Errorf("%w: gap in embedding rows at %d", vector.ErrCorruptIndex, len(vectors))
		}
		v, err := vector.DecodeFloat32(blob)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", vector.ErrCorruptIndex, err)
		}
		vectors = append(vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating embeddings: %v", vector.ErrCorruptIndex, err)
	}

	return vectors, nil
}

// Delete removes a collection, its units and its vec0 table.
func (p *Persister) Delete(ctx context.Context, id string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var collectionID int64
	err = tx.QueryRowContext(ctx,
		`SELECT rowid FROM kb_collections WHERE name = ?`, id,
	).Scan(&collectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading collection rowid: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+vecTable(collectionID)); err != nil {
		return fmt.Errorf("dropping embeddings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_units WHERE collection_id = ?`, collectionID); err != nil {
		return fmt.Errorf("deleting units: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_collections WHERE rowid = ?`, collectionID); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	p.logger.Debug("deleted collection from sqlite-vec", "collection", id)
	return nil
}

// List returns every persisted collection name.
func (p *Persister) List(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT name FROM kb_collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning collection name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Close releases resources held by the persister.
func (p *Persister) Close() error {
	return p.db.Close()
}
