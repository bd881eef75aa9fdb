// Package filestore persists collections as plain files. Each collection
// directory holds generation directories with texts.json and vectors.bin,
// and a CURRENT file naming the generation to load.
package filestore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/papercomputeco/kbase/pkg/vector"
)

const (
	textsFile   = "texts.json"
	vectorsFile = "vectors.bin"
	currentFile = "CURRENT"

	// magic identifies a vectors.bin file; version bumps on layout changes.
	magic   = "KBVEC"
	version = uint8(1)

	// maxDimension bounds the header so payload sizes cannot overflow.
	maxDimension = 1 << 16
)

// header is the fixed-size preamble of vectors.bin, followed by
// count*dimension little-endian float32 values.
type header struct {
	Magic     [5]byte
	Version   uint8
	Dimension uint32
	Count     uint32
}

var headerSize = int64(binary.Size(header{}))

// writeFile writes one artifact durably.
var writeFile = writeAtomic

// Persister implements vector.Persister on the local filesystem.
type Persister struct {
	root   string
	logger *slog.Logger
}

// Ensure Persister implements vector.Persister.
var _ vector.Persister = (*Persister)(nil)

// NewPersister creates a Persister rooted at root, creating the directory
// if needed.
func NewPersister(root string, logger *slog.Logger) (*Persister, error) {
	if root == "" {
		return nil, errors.New("root directory is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating index dir: %w", err)
	}

	logger.Debug("opened file index", "root", root)

	return &Persister{root: root, logger: logger}, nil
}

// Root returns the directory holding every collection.
func (p *Persister) Root() string {
	return p.root
}

// Save writes both artifacts of c into a fresh generation directory and
// then switches CURRENT to it with a single rename. Until that rename
// Load keeps returning the previous generation, so texts and vectors from
// different saves are never paired.
func (p *Persister) Save(ctx context.Context, c *vector.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := p.dir(c.ID())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating collection dir: %w", err)
	}

	texts, err := json.Marshal(c.Texts())
	if err != nil {
		return fmt.Errorf("encoding texts: %w", err)
	}
	var buf bytes.Buffer
	if err := encodeVectors(&buf, c); err != nil {
		return err
	}

	gen := uuid.NewString()
	genDir := filepath.Join(dir, gen)
	if err := os.Mkdir(genDir, 0o755); err != nil {
		return fmt.Errorf("creating generation dir: %w", err)
	}

	if err := writeFile(filepath.Join(genDir, textsFile), texts); err != nil {
		_ = os.RemoveAll(genDir)
		return err
	}
	if err := writeFile(filepath.Join(genDir, vectorsFile), buf.Bytes()); err != nil {
		_ = os.RemoveAll(genDir)
		return err
	}
	if err := writeFile(filepath.Join(dir, currentFile), []byte(gen+"\n")); err != nil {
		_ = os.RemoveAll(genDir)
		return err
	}

	p.prune(dir, gen)

	p.logger.Debug("saved collection", "collection", c.ID(), "units", c.Len(), "generation", gen)
	return nil
}

// Load reads the current generation back. A collection without CURRENT is
// ErrNotFound; a missing artifact, a count disagreement or a malformed file
// is ErrCorruptIndex. Header sizes are checked against the file size before
// anything is allocated.
func (p *Persister) Load(ctx context.Context, id string) (*vector.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := p.dir(id)
	if err != nil {
		return nil, err
	}

	genDir, err := p.current(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: collection %s", vector.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrCorruptIndex, err)
	}

	rawTexts, err := os.ReadFile(filepath.Join(genDir, textsFile))
	if err != nil {
		return nil, fmt.Errorf("%w: reading texts: %v", vector.ErrCorruptIndex, err)
	}

	var texts []string
	if err := json.Unmarshal(rawTexts, &texts); err != nil {
		return nil, fmt.Errorf("%w: decoding texts: %v", vector.ErrCorruptIndex, err)
	}

	f, err := os.Open(filepath.Join(genDir, vectorsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: collection %s has texts but no vectors", vector.ErrCorruptIndex, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening vectors: %v", vector.ErrCorruptIndex, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat vectors: %v", vector.ErrCorruptIndex, err)
	}

	vectors, err := decodeVectors(bufio.NewReader(f), info.Size(), len(texts))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding vectors: %v", vector.ErrCorruptIndex, err)
	}

	c, err := vector.NewCollection(id, texts, vectors)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrCorruptIndex, err)
	}
	return c, nil
}

// Delete removes the collection directory.
func (p *Persister) Delete(_ context.Context, id string) error {
	dir, err := p.dir(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing collection dir: %w", err)
	}
	return nil
}

// List returns the ids of every collection directory that holds CURRENT.
func (p *Persister) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, fmt.Errorf("reading index dir: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(p.root, e.Name(), currentFile)); err != nil {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op.
func (p *Persister) Close() error {
	return nil
}

func (p *Persister) dir(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid collection id %q", id)
	}
	return filepath.Join(p.root, id), nil
}

// current resolves the generation directory CURRENT points at.
func (p *Persister) current(dir string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(dir, currentFile))
	if err != nil {
		return "", err
	}
	gen := strings.TrimSpace(string(raw))
	if gen == "" || strings.HasPrefix(gen, ".") || strings.ContainsAny(gen, `/\`) {
		return "", fmt.Errorf("invalid generation %q", gen)
	}
	return filepath.Join(dir, gen), nil
}

// prune removes every generation but keep, along with leftovers of
// interrupted saves.
func (p *Persister) prune(dir, keep string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		p.logger.Warn("listing generations", "dir", dir, "error", err)
		return
	}
	for _, e := range entries {
		name := e.Name()
		if name == keep || name == currentFile {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			p.logger.Warn("removing stale generation", "path", filepath.Join(dir, name), "error", err)
		}
	}
}

func encodeVectors(w io.Writer, c *vector.Collection) error {
	h := header{
		Version:   version,
		Dimension: uint32(c.Dimension()),
		Count:     uint32(c.Len()),
	}
	copy(h.Magic[:], magic)

	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("writing vectors header: %w", err)
	}
	for i := range c.Len() {
		if _, err := w.Write(vector.EncodeFloat32(c.Vector(i))); err != nil {
			return fmt.Errorf("writing vector %d: %w", i, err)
		}
	}
	return nil
}

func decodeVectors(r io.Reader, size int64, want int) ([][]float32, error) {
	if size < headerSize {
		return nil, fmt.Errorf("file is %d bytes, shorter than the header", size)
	}

	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if string(h.Magic[:]) != magic {
		return nil, errors.New("bad magic")
	}
	if h.Version != version {
		return nil, fmt.Errorf("unsupported version %d", h.Version)
	}
	if int64(h.Count) != int64(want) {
		return nil, fmt.Errorf("header has %d vectors but there are %d texts", h.Count, want)
	}
	if h.Count == 0 {
		if size != headerSize {
			return nil, errors.New("trailing bytes after header")
		}
		return [][]float32{}, nil
	}
	if h.Dimension == 0 || h.Dimension > maxDimension {
		return nil, fmt.Errorf("dimension %d out of range", h.Dimension)
	}
	if payload := int64(h.Count) * int64(h.Dimension) * 4; size-headerSize != payload {
		return nil, fmt.Errorf("payload is %d bytes, header describes %d", size-headerSize, payload)
	}

	vectors := make([][]float32, 0, h.Count)
	row := make([]byte, int(h.Dimension)*4)
	for i := uint32(0); i < h.Count; i++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, fmt.Errorf("reading vector %d: %w", i, err)
		}
		v, err := vector.DecodeFloat32(row)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}
