// Package credentials stores the API keys kbase needs for hosted embedding
// and answer providers, and resolves which key a run should use.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/kbase/pkg/dotdir"
)

const (
	fileName    = "credentials.toml"
	fileVersion = 1
)

// Manager reads and writes credentials.toml in the .kbase/ directory.
type Manager struct {
	path string
	now  func() time.Time
}

// NewManager resolves the .kbase/ directory (override first, then the
// standard lookup) and creates ~/.kbase/ when none exists.
func NewManager(override string) (*Manager, error) {
	target, err := dotdir.NewManager().Target(override)
	if err != nil {
		return nil, err
	}

	if target == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home dir: %w", err)
		}
		target = filepath.Join(home, dotdir.DirName)
		if err := os.MkdirAll(target, 0o755); err != nil {
			return nil, fmt.Errorf("creating kbase dir: %w", err)
		}
	}

	return &Manager{path: filepath.Join(target, fileName), now: time.Now}, nil
}

// Path returns the credentials file location.
func (m *Manager) Path() string {
	return m.path
}

// Set stores key for provider, replacing any previous key.
func (m *Manager) Set(provider, key string) error {
	p, ok := Lookup(provider)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}

	doc, err := m.load()
	if err != nil {
		return err
	}
	doc.Providers[p.Name] = entry{APIKey: key, StoredAt: m.now().UTC().Truncate(time.Second)}
	return m.save(doc)
}

// Get returns the stored key for provider, or "" when none is stored.
func (m *Manager) Get(provider string) (string, error) {
	p, ok := Lookup(provider)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	doc, err := m.load()
	if err != nil {
		return "", err
	}
	return doc.Providers[p.Name].APIKey, nil
}

// Remove deletes the stored key for provider and reports whether one existed.
func (m *Manager) Remove(provider string) (bool, error) {
	name := strings.ToLower(strings.TrimSpace(provider))
	doc, err := m.load()
	if err != nil {
		return false, err
	}
	if _, ok := doc.Providers[name]; !ok {
		return false, nil
	}
	delete(doc.Providers, name)
	return true, m.save(doc)
}

// Stored lists stored keys in provider order, masked for display. Entries
// for providers kbase no longer supports are skipped.
func (m *Manager) Stored() ([]StoredKey, error) {
	doc, err := m.load()
	if err != nil {
		return nil, err
	}

	out := make([]StoredKey, 0, len(doc.Providers))
	for _, p := range providers {
		e, ok := doc.Providers[p.Name]
		if !ok || e.APIKey == "" {
			continue
		}
		out = append(out, StoredKey{Provider: p, Masked: Mask(e.APIKey), StoredAt: e.StoredAt})
	}
	return out, nil
}

// Resolve picks the key for provider: explicit when non-empty, then the
// stored key, then the provider's environment variable. A nil Manager skips
// the stored key. Unreadable credential files are treated as empty.
func (m *Manager) Resolve(explicit, provider string) Resolved {
	p, ok := Lookup(provider)
	if !ok {
		return Resolved{Provider: Provider{Name: provider}}
	}

	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return Resolved{Provider: p, Key: explicit, Source: SourceExplicit}
	}
	if m != nil {
		if key, err := m.Get(p.Name); err == nil && key != "" {
			return Resolved{Provider: p, Key: key, Source: SourceStored}
		}
	}
	if key := strings.TrimSpace(os.Getenv(p.EnvVar)); key != "" {
		return Resolved{Provider: p, Key: key, Source: SourceEnv}
	}
	return Resolved{Provider: p}
}

// Mask keeps the last four characters of key.
func Mask(key string) string {
	r := []rune(key)
	if len(r) <= 4 {
		return strings.Repeat("•", len(r))
	}
	return "••••" + string(r[len(r)-4:])
}

func (m *Manager) load() (*document, error) {
	doc := &document{Version: fileVersion}

	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		doc.Providers = map[string]entry{}
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	if err := toml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", m.path, err)
	}
	if doc.Providers == nil {
		doc.Providers = map[string]entry{}
	}
	return doc, nil
}

// save replaces the file through a 0600 temp file so a failed write never
// truncates existing keys.
func (m *Manager) save(doc *document) error {
	doc.Version = fileVersion

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), "."+fileName+".*")
	if err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}
