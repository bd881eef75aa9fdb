package credentials

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrUnsupportedProvider is returned for providers kbase cannot use.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrEmptyKey is returned when storing a blank API key.
	ErrEmptyKey = errors.New("API key cannot be empty")
)

// Provider is a hosted model API that kbase authenticates against.
type Provider struct {
	Name   string
	EnvVar string

	// Purpose names the kbase pipelines that call the provider.
	Purpose string
}

var providers = []Provider{
	{Name: "deepseek", EnvVar: "DEEPSEEK_API_KEY", Purpose: "answer generation"},
	{Name: "openai", EnvVar: "OPENAI_API_KEY", Purpose: "embeddings and answer generation"},
}

// Providers lists every provider that needs an API key, by name.
func Providers() []Provider {
	return append([]Provider(nil), providers...)
}

// ProviderNames lists the provider names, for completion and help text.
func ProviderNames() []string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name
	}
	return names
}

// Lookup finds a provider by name, ignoring case and surrounding space.
func Lookup(name string) (Provider, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range providers {
		if p.Name == name {
			return p, true
		}
	}
	return Provider{}, false
}

// Source says where a resolved API key came from.
type Source int

const (
	SourceNone Source = iota
	SourceExplicit
	SourceStored
	SourceEnv
)

func (s Source) String() string {
	switch s {
	case SourceExplicit:
		return "explicit"
	case SourceStored:
		return "credentials.toml"
	case SourceEnv:
		return "environment"
	default:
		return "none"
	}
}

// Resolved is the outcome of Manager.Resolve.
type Resolved struct {
	Provider Provider
	Key      string
	Source   Source
}

// Found reports whether a key was resolved.
func (r Resolved) Found() bool {
	return r.Key != ""
}

// Err describes the missing key for a purpose such as "embeddings", or
// returns nil when a key was found.
func (r Resolved) Err(purpose string) error {
	if r.Found() {
		return nil
	}
	name := r.Provider.Name
	if purpose != "" {
		purpose = " " + purpose
	}
	return errors.New("no API key for " + name + purpose +
		": set " + r.Provider.EnvVar + " or run 'kbase auth " + name + "'")
}

// StoredKey describes one entry of credentials.toml without exposing it.
type StoredKey struct {
	Provider Provider
	Masked   string
	StoredAt time.Time
}

// document is the layout of credentials.toml.
type document struct {
	Version   int              `toml:"version"`
	Providers map[string]entry `toml:"providers"`
}

type entry struct {
	APIKey   string    `toml:"api_key"`
	StoredAt time.Time `toml:"stored_at,omitzero"`
}
