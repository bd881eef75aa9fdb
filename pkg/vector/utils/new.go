package vectorutils

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/papercomputeco/kbase/pkg/vector"
	"github.com/papercomputeco/kbase/pkg/vector/chroma"
	"github.com/papercomputeco/kbase/pkg/vector/filestore"
	"github.com/papercomputeco/kbase/pkg/vector/postgres"
	"github.com/papercomputeco/kbase/pkg/vector/qdrant"
	"github.com/papercomputeco/kbase/pkg/vector/sqlitevec"
)

// Supported storage providers.
const (
	ProviderFile     = "file"
	ProviderSQLite   = "sqlite"
	ProviderPostgres = "postgres"
	ProviderChroma   = "chroma"
	ProviderQdrant   = "qdrant"
	ProviderMemory   = "memory"
)

type NewPersisterOpts struct {
	ProviderType string

	// Target is provider specific: a directory for file, a database path for
	// sqlite, a connection string for postgres, a URL for chroma and
	// host:port for qdrant.
	Target string

	// IndexDir is the local index directory used when file or sqlite have
	// no explicit target.
	IndexDir string

	Logger *slog.Logger
}

// NewPersister builds the configured persister. The memory provider returns
// a nil Persister, which makes the store memory-only.
func NewPersister(ctx context.Context, o *NewPersisterOpts) (vector.Persister, error) {
	if o.Logger == nil {
		return nil, errors.New("logger is required")
	}

	switch strings.ToLower(o.ProviderType) {
	case "", ProviderFile:
		root := o.Target
		if root == "" {
			root = o.IndexDir
		}
		if root == "" {
			return nil, errors.New("file storage needs a target directory")
		}
		return filestore.NewPersister(root, o.Logger)

	case ProviderSQLite:
		dbPath := o.Target
		if dbPath == "" {
			if o.IndexDir == "" {
				return nil, errors.New("sqlite storage needs a database path")
			}
			dbPath = filepath.Join(o.IndexDir, "kbase.sqlite")
		}
		return sqlitevec.NewPersister(sqlitevec.Config{DBPath: dbPath}, o.Logger)

	case ProviderPostgres:
		return postgres.NewPersister(ctx, o.Target, o.Logger)

	case ProviderChroma:
		return chroma.NewPersister(chroma.Config{URL: o.Target}, o.Logger)

	case ProviderQdrant:
		host, port, err := splitHostPort(o.Target, qdrant.DefaultPort)
		if err != nil {
			return nil, err
		}
		return qdrant.NewPersister(ctx, qdrant.Config{Host: host, Port: port}, o.Logger)

	case ProviderMemory:
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", o.ProviderType)
	}
}

func splitHostPort(target string, defaultPort int) (string, int, error) {
	if target == "" {
		return "", 0, errors.New("storage target is required")
	}
	if !strings.Contains(target, ":") {
		return target, defaultPort, nil
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return "", 0, fmt.Errorf("parsing storage target %q: %w", target, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("parsing storage port %q: %w", portStr, err)
	}
	return host, port, nil
}
