// Package storage provides durable key -> JSON blob persistence for the
// timeline snapshot. Backends hold no business logic.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when no value is stored under the key.
var ErrNotFound = errors.New("key not found")

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverDiskv    = "diskv"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Backend loads and saves whole blobs. Save overwrites the previous value.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver string
	// Path is the SQLite database file or the diskv base directory.
	Path string
	// DSN is the Postgres connection string.
	DSN string
}

// Open returns the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return NewSQLite(opts.Path)
	case DriverDiskv:
		return NewDiskv(opts.Path)
	case DriverPostgres:
		return NewPostgres(ctx, opts.DSN)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s (supported: %s, %s, %s, %s)",
			opts.Driver, DriverSQLite, DriverDiskv, DriverPostgres, DriverMemory)
	}
}
