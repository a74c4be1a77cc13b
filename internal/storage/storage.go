// Package storage provides the durable key-value storage that holds the
// serialized session between runs. Values are opaque bytes; the session
// package owns their encoding.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when the key is absent
var ErrNotFound = errors.New("storage: key not found")

// Storage is a small durable key-value store. Implementations are safe for
// concurrent use; concurrent writers to the same key resolve last-write-wins.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config selects and configures a backend
type Config struct {
	Backend string
	// Path is the directory for the file backend or the database file for sqlite
	Path string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Prefix namespaces redis keys so several clients can share one server
	Prefix string
}

// DefaultDir returns ~/.topia
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".topia"), nil
}

// Open builds the backend named by cfg.Backend
func Open(ctx context.Context, cfg Config) (Storage, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendFile:
		dir := cfg.Path
		if dir == "" {
			d, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		return NewFile(dir)
	case BackendSQLite:
		path := cfg.Path
		if path == "" {
			d, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(d, "storage.db")
		}
		return OpenSQLite(path)
	case BackendRedis:
		return OpenRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.Prefix,
		})
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
