// Package storage keeps saved battles, one encoded field per battle ID.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNotConfigured is returned by the no-op store on Load
	ErrNotConfigured = errors.New("battle storage not configured")
	// ErrInvalidStoreType is returned when an unknown store type is specified
	ErrInvalidStoreType = errors.New("invalid storage type")
	ErrNotFound         = errors.New("saved battle not found")
	ErrInvalidID        = errors.New("invalid battle id")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeNone StoreType = "none"
	StoreTypeFile StoreType = "file"
)

const saveExt = ".tbc"

type Config struct {
	Type    StoreType
	BaseDir string
}

// Store persists encoded battles
type Store interface {
	Save(ctx context.Context, battleID string, data []byte) error
	Load(ctx context.Context, battleID string) ([]byte, error)
	Delete(ctx context.Context, battleID string) error
	// List returns saved battle IDs in sorted order
	List(ctx context.Context) ([]string, error)
	Stats() Stats
}

// Stats contains statistics about store operations
type Stats struct {
	Saved        int64
	Loaded       int64
	Deleted      int64
	BytesWritten int64
	BytesRead    int64
	WriteErrors  int64
	ReadErrors   int64
	LastSaveTime time.Time
	LastLoadTime time.Time
}

// FileStore writes one file per battle under BaseDir
type FileStore struct {
	dir    string
	logger zerolog.Logger

	mu    sync.RWMutex
	stats Stats
}

func NewFileStore(dir string, logger zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create save directory: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With().Str("component", "file_store").Logger(),
	}, nil
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func (fs *FileStore) path(id string) string {
	return filepath.Join(fs.dir, id+saveExt)
}

// Save writes through a temp file and rename so a crash never leaves a
// half-written save behind.
func (fs *FileStore) Save(ctx context.Context, battleID string, data []byte) error {
	if err := validID(battleID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp, err := os.CreateTemp(fs.dir, battleID+".*.tmp")
	if err != nil {
		fs.stats.WriteErrors++
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmp.Name(), fs.path(battleID))
	}
	if werr != nil {
		_ = os.Remove(tmp.Name())
		fs.stats.WriteErrors++
		return fmt.Errorf("failed to save battle %s: %w", battleID, werr)
	}

	fs.stats.Saved++
	fs.stats.BytesWritten += int64(len(data))
	fs.stats.LastSaveTime = time.Now()
	fs.logger.Debug().
		Str("battle_id", battleID).
		Int("bytes", len(data)).
		Msg("Saved battle")
	return nil
}

func (fs *FileStore) Load(ctx context.Context, battleID string) ([]byte, error) {
	if err := validID(battleID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path(battleID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, battleID)
	}
	if err != nil {
		fs.stats.ReadErrors++
		return nil, fmt.Errorf("failed to load battle %s: %w", battleID, err)
	}
	fs.stats.Loaded++
	fs.stats.BytesRead += int64(len(data))
	fs.stats.LastLoadTime = time.Now()
	return data, nil
}

func (fs *FileStore) Delete(ctx context.Context, battleID string) error {
	if err := validID(battleID); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	err := os.Remove(fs.path(battleID))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, battleID)
	}
	if err != nil {
		return fmt.Errorf("failed to delete battle %s: %w", battleID, err)
	}
	fs.stats.Deleted++
	return nil
}

func (fs *FileStore) List(ctx context.Context) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	files, err := filepath.Glob(filepath.Join(fs.dir, "*"+saveExt))
	if err != nil {
		return nil, fmt.Errorf("failed to list saves: %w", err)
	}
	ids := make([]string, 0, len(files))
	for _, f := range files {
		ids = append(ids, strings.TrimSuffix(filepath.Base(f), saveExt))
	}
	sort.Strings(ids)
	return ids, nil
}

func (fs *FileStore) Stats() Stats {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.stats
}

// NullStore is a no-op store
type NullStore struct{}

func (NullStore) Save(ctx context.Context, battleID string, data []byte) error { return nil }

func (NullStore) Load(ctx context.Context, battleID string) ([]byte, error) {
	return nil, ErrNotConfigured
}

func (NullStore) Delete(ctx context.Context, battleID string) error { return nil }

func (NullStore) List(ctx context.Context) ([]string, error) { return nil, nil }

func (NullStore) Stats() Stats { return Stats{} }

// New creates a store based on configuration
func New(config Config, logger zerolog.Logger) (Store, error) {
	switch config.Type {
	case StoreTypeNone, "":
		return NullStore{}, nil
	case StoreTypeFile:
		return NewFileStore(config.BaseDir, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreType, config.Type)
	}
}
