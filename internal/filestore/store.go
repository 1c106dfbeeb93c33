// Package filestore abstracts the server-side document collections. Each
// collection (voice chunks, session documents, derived artifacts, archive)
// is one flat namespace of keys behind a Store.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/voxnote/voxnote/internal/config"
)

type Entry struct {
	Key     string
	Size    int64
	ModTime time.Time
}

type Store interface {
	Save(ctx context.Context, key string, r io.Reader, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context) ([]Entry, error)
	Stat(ctx context.Context, key string) (Entry, error)
	Remove(ctx context.Context, key string) error
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.StoreConfig) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("store type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode store config: %w", err)
	}
	return nil
}

// ReadAll drains the object at key into memory.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, error) {
	r, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Move copies the object at key from src to dst, then removes the source.
// Used to archive processed documents.
func Move(ctx context.Context, src, dst Store, key string) error {
	data, err := ReadAll(ctx, src, key)
	if err != nil {
		return err
	}
	if err := dst.Save(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return err
	}
	return src.Remove(ctx, key)
}
