package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	appErr "github.com/voxnote/voxnote/internal/pkg/errors"
)

type localConfig struct {
	Dir string `json:"dir"`
}

type localStore struct {
	dir string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, err
	}
	return &localStore{dir: config.Dir}, nil
}

func validKey(key string) error {
	if key == "" || strings.Contains(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("invalid file key: %q", key)
	}
	return nil
}

func (s *localStore) Save(ctx context.Context, key string, r io.Reader, size int64) error {
	_ = ctx
	if err := validKey(key); err != nil {
		return err
	}
	out, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, r)
	return err
}

func (s *localStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	_ = ctx
	if err := validKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, key))
	if os.IsNotExist(err) {
		return nil, appErr.ErrNotFound
	}
	return f, err
}

func (s *localStore) List(ctx context.Context) ([]Entry, error) {
	_ = ctx
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: de.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return entries, nil
}

func (s *localStore) Stat(ctx context.Context, key string) (Entry, error) {
	_ = ctx
	if err := validKey(key); err != nil {
		return Entry{}, err
	}
	info, err := os.Stat(filepath.Join(s.dir, key))
	if os.IsNotExist(err) {
		return Entry{}, appErr.ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	return Entry{Key: key, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *localStore) Remove(ctx context.Context, key string) error {
	_ = ctx
	if err := validKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if os.IsNotExist(err) {
		return appErr.ErrNotFound
	}
	return err
}
