package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/voxnote/voxnote/internal/model"
	appErr "github.com/voxnote/voxnote/internal/pkg/errors"
)

const stateFileName = "session.json"

// StateStore persists the active session to disk so an interrupted
// recording can resume with the next unused chunk index.
type StateStore struct {
	path string
}

func NewStateStore(dir string) (*StateStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &StateStore{path: filepath.Join(dir, stateFileName)}, nil
}

func (s *StateStore) Load() (*model.Session, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErr.ErrNoSession
		}
		return nil, fmt.Errorf("read session state: %w", err)
	}
	sess := &model.Session{}
	if err := json.Unmarshal(raw, sess); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	if sess.ID == "" {
		return nil, appErr.ErrNoSession
	}
	return sess, nil
}

func (s *StateStore) Save(sess *model.Session) error {
	sess.UpdatedAt = time.Now().UnixMilli()
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit session state: %w", err)
	}
	return nil
}

// Advance records that the chunk at sealedIndex is sealed, making
// sealedIndex+1 the next index a resumed session may use.
func (s *StateStore) Advance(sess *model.Session, sealedIndex int) error {
	if next := sealedIndex + 1; next > sess.NextChunkIndex {
		sess.NextChunkIndex = next
	}
	return s.Save(sess)
}
