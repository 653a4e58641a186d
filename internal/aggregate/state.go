package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// StateStore remembers how far into the event log the aggregator has folded
// events. Load reports false until the first Save.
type StateStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, ts uint64) error
}

// FileStateStore keeps the resume point as a single JSON document. An empty
// Path disables it.
type FileStateStore struct {
	Path string
}

type cursorFile struct {
	LastProcessed uint64    `json:"last_processed_ts"`
	SavedAt       time.Time `json:"saved_at"`
}

func (s *FileStateStore) Load(_ context.Context) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	f, err := os.Open(s.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("open cursor %s: %w", s.Path, err)
	}
	defer f.Close()

	var cur cursorFile
	if err := json.NewDecoder(f).Decode(&cur); err != nil {
		return 0, false, fmt.Errorf("decode cursor %s: %w", s.Path, err)
	}
	return cur.LastProcessed, true, nil
}

// Save replaces the document with a rename from a sibling temp file.
func (s *FileStateStore) Save(_ context.Context, ts uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cursor dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*")
	if err != nil {
		return fmt.Errorf("cursor temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	cur := cursorFile{LastProcessed: ts, SavedAt: time.Now().UTC()}
	if err := json.NewEncoder(tmp).Encode(cur); err != nil {
		tmp.Close()
		return fmt.Errorf("encode cursor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cursor: %w", err)
	}
	return os.Rename(tmp.Name(), s.Path)
}
