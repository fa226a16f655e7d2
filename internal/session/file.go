package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// FileStore keeps the session as a JSON file readable only by its owner.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath is ~/.clinicctl/session.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".clinicctl-session.json"
	}
	return filepath.Join(home, ".clinicctl", "session.json")
}

func (f *FileStore) Load(ctx context.Context) (*Session, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (f *FileStore) Save(ctx context.Context, s *Session) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Clear(ctx context.Context) error {
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
