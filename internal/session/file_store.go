package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore 把会话保存在本地文件（默认 $HOME/.taskmanager/session.json）
type FileStore struct {
	path  string
	codec *MarkerCodec
}

func NewFileStore(path string, codec *MarkerCodec) *FileStore {
	return &FileStore{path: path, codec: codec}
}

// DefaultPath 返回默认的会话文件路径
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".taskmanager", "session.json"), nil
}

func (f *FileStore) Load(ctx context.Context) (*Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	return decodeRecord(f.codec, data)
}

func (f *FileStore) Save(ctx context.Context, s *Session) error {
	data, err := encodeRecord(f.codec, s)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	// 先写临时文件再 rename，避免写一半
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Clear(ctx context.Context) error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
