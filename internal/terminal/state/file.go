package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/GriffinCanCode/terminaltab/internal/shared/id"
	"github.com/klauspost/compress/zstd"
)

const fileSuffix = ".json.zst"

// FileStore keeps one zstd compressed JSON file per session.
type FileStore struct {
	dir     string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &FileStore{dir: dir, encoder: enc, decoder: dec}, nil
}

func (f *FileStore) path(sessionID string) (string, error) {
	if !id.IsSafeName(sessionID) {
		return "", fmt.Errorf("%w: unsafe id %q", ErrInvalid, sessionID)
	}
	return filepath.Join(f.dir, sessionID+fileSuffix), nil
}

func (f *FileStore) Save(ctx context.Context, s *SessionState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}
	path, err := f.path(s.ID)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+s.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(f.encoder.EncodeAll(data, nil)); err != nil {
		tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("commit state file: %w", err)
	}
	return nil
}

func (f *FileStore) Load(ctx context.Context, sessionID string) (*SessionState, error) {
	path, err := f.path(sessionID)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	data, err := f.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return Decode(data)
}

func (f *FileStore) Delete(ctx context.Context, sessionID string) error {
	path, err := f.path(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}

func (f *FileStore) List(ctx context.Context) ([]*SessionState, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("list state directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileSuffix))
	}
	sort.Strings(ids)

	states := make([]*SessionState, 0, len(ids))
	for _, sessionID := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := f.Load(ctx, sessionID)
		if err != nil {
			continue
		}
		states = append(states, s)
	}
	return states, nil
}

func (f *FileStore) Close() error {
	f.decoder.Close()
	return f.encoder.Close()
}
