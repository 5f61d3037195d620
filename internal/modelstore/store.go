// Package modelstore is the built-in model access capability: it reads and
// writes model files through an fsutil.FileSystem.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/banshee-data/hexslice/internal/domain"
	"github.com/banshee-data/hexslice/internal/fsutil"
)

// ProviderID identifies the filesystem model store in the registry.
const ProviderID = "hexslice.models.fs"

// Store implements ports.ModelAccess and registry.Provider.
type Store struct {
	fs fsutil.FileSystem
}

// New returns a store over fsys. A nil fsys means the real filesystem.
func New(fsys fsutil.FileSystem) *Store {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Store{fs: fsys}
}

func (s *Store) ID() string        { return ProviderID }
func (s *Store) Name() string      { return "Filesystem model store" }
func (s *Store) Version() string   { return "1.0.0" }
func (s *Store) Initialize() error { return nil }
func (s *Store) Shutdown() error   { return nil }

// Load reads the model at path. The format is decided from the extension
// before the filesystem is touched.
func (s *Store) Load(ctx context.Context, path string) (domain.Model, error) {
	typ, err := domain.TypeFromPath(path)
	if err != nil {
		return domain.Model{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Model{}, err
	}

	info, err := s.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Model{}, &domain.NotFoundError{Path: path, Err: err}
		}
		return domain.Model{}, fmt.Errorf("stat model %s: %w", path, err)
	}
	if info.IsDir() {
		return domain.Model{}, &domain.NotFoundError{Path: path}
	}

	payload, err := s.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Model{}, &domain.NotFoundError{Path: path, Err: err}
		}
		return domain.Model{}, fmt.Errorf("read model %s: %w", path, err)
	}
	diagf("loaded %s (%s, %d bytes)", path, typ, len(payload))
	return domain.Model{Name: domain.ModelName(path), Type: typ, Payload: payload}, nil
}

// Save writes m's payload to path, creating parent directories. The target
// extension must belong to m's type.
func (s *Store) Save(ctx context.Context, m domain.Model, path string) error {
	typ, err := domain.TypeFromPath(path)
	if err != nil {
		return err
	}
	if typ != m.Type {
		return fmt.Errorf("cannot save %s model as %s", m.Type, filepath.Ext(path))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model directory: %w", err)
		}
	}
	if err := s.fs.WriteFile(path, m.Payload, os.FileMode(0o644)); err != nil {
		return fmt.Errorf("write model %s: %w", path, err)
	}
	diagf("saved %s (%d bytes)", path, len(m.Payload))
	return nil
}
