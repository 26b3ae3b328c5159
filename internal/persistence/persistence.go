// File: internal/persistence/persistence.go

// Package persistence reads and writes profile files.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrCanceled reports that a save needed by another action was dismissed.
var ErrCanceled = errors.New("save canceled")

// PersistenceError wraps a failed read, write or decode of a profile file.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("profile %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("profile %s %s failed: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// FileStore keeps profiles as JSON files. Relative paths resolve against dir.
type FileStore struct {
	logger      *zap.Logger
	dir         string
	startupPath string
}

// NewFileStore creates a FileStore. startupPath is the profile the process was
// opened with and may be empty.
func NewFileStore(logger *zap.Logger, dir, startupPath string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("profile directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		logger:      logger.Named("profile_store"),
		dir:         dir,
		startupPath: startupPath,
	}, nil
}

// Resolve maps a user supplied path onto the profile directory and adds the
// .json extension when none is given.
func (s *FileStore) Resolve(hint string) string {
	path := strings.TrimSpace(hint)
	if path == "" {
		return ""
	}
	if filepath.Ext(path) == "" {
		path += ".json"
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	return path
}

// Save writes p to the hinted path. An empty hint is a dismissed prompt.
func (s *FileStore) Save(ctx context.Context, p schemas.Profile, hint string) (schemas.SaveResult, error) {
	path := s.Resolve(hint)
	if path == "" {
		return schemas.SaveResult{Canceled: true}, nil
	}
	if err := ctx.Err(); err != nil {
		return schemas.SaveResult{}, &PersistenceError{Op: "save", Path: path, Err: err}
	}

	if p.Extractors == nil {
		p.Extractors = []schemas.Extractor{}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return schemas.SaveResult{}, &PersistenceError{Op: "save", Path: path, Err: err}
	}
	if err := writeFileAtomic(path, append(data, '\n')); err != nil {
		return schemas.SaveResult{}, &PersistenceError{Op: "save", Path: path, Err: err}
	}

	s.logger.Info("Profile saved", zap.String("path", path), zap.Int("extractors", len(p.Extractors)))
	return schemas.SaveResult{Path: path}, nil
}

// Load reads the profile at the hinted path. An empty hint is a dismissed prompt.
func (s *FileStore) Load(ctx context.Context, hint string) (schemas.LoadResult, error) {
	path := s.Resolve(hint)
	if path == "" {
		return schemas.LoadResult{Canceled: true}, nil
	}
	return s.loadPath(ctx, path)
}

// LoadStartup loads the profile the process was opened with, if any.
func (s *FileStore) LoadStartup(ctx context.Context) (schemas.LoadResult, error) {
	if strings.TrimSpace(s.startupPath) == "" {
		return schemas.LoadResult{Canceled: true}, nil
	}
	return s.loadPath(ctx, s.Resolve(s.startupPath))
}

func (s *FileStore) loadPath(ctx context.Context, path string) (schemas.LoadResult, error) {
	if err := ctx.Err(); err != nil {
		return schemas.LoadResult{}, &PersistenceError{Op: "load", Path: path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return schemas.LoadResult{}, &PersistenceError{Op: "load", Path: path, Err: err}
	}
	p, err := Decode(data, s.logger.With(zap.String("path", path)))
	if err != nil {
		return schemas.LoadResult{}, &PersistenceError{Op: "load", Path: path, Err: err}
	}
	s.logger.Info("Profile loaded", zap.String("path", path), zap.Int("extractors", len(p.Extractors)))
	return schemas.LoadResult{Path: path, Profile: p}, nil
}

// List returns the profile files in the profile directory.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &PersistenceError{Op: "list", Path: s.dir, Err: err}
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// writeFileAtomic replaces path only once the new content is fully on disk.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".profile-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
