// internal/session/store.go

// Package session keeps stored browser sessions as JSON files, one per session.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrapedeck/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned by Get for an unknown session id.
var ErrNotFound = errors.New("session not found")

// DirStore reads sessions from a directory of <id>.json files.
type DirStore struct {
	logger *zap.Logger
	dir    string
}

// NewDirStore creates a DirStore rooted at dir.
func NewDirStore(logger *zap.Logger, dir string) (*DirStore, error) {
	if dir == "" {
		return nil, errors.New("session directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirStore{logger: logger.Named("session_store"), dir: dir}, nil
}

// List returns every readable session, ordered by name. Unreadable files are
// logged and skipped. A missing directory yields no sessions.
func (s *DirStore) List(ctx context.Context) ([]schemas.SessionProfile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []schemas.SessionProfile{}, nil
		}
		return nil, fmt.Errorf("failed to read session directory %s: %w", s.dir, err)
	}

	sessions := make([]schemas.SessionProfile, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		sp, err := s.read(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.logger.Warn("Skipping unreadable session file", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		sessions = append(sessions, sp)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return strings.ToLower(sessions[i].Name) < strings.ToLower(sessions[j].Name)
	})
	return sessions, nil
}

// Get returns the session with the given id.
func (s *DirStore) Get(ctx context.Context, id string) (schemas.SessionProfile, error) {
	if err := ctx.Err(); err != nil {
		return schemas.SessionProfile{}, err
	}
	path, err := s.pathFor(id)
	if err != nil {
		return schemas.SessionProfile{}, err
	}
	sp, err := s.read(path)
	if errors.Is(err, os.ErrNotExist) {
		return schemas.SessionProfile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sp, err
}

// Put writes a session, replacing any with the same id.
func (s *DirStore) Put(ctx context.Context, sp schemas.SessionProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathFor(sp.ID)
	if err != nil {
		return err
	}
	if sp.Name == "" {
		sp.Name = sp.ID
	}
	data, err := json.MarshalIndent(sp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sp.ID, err)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	// Sessions carry cookies; keep them private to the user.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session %s: %w", sp.ID, err)
	}
	s.logger.Debug("Session stored", zap.String("id", sp.ID), zap.Int("cookies", len(sp.Cookies)))
	return nil
}

// pathFor rejects ids that would escape the session directory.
func (s *DirStore) pathFor(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid session id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func (s *DirStore) read(path string) (schemas.SessionProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schemas.SessionProfile{}, err
	}
	var sp schemas.SessionProfile
	if err := json.Unmarshal(data, &sp); err != nil {
		return schemas.SessionProfile{}, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	if sp.ID == "" {
		sp.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if sp.Name == "" {
		sp.Name = sp.ID
	}
	return sp, nil
}
