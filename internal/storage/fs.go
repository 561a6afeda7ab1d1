package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/voxhall/audio-insights/internal/common"
)

// ArtifactStore persists pipeline artifacts and returns resolvable
// URIs. Both uploads overwrite on conflict.
type ArtifactStore interface {
	UploadText(ctx context.Context, name, text string) (string, error)
	UploadReport(ctx context.Context, name string, content []byte) (string, error)
	// URI resolves an artifact or recording name to the location
	// recorded on job documents.
	URI(name string) string
}

// FSStore keeps artifacts under a root directory, mirroring the layout
// of the container the recordings are uploaded into. When BaseURL is
// set the returned URIs are web locations served off that root;
// otherwise they are absolute file paths.
type FSStore struct {
	root    string
	baseURL string
	log     *slog.Logger
}

func NewFSStore(cfg common.StorageConfig, log *slog.Logger) *FSStore {
	if log == nil {
		log = slog.Default()
	}
	return &FSStore{root: cfg.RootDir, baseURL: strings.TrimRight(cfg.BaseURL, "/"), log: log}
}

func (s *FSStore) UploadText(ctx context.Context, name, text string) (string, error) {
	return s.write(name, []byte(text))
}

func (s *FSStore) UploadReport(ctx context.Context, name string, content []byte) (string, error) {
	return s.write(name, content)
}

func (s *FSStore) URI(name string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + filepath.ToSlash(name)
	}
	abs, err := filepath.Abs(filepath.Join(s.root, filepath.FromSlash(name)))
	if err != nil {
		return filepath.Join(s.root, filepath.FromSlash(name))
	}
	return abs
}

func (s *FSStore) write(name string, content []byte) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", common.Errorf(common.KindInvalidRequest, "artifact name escapes storage root: %s", name)
	}
	path := filepath.Join(s.root, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", common.WrapError(err, "create artifact directory")
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", common.WrapError(err, "write artifact")
	}
	uri := s.URI(name)
	s.log.Info("storage.upload.ok", "name", name, "bytes", len(content), "uri", uri)
	return uri, nil
}
