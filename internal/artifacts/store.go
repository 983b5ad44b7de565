// Package artifacts stores run artifacts (screenshots, reports) in a local
// directory and optionally mirrors them to object storage.
package artifacts

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kuitang/inventory-smoke/internal/errs"
	"github.com/kuitang/inventory-smoke/internal/obs"
)

// Uploader mirrors an artifact to remote storage.
type Uploader interface {
	PutObject(ctx context.Context, key string, content []byte, contentType string) error
}

// Store writes artifacts under a fixed directory. Names are fixed per step,
// so saving the same name again overwrites the previous file.
type Store struct {
	dir string

	uploader  Uploader
	keyPrefix string

	mu    sync.Mutex
	saved []string
}

// NewStore creates dir if needed and returns a Store writing into it.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.Unavailable, "create artifact dir "+dir, err)
	}
	return &Store{dir: dir}, nil
}

// WithUploader mirrors every saved artifact to u under keyPrefix.
func (s *Store) WithUploader(u Uploader, keyPrefix string) *Store {
	s.uploader = u
	s.keyPrefix = strings.Trim(keyPrefix, "/")
	return s
}

// Dir returns the local artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data to <dir>/<name> and returns the written path.
// Upload failures are logged; the local file is the artifact of record.
func (s *Store) Save(ctx context.Context, name string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", errs.New(errs.InvalidArgument, fmt.Sprintf("invalid artifact name %q", name))
	}
	p := filepath.Join(s.dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", errs.Wrap(errs.Unavailable, "write artifact "+name, err)
	}
	s.record(name)

	if s.uploader != nil {
		key := s.Key(name)
		if err := s.uploader.PutObject(ctx, key, data, ContentType(name)); err != nil {
			obs.From(ctx).With("pkg", "artifacts").Warn("artifact_upload_failed", "key", key, "error", err)
		} else {
			obs.From(ctx).With("pkg", "artifacts").Debug("artifact_uploaded", "key", key, "bytes", len(data))
		}
	}
	return p, nil
}

// Key returns the object key an artifact is uploaded under.
func (s *Store) Key(name string) string {
	if s.keyPrefix == "" {
		return name
	}
	return path.Join(s.keyPrefix, name)
}

func (s *Store) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.saved {
		if n == name {
			return
		}
	}
	s.saved = append(s.saved, name)
}

// Saved lists artifact names in first-save order, without duplicates.
func (s *Store) Saved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.saved...)
}

// ContentType guesses the MIME type from the artifact extension.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
