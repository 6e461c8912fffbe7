/**
 * Request-scoped artifact tracking.
 *
 * Every temporary file created while serving one request (uploaded
 * payload, rasterized page image) is registered here and removed exactly
 * once at end of request, regardless of which path the request took.
 */

package artifacts

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Scope owns the temporary artifacts of a single request. All artifacts
// live under a per-request directory whose name is unique across
// concurrent requests.
type Scope struct {
	log zerolog.Logger
	dir string

	mu       sync.Mutex
	paths    []string
	released bool
}

// NewScope creates a fresh artifact scope under root. The caller must
// arrange for Release to run on every exit path.
func NewScope(root string, log zerolog.Logger) (*Scope, error) {
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, "req-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &Scope{
		log: log.With().Str("artifact_dir", dir).Logger(),
		dir: dir,
	}, nil
}

// Dir returns the request's artifact directory.
func (s *Scope) Dir() string {
	return s.dir
}

// Register records an artifact for removal at release time.
func (s *Scope) Register(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
}

// SaveUpload streams an uploaded payload into the scope and registers it.
func (s *Scope) SaveUpload(name string, r io.Reader) (string, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	s.Register(path)
	if copyErr != nil {
		return "", fmt.Errorf("write upload file: %w", copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("close upload file: %w", closeErr)
	}
	return path, nil
}

// Release removes every registered artifact and the scope directory.
// It is idempotent and best-effort: removal failures are logged, never
// escalated, so cleanup can never mask the request's primary outcome.
func (s *Scope) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", path).Msg("Failed to remove artifact")
		}
	}

	if err := os.RemoveAll(s.dir); err != nil {
		s.log.Warn().Err(err).Msg("Failed to remove artifact directory")
		return
	}
	s.log.Debug().Int("artifacts", len(paths)).Msg("Artifact scope released")
}
