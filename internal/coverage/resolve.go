package coverage

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
)

// ErrMissingReference is returned by resolvers when a referenced test
// spec does not exist
var ErrMissingReference = errors.New("referenced test spec missing")

// Resolver checks external test-spec references found in open markers
type Resolver interface {
	// Resolve returns the resolved path of ref.File relative to basedir,
	// and an error when it cannot be used
	Resolve(basedir string, ref TestBlockPayload) (string, error)
}

// FSResolver resolves references against a filesystem
type FSResolver struct {
	Fs     afero.Fs
	Logger *slog.Logger
}

// NewFSResolver creates a resolver over fs
func NewFSResolver(fs afero.Fs, logger *slog.Logger) *FSResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSResolver{Fs: fs, Logger: logger}
}

// Resolve implements Resolver. Only file existence is checked; a test id
// inside the target is not validated.
func (r *FSResolver) Resolve(basedir string, ref TestBlockPayload) (string, error) {
	resolved := resolvePath(basedir, ref.File)

	exists, err := afero.Exists(r.Fs, resolved)
	if err != nil {
		return resolved, fmt.Errorf("stat %s: %w", resolved, err)
	}
	if !exists {
		return resolved, fmt.Errorf("%w: %s", ErrMissingReference, resolved)
	}

	if ref.ID != "" {
		r.Logger.Debug("test id validation is not implemented",
			slog.String("spec", resolved),
			slog.String("id", ref.ID),
		)
	}
	return resolved, nil
}

func resolvePath(basedir, rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(basedir, rel)
}
