package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/semmidev/oraexport/internal/domain"
)

// FileLocker takes an advisory flock on <dir>/oraexport_<key>.lock. The lock
// dies with the process, so a crashed run never wedges the next one.
type FileLocker struct {
	dir string
}

func NewFile(dir string) (*FileLocker, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &FileLocker{dir: dir}, nil
}

func (l *FileLocker) Acquire(ctx context.Context, key string) (func() error, error) {
	path := l.Path(key)
	fl := flock.New(path)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLocked, path)
	}

	return fl.Unlock, nil
}

func (l *FileLocker) Path(key string) string {
	return filepath.Join(l.dir, "oraexport_"+key+".lock")
}

// Nop never blocks. Used when scheduling discipline alone guarantees
// exclusion.
type Nop struct{}

func (Nop) Acquire(ctx context.Context, key string) (func() error, error) {
	return func() error { return nil }, nil
}
