package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileStoreConfig configures a FileStore.
type FileStoreConfig struct {
	// Path is the cache file. Its directory is created on first save.
	Path string

	// LockTimeout bounds the wait for the cross-process lock.
	// Default: 5 seconds
	LockTimeout time.Duration

	// RetryDelay is the interval between lock attempts.
	// Default: 50ms
	RetryDelay time.Duration
}

// FileStore is a Medium backed by one file, replaced atomically on save and
// guarded by an advisory lock on Path + ".lock".
type FileStore struct {
	path    string
	timeout time.Duration
	retry   time.Duration

	// mu serializes goroutines of this process; the file lock only
	// excludes other processes.
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileStore creates a FileStore for path with default settings.
func NewFileStore(path string) *FileStore {
	return NewFileStoreWithConfig(FileStoreConfig{Path: path})
}

// NewFileStoreWithConfig creates a FileStore.
func NewFileStoreWithConfig(config FileStoreConfig) *FileStore {
	if config.LockTimeout <= 0 {
		config.LockTimeout = 5 * time.Second
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 50 * time.Millisecond
	}
	return &FileStore{
		path:    config.Path,
		timeout: config.LockTimeout,
		retry:   config.RetryDelay,
		lock:    flock.New(config.Path + ".lock"),
	}
}

// Path returns the cache file path.
func (f *FileStore) Path() string { return f.path }

// Load reads the cache file. A missing file is an empty cache.
func (f *FileStore) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return data, nil
}

// Save writes data to a temporary file next to the cache file and renames
// it into place. The file is readable by its owner only.
func (f *FileStore) Save(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

// Lock takes the in-process mutex and then the file lock.
func (f *FileStore) Lock(ctx context.Context) error {
	f.mu.Lock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		f.mu.Unlock()
		return fmt.Errorf("create lock directory: %w", err)
	}

	lockCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	locked, err := f.lock.TryLockContext(lockCtx, f.retry)
	if err != nil {
		f.mu.Unlock()
		return fmt.Errorf("acquire %s: %w", f.lock.Path(), err)
	}
	if !locked {
		f.mu.Unlock()
		return fmt.Errorf("acquire %s: timeout after %v", f.lock.Path(), f.timeout)
	}
	return nil
}

// Unlock releases the file lock and then the in-process mutex.
func (f *FileStore) Unlock() error {
	err := f.lock.Unlock()
	f.mu.Unlock()
	return err
}

var (
	_ Medium = (*FileStore)(nil)
	_ Locker = (*FileStore)(nil)
)
