package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonwraymond/tokenops/observe"
	"github.com/jonwraymond/tokenops/tokencache"
)

// Medium stores one serialized token cache.
//
// Contract:
// - Load returns nil data and no error when nothing has been saved yet.
// - Save replaces the stored blob as a whole.
// - Concurrency: implementations must be safe for concurrent use.
type Medium interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Locker is implemented by media that can exclude other writers for the
// duration of one store access.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// Hook implements tokencache.Hook over a Medium.
//
// A Hook serializes the accesses of every store that shares it, so two
// goroutines never interleave a load and a save. Media that also implement
// Locker extend that exclusion to other processes.
type Hook struct {
	medium Medium
	logger observe.Logger

	// mu is held from BeforeAccess to the matching AfterAccess.
	mu     sync.Mutex
	locked bool
	loaded bool
}

// NewHook creates a Hook. A nil logger means observe.NopLogger().
func NewHook(m Medium, logger observe.Logger) *Hook {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return &Hook{medium: m, logger: logger}
}

// BeforeAccess locks the medium if it is a Locker and replaces the cache's
// contents with the stored blob. Every call must be followed by AfterAccess,
// as tokencache.Store does, even when it fails.
func (h *Hook) BeforeAccess(ctx context.Context, hc tokencache.HookContext) error {
	h.mu.Lock()
	h.locked, h.loaded = false, false
	if l, ok := h.medium.(Locker); ok {
		if err := l.Lock(ctx); err != nil {
			return fmt.Errorf("lock token cache: %w", err)
		}
		h.locked = true
	}
	data, err := h.medium.Load(ctx)
	if err != nil {
		return fmt.Errorf("load token cache: %w", err)
	}
	if err := hc.Cache.Deserialize(data); err != nil {
		return fmt.Errorf("load token cache: %w", err)
	}
	h.loaded = true
	return nil
}

// AfterAccess saves the cache when the access changed it, then releases
// what BeforeAccess took. Changes are saved only when BeforeAccess loaded
// the stored blob; otherwise the save would overwrite entries the store
// never saw.
func (h *Hook) AfterAccess(ctx context.Context, hc tokencache.HookContext) (err error) {
	defer func() {
		if h.locked {
			if uerr := h.medium.(Locker).Unlock(); uerr != nil && err == nil {
				err = fmt.Errorf("unlock token cache: %w", uerr)
			}
		}
		h.locked, h.loaded = false, false
		h.mu.Unlock()
	}()
	if !hc.HasStateChanged {
		return nil
	}
	if !h.loaded {
		return errors.New("save token cache: skipped, stored cache was not loaded")
	}
	data, err := hc.Cache.Serialize()
	if err != nil {
		return fmt.Errorf("save token cache: %w", err)
	}
	if err := h.medium.Save(ctx, data); err != nil {
		return fmt.Errorf("save token cache: %w", err)
	}
	h.logger.Debug(ctx, "token cache saved",
		observe.Field{Key: "client_id", Value: hc.ClientID},
		observe.Field{Key: "bytes", Value: len(data)})
	return nil
}

var _ tokencache.Hook = (*Hook)(nil)
