package tokencache

import "context"

// Marshaler exposes a cache's serialized form to a persistence hook.
type Marshaler interface {
	Serialize() ([]byte, error)
	Deserialize(data []byte) error
}

// HookContext describes the store access a hook is being notified about.
type HookContext struct {
	// ClientID and HomeAccountID identify what the access touched. Either may
	// be empty for whole-store operations.
	ClientID      string
	HomeAccountID string

	// HasStateChanged is true in AfterAccess when the operation mutated the
	// store. It is always false in BeforeAccess and for reads.
	HasStateChanged bool

	// Cache is the store itself. Hooks must not call back into other Store
	// methods; Serialize and Deserialize are safe.
	Cache Marshaler
}

// Hook synchronizes a Store with an external medium. BeforeAccess typically
// loads (Deserialize), AfterAccess typically saves when HasStateChanged.
//
// Hooks are best-effort. Their errors are logged and never change the
// outcome of the store operation.
type Hook interface {
	BeforeAccess(ctx context.Context, hc HookContext) error
	AfterAccess(ctx context.Context, hc HookContext) error
}

// HookFuncs adapts a pair of functions to Hook. Nil functions are no-ops.
type HookFuncs struct {
	Before func(ctx context.Context, hc HookContext) error
	After  func(ctx context.Context, hc HookContext) error
}

// BeforeAccess implements Hook.
func (h HookFuncs) BeforeAccess(ctx context.Context, hc HookContext) error {
	if h.Before == nil {
		return nil
	}
	return h.Before(ctx, hc)
}

// AfterAccess implements Hook.
func (h HookFuncs) AfterAccess(ctx context.Context, hc HookContext) error {
	if h.After == nil {
		return nil
	}
	return h.After(ctx, hc)
}
