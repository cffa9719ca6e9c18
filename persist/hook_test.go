package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jonwraymond/tokenops/tokencache"
)

// memMedium is an in-memory Medium that counts saves.
type memMedium struct {
	mu      sync.Mutex
	data    []byte
	saves   int
	loadErr error
}

func (m *memMedium) Load(context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.data, nil
}

func (m *memMedium) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *memMedium) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// lockingMedium records the order of lock, load, save and unlock calls.
type lockingMedium struct {
	memMedium
	lockErr error
	events  []string
}

func (m *lockingMedium) Lock(context.Context) error {
	if m.lockErr != nil {
		m.events = append(m.events, "lock-failed")
		return m.lockErr
	}
	m.events = append(m.events, "lock")
	return nil
}

func (m *lockingMedium) Unlock() error {
	m.events = append(m.events, "unlock")
	return nil
}

func (m *lockingMedium) Load(ctx context.Context) ([]byte, error) {
	m.events = append(m.events, "load")
	return m.memMedium.Load(ctx)
}

func (m *lockingMedium) Save(ctx context.Context, data []byte) error {
	m.events = append(m.events, "save")
	return m.memMedium.Save(ctx, data)
}

func testAccount(home string) tokencache.Account {
	return tokencache.Account{
		HomeAccountID: home,
		Environment:   "login.example.com",
		Realm:         "tenant-1",
		Username:      home + "@example.com",
		AuthorityType: tokencache.AuthorityTypeAAD,
	}
}

func TestHook_SharesCacheBetweenStores(t *testing.T) {
	ctx := context.Background()
	medium := &memMedium{}
	a := tokencache.NewStore(tokencache.WithHook(NewHook(medium, nil)))
	b := tokencache.NewStore(tokencache.WithHook(NewHook(medium, nil)))

	if err := a.UpsertAccount(ctx, testAccount("uid-1.tenant-1")); err != nil {
		t.Fatalf("UpsertAccount: %v", err)
	}
	if err := b.UpsertAccount(ctx, testAccount("uid-2.tenant-1")); err != nil {
		t.Fatalf("UpsertAccount: %v", err)
	}

	// a reloads before reading and sees b's write on top of its own.
	if got := a.Accounts(ctx); len(got) != 2 {
		t.Errorf("Accounts = %d, want 2", len(got))
	}
	if n := medium.saveCount(); n != 2 {
		t.Errorf("saves = %d, want one per write", n)
	}
}

func TestHook_BeforeAccessErrors(t *testing.T) {
	ctx := context.Background()
	store := tokencache.NewStore()
	boom := errors.New("disk gone")

	h := NewHook(&memMedium{loadErr: boom}, nil)
	if err := h.BeforeAccess(ctx, tokencache.HookContext{Cache: store}); !errors.Is(err, boom) {
		t.Errorf("BeforeAccess err = %v, want %v", err, boom)
	}

	h = NewHook(&memMedium{data: []byte("{not json")}, nil)
	if err := h.BeforeAccess(ctx, tokencache.HookContext{Cache: store}); !errors.Is(err, tokencache.ErrMalformedCache) {
		t.Errorf("BeforeAccess err = %v, want ErrMalformedCache", err)
	}
}

func TestHook_LoadFailureSkipsSave(t *testing.T) {
	ctx := context.Background()
	medium := &memMedium{}
	seed := tokencache.NewStore(tokencache.WithHook(NewHook(medium, nil)))
	if err := seed.UpsertAccount(ctx, testAccount("uid-1.tenant-1")); err != nil {
		t.Fatal(err)
	}

	medium.mu.Lock()
	medium.loadErr = errors.New("unavailable")
	medium.mu.Unlock()

	store := tokencache.NewStore(tokencache.WithHook(NewHook(medium, nil)))
	if err := store.UpsertAccount(ctx, testAccount("uid-2.tenant-1")); err != nil {
		t.Fatalf("UpsertAccount: %v", err)
	}
	if n := medium.saveCount(); n != 1 {
		t.Errorf("saves = %d, want only the seed write", n)
	}
	// The write is still visible in memory.
	if got := store.Accounts(ctx); len(got) != 1 || got[0].HomeAccountID != "uid-2.tenant-1" {
		t.Errorf("Accounts = %+v, want the unsaved account", got)
	}

	medium.mu.Lock()
	medium.loadErr = nil
	medium.mu.Unlock()
	if got := seed.Accounts(ctx); len(got) != 1 || got[0].HomeAccountID != "uid-1.tenant-1" {
		t.Errorf("stored accounts = %+v, want the seed account intact", got)
	}
}

func TestHook_ConcurrentAccessKeepsEveryWrite(t *testing.T) {
	ctx := context.Background()
	medium := &memMedium{}
	store := tokencache.NewStore(tokencache.WithHook(NewHook(medium, nil)))

	const writers = 16
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			home := fmt.Sprintf("uid-%d.tenant-1", i)
			if err := store.UpsertAccount(ctx, testAccount(home)); err != nil {
				t.Errorf("UpsertAccount(%s): %v", home, err)
			}
		}()
		go func() {
			defer wg.Done()
			_ = store.Accounts(ctx)
		}()
	}
	wg.Wait()

	if got := store.Accounts(ctx); len(got) != writers {
		t.Errorf("Accounts = %d, want %d", len(got), writers)
	}
	fresh := tokencache.NewStore(tokencache.WithHook(NewHook(medium, nil)))
	if got := fresh.Accounts(ctx); len(got) != writers {
		t.Errorf("stored accounts = %d, want %d", len(got), writers)
	}
}

func TestHook_LockerBracketsAccess(t *testing.T) {
	ctx := context.Background()
	medium := &lockingMedium{}
	store := tokencache.NewStore(tokencache.WithHook(NewHook(medium, nil)))

	if err := store.UpsertAccount(ctx, testAccount("uid-1.tenant-1")); err != nil {
		t.Fatal(err)
	}
	_ = store.Accounts(ctx)

	want := []string{"lock", "load", "save", "unlock", "lock", "load", "unlock"}
	if len(medium.events) != len(want) {
		t.Fatalf("events = %v, want %v", medium.events, want)
	}
	for i := range want {
		if medium.events[i] != want[i] {
			t.Fatalf("events = %v, want %v", medium.events, want)
		}
	}
}

func TestHook_LockFailureSkipsSave(t *testing.T) {
	ctx := context.Background()
	medium := &lockingMedium{lockErr: errors.New("busy")}
	h := NewHook(medium, nil)
	store := tokencache.NewStore(tokencache.WithHook(h))

	if err := store.UpsertAccount(ctx, testAccount("uid-1.tenant-1")); err != nil {
		t.Fatal(err)
	}
	if medium.saveCount() != 0 {
		t.Error("saved without holding the lock")
	}
	for _, e := range medium.events {
		if e == "unlock" || e == "load" {
			t.Errorf("events = %v, want no load or unlock after a failed lock", medium.events)
		}
	}

	// The hook's own mutex was released: later accesses still run.
	medium.lockErr = nil
	if err := store.UpsertAccount(ctx, testAccount("uid-2.tenant-1")); err != nil {
		t.Fatal(err)
	}
	if medium.saveCount() != 1 {
		t.Errorf("saves = %d, want 1", medium.saveCount())
	}
}
