package chat

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"PShop/tools/errs"
)

type fakeHandle struct {
	id          string
	terminated  atomic.Int32
	err         error
	onTerminate func()
}

func newHandle(id string) *fakeHandle { return &fakeHandle{id: id} }

func (h *fakeHandle) ID() string { return h.id }
func (h *fakeHandle) Terminate(string) error {
	h.terminated.Add(1)
	if h.onTerminate != nil {
		h.onTerminate()
	}
	return h.err
}

type fakeResolver struct {
	mu       sync.Mutex
	users    map[string]Identity
	inactive map[string]bool
	delay    time.Duration
	calls    atomic.Int32
}

func newResolver() *fakeResolver {
	return &fakeResolver{users: map[string]Identity{}, inactive: map[string]bool{}}
}

func (f *fakeResolver) add(id, name string) {
	f.mu.Lock()
	f.users[id] = Identity{ID: id, DisplayName: name}
	f.mu.Unlock()
}

func (f *fakeResolver) ResolveActiveIdentity(ctx context.Context, userID string) (Identity, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Identity{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ident, ok := f.users[userID]
	if !ok {
		return Identity{}, errs.ErrRecordNotFound.WrapMsg("user", "id", userID)
	}
	if f.inactive[userID] {
		return Identity{}, errs.ErrIdentityInactive.WrapMsg("user", "id", userID)
	}
	return ident, nil
}

func mustRegister(t *testing.T, r *Registry, h Handle, user string, d DeviceClass) RegisterResult {
	t.Helper()
	res, err := r.Register(context.Background(), h, user, d)
	if err != nil {
		t.Fatalf("Register(%s, %s, %s): %v", h.ID(), user, d, err)
	}
	return res
}

func assertRoster(t *testing.T, r *Registry, want ...string) {
	t.Helper()
	got := r.ListConnIDs()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("roster = %v, want %v", got, want)
	}
}

func assertUniqueKeys(t *testing.T, r *Registry) {
	t.Helper()
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[connKey]string{}
	for id, rec := range r.records {
		k := connKey{rec.UserID, rec.Device}
		if other, dup := seen[k]; dup {
			t.Fatalf("conns %s and %s share user=%s device=%s", other, id, rec.UserID, rec.Device)
		}
		seen[k] = id
	}
}

func TestRegistryScenario(t *testing.T) {
	res := newResolver()
	res.add("U1", "Ana")
	r := NewRegistry(res)

	c1, c2, c3 := newHandle("c1"), newHandle("c2"), newHandle("c3")

	mustRegister(t, r, c1, "U1", DeviceDesktop)
	assertRoster(t, r, "c1")

	out := mustRegister(t, r, c2, "U1", DeviceDesktop)
	if c1.terminated.Load() != 1 {
		t.Fatalf("c1 terminated %d times, want 1", c1.terminated.Load())
	}
	if len(out.Evicted) != 1 || out.Evicted[0].ConnID != "c1" {
		t.Fatalf("evicted = %+v", out.Evicted)
	}
	assertRoster(t, r, "c2")

	mustRegister(t, r, c3, "U1", DeviceMobile)
	assertRoster(t, r, "c2", "c3")

	r.Remove("c2")
	assertRoster(t, r, "c3")

	if c2.terminated.Load() != 0 || c3.terminated.Load() != 0 {
		t.Fatalf("organic removal must not terminate")
	}
}

func TestRegistryEvictsEvenWhenTerminateFails(t *testing.T) {
	res := newResolver()
	res.add("U", "u")
	r := NewRegistry(res)

	old := newHandle("old")
	old.err = errors.New("already closed")
	mustRegister(t, r, old, "U", DeviceTablet)
	mustRegister(t, r, newHandle("new"), "U", DeviceTablet)

	assertRoster(t, r, "new")
	if old.terminated.Load() != 1 {
		t.Fatalf("terminate not attempted")
	}
}

// The victim's own exit path removes it while Register is terminating it.
func TestRegistryEvictedExcludesSelfRemoved(t *testing.T) {
	res := newResolver()
	res.add("U", "u")
	r := NewRegistry(res)

	old := newHandle("old")
	var removed bool
	old.onTerminate = func() { _, removed = r.Remove("old") }
	mustRegister(t, r, old, "U", DeviceMobile)

	out := mustRegister(t, r, newHandle("new"), "U", DeviceMobile)
	if !removed {
		t.Fatalf("victim was not removed by its own exit path")
	}
	if len(out.Evicted) != 0 {
		t.Fatalf("evicted = %+v, want none", out.Evicted)
	}
	assertRoster(t, r, "new")
	assertUniqueKeys(t, r)
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	res := newResolver()
	res.add("U", "u")
	r := NewRegistry(res)
	mustRegister(t, r, newHandle("a"), "U", DeviceDesktop)

	if _, ok := r.Remove("missing"); ok {
		t.Fatalf("remove of unknown id reported success")
	}
	assertRoster(t, r, "a")
	if _, ok := r.Remove("a"); !ok {
		t.Fatalf("remove of known id failed")
	}
	if _, ok := r.Remove("a"); ok {
		t.Fatalf("second remove reported success")
	}
	if r.Len() != 0 {
		t.Fatalf("len = %d", r.Len())
	}
}

func TestRegistryRosterCompleteness(t *testing.T) {
	res := newResolver()
	r := NewRegistry(res)
	devices := []DeviceClass{DeviceMobile, DeviceTablet, DeviceDesktop}

	var want []string
	for u := 0; u < 5; u++ {
		user := fmt.Sprintf("user-%d", u)
		res.add(user, user)
		for _, d := range devices {
			id := fmt.Sprintf("%s-%s", user, d)
			mustRegister(t, r, newHandle(id), user, d)
			want = append(want, id)
		}
	}
	assertRoster(t, r, want...)
}

func TestRegistryDisplayNameIsSnapshot(t *testing.T) {
	res := newResolver()
	res.add("U", "Before")
	r := NewRegistry(res)
	mustRegister(t, r, newHandle("c"), "U", DeviceDesktop)

	res.add("U", "After")
	name, err := r.LookupDisplayName("c")
	if err != nil {
		t.Fatal(err)
	}
	if name != "Before" {
		t.Fatalf("name = %q, want snapshot %q", name, "Before")
	}
}

func TestRegistryLookupMissingFailsFast(t *testing.T) {
	r := NewRegistry(newResolver())
	_, err := r.LookupDisplayName("ghost")
	if !errors.Is(err, errs.ErrConnNotFound) {
		t.Fatalf("want ErrConnNotFound, got %v", err)
	}
}

func TestRegistryFailureIsolation(t *testing.T) {
	res := newResolver()
	res.add("B", "bee")
	res.add("I", "idle")
	res.inactive["I"] = true
	r := NewRegistry(res)

	mustRegister(t, r, newHandle("b"), "B", DeviceDesktop)

	_, err := r.Register(context.Background(), newHandle("a"), "nobody", DeviceDesktop)
	if !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}
	_, err = r.Register(context.Background(), newHandle("i"), "I", DeviceDesktop)
	if !errors.Is(err, errs.ErrIdentityInactive) {
		t.Fatalf("inactive user: got %v", err)
	}

	assertRoster(t, r, "b")
	if name, _ := r.LookupDisplayName("b"); name != "bee" {
		t.Fatalf("b changed: %q", name)
	}
}

func TestRegistryRejectsBadArgs(t *testing.T) {
	r := NewRegistry(newResolver())
	if _, err := r.Register(context.Background(), newHandle(""), "U", DeviceDesktop); !errors.Is(err, errs.ErrArgs) {
		t.Fatalf("empty conn id: %v", err)
	}
	if _, err := r.Register(context.Background(), newHandle("x"), "", DeviceDesktop); !errors.Is(err, errs.ErrArgs) {
		t.Fatalf("empty user: %v", err)
	}
}

func TestRegistryCanceledContext(t *testing.T) {
	res := newResolver()
	res.add("U", "u")
	res.delay = time.Second
	r := NewRegistry(res)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.Register(ctx, newHandle("c"), "U", DeviceDesktop); err == nil {
		t.Fatalf("expected error on canceled registration")
	}
	if r.Len() != 0 {
		t.Fatalf("record created despite cancellation")
	}
}

func TestRegistryConcurrentSameKey(t *testing.T) {
	res := newResolver()
	res.add("U", "u")
	res.delay = 5 * time.Millisecond
	r := NewRegistry(res)

	const n = 16
	handles := make([]*fakeHandle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		handles[i] = newHandle(fmt.Sprintf("c%d", i))
		wg.Add(1)
		go func(h *fakeHandle) {
			defer wg.Done()
			if _, err := r.Register(context.Background(), h, "U", DeviceMobile); err != nil {
				t.Errorf("register %s: %v", h.id, err)
			}
		}(handles[i])
	}
	wg.Wait()

	assertUniqueKeys(t, r)
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
	var total int32
	for _, h := range handles {
		c := h.terminated.Load()
		if c > 1 {
			t.Fatalf("%s terminated %d times", h.id, c)
		}
		total += c
	}
	if total != n-1 {
		t.Fatalf("terminations = %d, want %d", total, n-1)
	}
	if len(r.keys.m) != 0 {
		t.Fatalf("key locks leaked: %d", len(r.keys.m))
	}
}

func TestRegistryRandomOpsKeepInvariant(t *testing.T) {
	res := newResolver()
	users := []string{"u1", "u2", "u3"}
	for _, u := range users {
		res.add(u, u)
	}
	devices := []DeviceClass{DeviceMobile, DeviceTablet, DeviceDesktop}
	r := NewRegistry(res)
	rnd := rand.New(rand.NewSource(1))

	var live []string
	for i := 0; i < 500; i++ {
		if len(live) > 0 && rnd.Intn(3) == 0 {
			j := rnd.Intn(len(live))
			r.Remove(live[j])
			live = append(live[:j], live[j+1:]...)
		} else {
			id := fmt.Sprintf("c%d", i)
			mustRegister(t, r, newHandle(id), users[rnd.Intn(len(users))], devices[rnd.Intn(len(devices))])
			live = r.ListConnIDs()
		}
		assertUniqueKeys(t, r)
		if r.Len() > len(users)*len(devices) {
			t.Fatalf("registry grew past the number of keys: %d", r.Len())
		}
	}
}

func TestRegistryCloseAll(t *testing.T) {
	res := newResolver()
	res.add("U", "u")
	r := NewRegistry(res)
	a, b := newHandle("a"), newHandle("b")
	mustRegister(t, r, a, "U", DeviceMobile)
	mustRegister(t, r, b, "U", DeviceDesktop)

	r.CloseAll("shutdown")
	if r.Len() != 0 || a.terminated.Load() != 1 || b.terminated.Load() != 1 {
		t.Fatalf("CloseAll did not terminate and clear")
	}
}
