package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"PShop/logger"
	"PShop/tools/errs"

	"go.uber.org/zap"
)

// Handle is the registry's narrow view of a live transport.
type Handle interface {
	ID() string
	Terminate(reason string) error
}

// Identity is what the registry snapshots about a user at registration time.
type Identity struct {
	ID          string
	DisplayName string
}

// IdentityResolver must fail with errs.ErrRecordNotFound for unknown users and
// errs.ErrIdentityInactive for disabled ones.
type IdentityResolver interface {
	ResolveActiveIdentity(ctx context.Context, userID string) (Identity, error)
}

type ConnRecord struct {
	ConnID       string
	UserID       string
	DisplayName  string
	Device       DeviceClass
	RegisteredAt time.Time

	seq    uint64
	handle Handle
}

type RegisterResult struct {
	Record  ConnRecord
	Evicted []ConnRecord
}

type connKey struct {
	user   string
	device DeviceClass
}

// Registry keeps at most one live connection per (user, device class).
type Registry struct {
	mu      sync.RWMutex
	records map[string]*ConnRecord // connID -> record
	seq     uint64

	resolver IdentityResolver
	keys     keyLocks
	clock    func() time.Time
}

func NewRegistry(resolver IdentityResolver) *Registry {
	if resolver == nil {
		panic("chat: nil IdentityResolver")
	}
	return &Registry{
		records:  make(map[string]*ConnRecord),
		resolver: resolver,
		keys:     keyLocks{m: make(map[connKey]*keyLock)},
		clock:    time.Now,
	}
}

// Register binds h to userID/device. Any older connection under the same
// (user, device) is terminated and dropped first. On error nothing is
// recorded and the caller owns closing h.
func (r *Registry) Register(ctx context.Context, h Handle, userID string, device DeviceClass) (RegisterResult, error) {
	if h == nil || h.ID() == "" || userID == "" {
		return RegisterResult{}, errs.ErrArgs.WrapMsg("handle and user id required")
	}
	if device == "" {
		device = DeviceDesktop
	}

	key := connKey{user: userID, device: device}
	unlock := r.keys.lock(key)
	defer unlock()

	ident, err := r.resolver.ResolveActiveIdentity(ctx, userID)
	if err != nil {
		return RegisterResult{}, errs.WrapMsg(err, "resolve identity", "user", userID)
	}
	if err := ctx.Err(); err != nil {
		return RegisterResult{}, errs.WrapMsg(err, "register aborted", "conn", h.ID())
	}

	cand := &ConnRecord{
		ConnID:       h.ID(),
		UserID:       userID,
		DisplayName:  ident.DisplayName,
		Device:       device,
		RegisteredAt: r.clock(),
		handle:       h,
	}

	r.mu.RLock()
	var victims []*ConnRecord
	for id, rec := range r.records {
		if id != cand.ConnID && rec.UserID == userID && rec.Device == device {
			victims = append(victims, rec)
		}
	}
	r.mu.RUnlock()

	// the registry is authoritative: a failed terminate still evicts
	for _, v := range victims {
		if err := v.handle.Terminate("replaced by " + cand.ConnID); err != nil {
			logger.Warn("[registry] terminate evicted conn failed",
				zap.String("conn", v.ConnID), zap.String("user", userID), zap.Error(err))
		}
	}

	res := RegisterResult{Evicted: make([]ConnRecord, 0, len(victims))}
	r.mu.Lock()
	for _, v := range victims {
		// a victim that left on its own was already reported by Remove
		if cur, ok := r.records[v.ConnID]; ok && cur == v {
			delete(r.records, v.ConnID)
			res.Evicted = append(res.Evicted, *v)
		}
	}
	r.seq++
	cand.seq = r.seq
	r.records[cand.ConnID] = cand
	r.mu.Unlock()

	res.Record = *cand
	return res, nil
}

// Remove deletes connID; absent ids are a no-op.
func (r *Registry) Remove(connID string) (ConnRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[connID]
	if !ok {
		return ConnRecord{}, false
	}
	delete(r.records, connID)
	return *rec, true
}

func (r *Registry) ordered() []*ConnRecord {
	r.mu.RLock()
	recs := make([]*ConnRecord, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	return recs
}

// ListConnIDs returns the roster in registration order.
func (r *Registry) ListConnIDs() []string {
	recs := r.ordered()
	out := make([]string, len(recs))
	for i, rec := range recs {
		out[i] = rec.ConnID
	}
	return out
}

// Records returns copies of every record in registration order.
func (r *Registry) Records() []ConnRecord {
	recs := r.ordered()
	out := make([]ConnRecord, len(recs))
	for i, rec := range recs {
		out[i] = *rec
	}
	return out
}

func (r *Registry) LookupDisplayName(connID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[connID]
	if !ok {
		return "", errs.ErrConnNotFound.WrapMsg("", "conn", connID)
	}
	return rec.DisplayName, nil
}

func (r *Registry) Get(connID string) (ConnRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[connID]
	if !ok {
		return ConnRecord{}, false
	}
	return *rec, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// CloseAll terminates every registered connection and empties the registry.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	recs := r.records
	r.records = make(map[string]*ConnRecord)
	r.mu.Unlock()

	for _, rec := range recs {
		_ = rec.handle.Terminate(reason)
	}
}

// ===== per-key registration locks =====

type keyLock struct {
	mu   sync.Mutex
	refs int
}

type keyLocks struct {
	mu sync.Mutex
	m  map[connKey]*keyLock
}

func (k *keyLocks) lock(key connKey) func() {
	k.mu.Lock()
	l, ok := k.m[key]
	if !ok {
		l = &keyLock{}
		k.m[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
