package store

import (
	"context"
	"sync"

	"PShop/module/user/model"
	"PShop/tools/errs"

	"github.com/google/uuid"
)

// MemStore keeps users in memory; it backs tests and the no-postgres mode.
type MemStore struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]model.User
	email map[string]uuid.UUID
}

func NewMemStore() *MemStore {
	return &MemStore{byID: map[uuid.UUID]model.User{}, email: map[string]uuid.UUID{}}
}

func (s *MemStore) Create(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.email[u.Email]; ok {
		return errs.ErrDuplicateKey.WrapMsg("insert user: email already exists", "email", u.Email)
	}
	s.byID[u.ID] = u
	s.email[u.Email] = u.ID
	return nil
}

func (s *MemStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.email[email]
	if !ok {
		return model.User{}, errs.ErrRecordNotFound.WrapMsg("find user", "email", email)
	}
	return s.byID[id], nil
}

func (s *MemStore) FindByID(_ context.Context, id uuid.UUID) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return model.User{}, errs.ErrRecordNotFound.WrapMsg("find user", "id", id.String())
	}
	return u, nil
}

func (s *MemStore) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = map[uuid.UUID]model.User{}
	s.email = map[string]uuid.UUID{}
	return nil
}

// SetActive flips the active flag of an existing user.
func (s *MemStore) SetActive(id uuid.UUID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[id]; ok {
		u.IsActive = active
		s.byID[id] = u
	}
}

var (
	_ Repo = (*MemStore)(nil)
	_ Repo = (*PgStore)(nil)
)
