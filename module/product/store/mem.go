package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"PShop/module/product/model"
	"PShop/tools/errs"

	"github.com/google/uuid"
)

// MemStore mirrors PgStore's unique title/slug rules in memory.
type MemStore struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]model.Product
}

func NewMemStore() *MemStore { return &MemStore{rows: map[uuid.UUID]model.Product{}} }

func clone(p model.Product) model.Product {
	p.Sizes = append([]string{}, p.Sizes...)
	p.Tags = append([]string{}, p.Tags...)
	p.Images = append([]string{}, p.Images...)
	return p
}

func (s *MemStore) conflict(p model.Product) error {
	for id, o := range s.rows {
		if id == p.ID {
			continue
		}
		if o.Title == p.Title || o.Slug == p.Slug {
			return errs.ErrDuplicateKey.WrapMsg("product title or slug already exists", "title", p.Title)
		}
	}
	return nil
}

func (s *MemStore) Create(_ context.Context, p model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[p.ID]; ok {
		return errs.ErrDuplicateKey.WrapMsg("product id exists", "id", p.ID.String())
	}
	if err := s.conflict(p); err != nil {
		return err
	}
	s.rows[p.ID] = clone(p)
	return nil
}

func (s *MemStore) List(_ context.Context, limit, offset int) ([]model.Product, error) {
	s.mu.RLock()
	all := make([]model.Product, 0, len(s.rows))
	for _, p := range s.rows {
		all = append(all, clone(p))
	}
	s.mu.RUnlock()
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() < all[j].ID.String()
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemStore) FindByID(_ context.Context, id uuid.UUID) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.rows[id]
	if !ok {
		return model.Product{}, errs.ErrRecordNotFound.WrapMsg("find product", "id", id.String())
	}
	return clone(p), nil
}

func (s *MemStore) FindByTerm(_ context.Context, title, slug string) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.rows {
		if strings.EqualFold(p.Title, title) || p.Slug == slug {
			return clone(p), nil
		}
	}
	return model.Product{}, errs.ErrRecordNotFound.WrapMsg("find product", "term", title)
}

func (s *MemStore) Update(_ context.Context, p model.Product, replaceImages bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.rows[p.ID]
	if !ok {
		return errs.ErrRecordNotFound.WrapMsg("update product", "id", p.ID.String())
	}
	if err := s.conflict(p); err != nil {
		return err
	}
	if !replaceImages {
		p.Images = old.Images
	}
	p.CreatedAt = old.CreatedAt
	s.rows[p.ID] = clone(p)
	return nil
}

func (s *MemStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return errs.ErrRecordNotFound.WrapMsg("delete product", "id", id.String())
	}
	delete(s.rows, id)
	return nil
}

func (s *MemStore) DeleteAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = map[uuid.UUID]model.Product{}
	return nil
}

var (
	_ Repo = (*MemStore)(nil)
	_ Repo = (*PgStore)(nil)
)
