package store

import (
	"context"

	"PShop/data/database/pg"
	"PShop/module/user/model"

	"github.com/google/uuid"
)

// Repo is the persistence the user service needs.
type Repo interface {
	Create(ctx context.Context, u model.User) error
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (model.User, error)
	DeleteAll(ctx context.Context) error
}

type PgStore struct {
	q pg.Querier
}

func NewPgStore(q pg.Querier) *PgStore { return &PgStore{q: q} }

const userCols = `id, email, password, full_name, is_active, roles, created_at`

func (s *PgStore) Create(ctx context.Context, u model.User) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO users (`+userCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Password, u.FullName, u.IsActive, u.Roles, u.CreatedAt)
	return pg.MapError(err, "insert user", "email", u.Email)
}

func (s *PgStore) FindByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := s.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.IsActive, &u.Roles, &u.CreatedAt)
	return u, pg.MapError(err, "find user", "email", email)
}

func (s *PgStore) FindByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	var u model.User
	err := s.q.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &u.IsActive, &u.Roles, &u.CreatedAt)
	return u, pg.MapError(err, "find user", "id", id.String())
}

func (s *PgStore) DeleteAll(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `DELETE FROM users`)
	return pg.MapError(err, "delete users")
}
