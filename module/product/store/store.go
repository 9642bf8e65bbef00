package store

import (
	"context"

	"PShop/data/database/pg"
	"PShop/module/product/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo interface {
	Create(ctx context.Context, p model.Product) error
	List(ctx context.Context, limit, offset int) ([]model.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (model.Product, error)
	// FindByTerm matches title case-insensitively or slug exactly.
	FindByTerm(ctx context.Context, title, slug string) (model.Product, error)
	// Update rewrites the row; images are replaced only when replaceImages.
	Update(ctx context.Context, p model.Product, replaceImages bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) error
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore { return &PgStore{pool: pool} }

const productCols = `id, title, price, description, slug, stock, sizes, gender, tags, user_id, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (model.Product, error) {
	var p model.Product
	var desc *string
	err := row.Scan(&p.ID, &p.Title, &p.Price, &desc, &p.Slug, &p.Stock, &p.Sizes, &p.Gender, &p.Tags, &p.UserID, &p.CreatedAt)
	if desc != nil {
		p.Description = *desc
	}
	return p, err
}

func insertImages(ctx context.Context, q pg.Querier, id uuid.UUID, urls []string) error {
	for i, u := range urls {
		if _, err := q.Exec(ctx, `INSERT INTO product_images (product_id, url, position) VALUES ($1, $2, $3)`, id, u, i); err != nil {
			return pg.MapError(err, "insert product image", "product", id.String())
		}
	}
	return nil
}

func (s *PgStore) Create(ctx context.Context, p model.Product) error {
	return pg.InTx(ctx, s.pool, func(q pg.Querier) error {
		_, err := q.Exec(ctx,
			`INSERT INTO products (`+productCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			p.ID, p.Title, p.Price, p.Description, p.Slug, p.Stock, p.Sizes, p.Gender, p.Tags, p.UserID, p.CreatedAt)
		if err != nil {
			return pg.MapError(err, "insert product", "title", p.Title)
		}
		return insertImages(ctx, q, p.ID, p.Images)
	})
}

// loadImages fills Images of every product in ps with one query.
func (s *PgStore) loadImages(ctx context.Context, ps []model.Product) error {
	if len(ps) == 0 {
		return nil
	}
	ids := make([]string, len(ps))
	idx := make(map[uuid.UUID]int, len(ps))
	for i, p := range ps {
		ids[i] = p.ID.String()
		idx[p.ID] = i
		ps[i].Images = []string{}
	}
	rows, err := s.pool.Query(ctx,
		`SELECT product_id, url FROM product_images WHERE product_id = ANY($1::uuid[]) ORDER BY product_id, position`, ids)
	if err != nil {
		return pg.MapError(err, "load product images")
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var url string
		if err := rows.Scan(&id, &url); err != nil {
			return pg.MapError(err, "scan product image")
		}
		if i, ok := idx[id]; ok {
			ps[i].Images = append(ps[i].Images, url)
		}
	}
	return pg.MapError(rows.Err(), "load product images")
}

func (s *PgStore) List(ctx context.Context, limit, offset int) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productCols+` FROM products ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, pg.MapError(err, "list products")
	}
	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, pg.MapError(err, "scan product")
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, pg.MapError(err, "list products")
	}
	if err := s.loadImages(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PgStore) findOne(ctx context.Context, where string, args ...any) (model.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE `+where+` LIMIT 1`, args...))
	if err != nil {
		return model.Product{}, pg.MapError(err, "find product", "where", where)
	}
	one := []model.Product{p}
	if err := s.loadImages(ctx, one); err != nil {
		return model.Product{}, err
	}
	return one[0], nil
}

func (s *PgStore) FindByID(ctx context.Context, id uuid.UUID) (model.Product, error) {
	return s.findOne(ctx, `id = $1`, id)
}

func (s *PgStore) FindByTerm(ctx context.Context, title, slug string) (model.Product, error) {
	return s.findOne(ctx, `UPPER(title) = UPPER($1) OR slug = $2`, title, slug)
}

func (s *PgStore) Update(ctx context.Context, p model.Product, replaceImages bool) error {
	return pg.InTx(ctx, s.pool, func(q pg.Querier) error {
		tag, err := q.Exec(ctx,
			`UPDATE products SET title = $2, price = $3, description = $4, slug = $5, stock = $6,
			 sizes = $7, gender = $8, tags = $9, user_id = $10 WHERE id = $1`,
			p.ID, p.Title, p.Price, p.Description, p.Slug, p.Stock, p.Sizes, p.Gender, p.Tags, p.UserID)
		if err != nil {
			return pg.MapError(err, "update product", "id", p.ID.String())
		}
		if tag.RowsAffected() == 0 {
			return pg.MapError(pgx.ErrNoRows, "update product", "id", p.ID.String())
		}
		if !replaceImages {
			return nil
		}
		if _, err := q.Exec(ctx, `DELETE FROM product_images WHERE product_id = $1`, p.ID); err != nil {
			return pg.MapError(err, "clear product images", "id", p.ID.String())
		}
		return insertImages(ctx, q, p.ID, p.Images)
	})
}

func (s *PgStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return pg.MapError(err, "delete product", "id", id.String())
	}
	if tag.RowsAffected() == 0 {
		return pg.MapError(pgx.ErrNoRows, "delete product", "id", id.String())
	}
	return nil
}

// DeleteAll removes every product; images go with the cascade.
func (s *PgStore) DeleteAll(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM products`)
	return pg.MapError(err, "delete products")
}
