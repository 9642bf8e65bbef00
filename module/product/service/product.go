package service

import (
	"context"
	"strings"
	"time"

	"PShop/logger"
	"PShop/module/product/model"
	"PShop/module/product/store"
	usermodel "PShop/module/user/model"
	"PShop/tools/errs"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateReq 新建商品入参
type CreateReq struct {
	Title       string   `json:"title" validate:"required,min=1"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Description string   `json:"description"`
	Slug        string   `json:"slug"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
	Sizes       []string `json:"sizes" validate:"required,dive,min=1"`
	Gender      string   `json:"gender" validate:"required,oneof=men women kid unisex"`
	Tags        []string `json:"tags" validate:"omitempty,dive,min=1"`
	Images      []string `json:"images" validate:"omitempty,dive,min=1"`
}

// UpdateReq: nil fields are left alone; Images, when present, replace all.
type UpdateReq struct {
	Title       *string  `json:"title" validate:"omitempty,min=1"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Description *string  `json:"description"`
	Slug        *string  `json:"slug"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
	Sizes       []string `json:"sizes" validate:"omitempty,dive,min=1"`
	Gender      *string  `json:"gender" validate:"omitempty,oneof=men women kid unisex"`
	Tags        []string `json:"tags" validate:"omitempty,dive,min=1"`
	Images      []string `json:"images" validate:"omitempty,dive,min=1"`
}

// Page 分页参数
type Page struct {
	Limit  int `form:"limit" validate:"gte=0"`
	Offset int `form:"offset" validate:"gte=0"`
}

const DefaultLimit = 10

var validate = validator.New()

func check(v any) error {
	if err := validate.Struct(v); err != nil {
		return errs.ErrArgs.WrapMsg("invalid request", "err", err)
	}
	return nil
}

type Service struct {
	repo store.Repo
	now  func() time.Time
}

func NewService(repo store.Repo) *Service {
	return &Service{repo: repo, now: time.Now}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Service) Create(ctx context.Context, req CreateReq, owner usermodel.User) (model.Product, error) {
	if err := check(req); err != nil {
		return model.Product{}, err
	}
	slug := req.Slug
	if strings.TrimSpace(slug) == "" {
		slug = req.Title
	}
	p := model.Product{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Slug:        model.Slugify(slug),
		Sizes:       req.Sizes,
		Gender:      req.Gender,
		Tags:        orEmpty(req.Tags),
		Images:      orEmpty(req.Images),
		CreatedAt:   s.now(),
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if owner.ID != uuid.Nil {
		id := owner.ID
		p.UserID = &id
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return model.Product{}, err
	}
	logger.Info("[product] created", zap.String("id", p.ID.String()), zap.String("slug", p.Slug))
	return p, nil
}

func (s *Service) List(ctx context.Context, pg Page) ([]model.Product, error) {
	if err := check(pg); err != nil {
		return nil, err
	}
	if pg.Limit == 0 {
		pg.Limit = DefaultLimit
	}
	out, err := s.repo.List(ctx, pg.Limit, pg.Offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Product{}
	}
	return out, nil
}

// FindOne looks term up as an id when it parses as a uuid, otherwise as a
// title (any case) or slug.
func (s *Service) FindOne(ctx context.Context, term string) (model.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return model.Product{}, errs.ErrArgs.WrapMsg("empty search term")
	}
	if id, err := uuid.Parse(term); err == nil {
		return s.repo.FindByID(ctx, id)
	}
	p, err := s.repo.FindByTerm(ctx, term, strings.ToLower(term))
	if errs.ErrRecordNotFound.Is(err) {
		return model.Product{}, errs.ErrRecordNotFound.WrapMsg("product not found", "term", term)
	}
	return p, err
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateReq, editor usermodel.User) (model.Product, error) {
	if err := check(req); err != nil {
		return model.Product{}, err
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return model.Product{}, err
	}
	if req.Title != nil {
		p.Title = strings.TrimSpace(*req.Title)
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.Sizes != nil {
		p.Sizes = req.Sizes
	}
	if req.Gender != nil {
		p.Gender = *req.Gender
	}
	if req.Tags != nil {
		p.Tags = req.Tags
	}
	// a new title keeps the old slug unless one is sent
	if req.Slug != nil && strings.TrimSpace(*req.Slug) != "" {
		p.Slug = *req.Slug
	}
	p.Slug = model.Slugify(p.Slug)
	replace := req.Images != nil
	if replace {
		p.Images = req.Images
	}
	if editor.ID != uuid.Nil {
		uid := editor.ID
		p.UserID = &uid
	}
	if err := s.repo.Update(ctx, p, replace); err != nil {
		return model.Product{}, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("[product] deleted", zap.String("id", id.String()))
	return nil
}

// DeleteAll wipes the catalogue; used by the seed.
func (s *Service) DeleteAll(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}
