package seed

import (
	"context"
	"time"

	"PShop/logger"
	"PShop/middleware"
	productmodel "PShop/module/product/model"
	productstore "PShop/module/product/store"
	usermodel "PShop/module/user/model"
	userservice "PShop/module/user/service"
	userstore "PShop/module/user/store"
	"PShop/tools/apiresp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const Executed = "SEED EXECUTED"

type seedUser struct {
	Email    string
	FullName string
	Password string
	Roles    []string
}

type seedProduct struct {
	Title       string
	Description string
	Price       float64
	Stock       int
	Sizes       []string
	Gender      string
	Tags        []string
	Images      []string
}

var users = []seedUser{
	{Email: "test1@google.com", FullName: "Test One", Password: "Abc123", Roles: []string{usermodel.RoleAdmin}},
	{Email: "test2@google.com", FullName: "Test Two", Password: "Abc123", Roles: []string{usermodel.RoleUser, usermodel.RoleSuperUser}},
}

var catalogue = []seedProduct{
	{"Men's Chill Crew Neck Sweatshirt", "Comfortable crew neck in a soft cotton blend.", 75, 7, []string{"XS", "S", "M", "L", "XL", "XXL"}, productmodel.GenderMen, []string{"sweatshirt"}, []string{"1740176-00-A_0_2000.jpg", "1740176-00-A_1.jpg"}},
	{"Men's Quilted Shirt Jacket", "Quilted shirt jacket with a relaxed fit.", 200, 5, []string{"XS", "S", "M", "XL", "XXL"}, productmodel.GenderMen, []string{"jacket"}, []string{"1740507-00-A_0_2000.jpg", "1740507-00-A_1.jpg"}},
	{"Men's Raven Lightweight Zip Up Bomber Jacket", "Lightweight bomber with a two way zip.", 130, 10, []string{"S", "M", "L", "XL", "XXL"}, productmodel.GenderMen, []string{"shirt"}, []string{"1740250-00-A_0_2000.jpg", "1740250-00-A_1.jpg"}},
	{"Men's Turbine Long Sleeve Tee", "Long sleeve tee with a printed wordmark.", 45, 50, []string{"XS", "S", "M", "L"}, productmodel.GenderMen, []string{"shirt"}, []string{"1740280-00-A_0_2000.jpg", "1740280-00-A_1.jpg"}},
	{"Women's Cropped Puffer Jacket", "Cropped puffer with a stand collar.", 225, 85, []string{"XS", "S", "M"}, productmodel.GenderWomen, []string{"hoodie"}, []string{"1740535-00-A_0_2000.jpg", "1740535-00-A_1.jpg"}},
	{"Women's Raven Slouchy Crew Sweatshirt", "Slouchy fit crew in brushed fleece.", 110, 9, []string{"XS", "S", "M", "L", "XL", "XXL"}, productmodel.GenderWomen, []string{"sweatshirt"}, []string{"1740260-00-A_0_2000.jpg", "1740260-00-A_1.jpg"}},
	{"Kids Cybertruck Graffiti Hoodie", "Pullover hoodie with a graffiti print.", 30, 10, []string{"XS", "S", "M"}, productmodel.GenderKid, []string{"hoodie"}, []string{"1742694-00-A_0_2000.jpg", "1742694-00-A_1.jpg"}},
	{"Relaxed T Logo Hat", "Six panel cap with an embroidered logo.", 30, 0, []string{"XS", "S", "M", "L", "XL", "XXL"}, productmodel.GenderUnisex, []string{"hats"}, []string{"1657932-00-A_0_2000.jpg", "1657932-00-A_1.jpg"}},
}

// Service wipes both tables and loads the fixed catalogue.
type Service struct {
	users    userstore.Repo
	products productstore.Repo
	hasher   *userservice.Service
}

func NewService(users userstore.Repo, products productstore.Repo, hasher *userservice.Service) *Service {
	return &Service{users: users, products: products, hasher: hasher}
}

func (s *Service) Run(ctx context.Context) error {
	// products first, they reference users
	if err := s.products.DeleteAll(ctx); err != nil {
		return err
	}
	if err := s.users.DeleteAll(ctx); err != nil {
		return err
	}

	now := time.Now()
	var owner uuid.UUID
	for i, su := range users {
		hash, err := s.hasher.HashPassword(su.Password)
		if err != nil {
			return err
		}
		u := usermodel.User{
			ID: uuid.New(), Email: su.Email, Password: hash, FullName: su.FullName,
			IsActive: true, Roles: su.Roles, CreatedAt: now,
		}
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		if i == 0 {
			owner = u.ID
		}
	}

	for i, sp := range catalogue {
		p := productmodel.Product{
			ID:          uuid.New(),
			Title:       sp.Title,
			Price:       sp.Price,
			Description: sp.Description,
			Slug:        productmodel.Slugify(sp.Title),
			Stock:       sp.Stock,
			Sizes:       sp.Sizes,
			Gender:      sp.Gender,
			Tags:        sp.Tags,
			Images:      sp.Images,
			UserID:      &owner,
			CreatedAt:   now.Add(time.Duration(i) * time.Millisecond),
		}
		if err := s.products.Create(ctx, p); err != nil {
			return err
		}
	}
	logger.Info("[seed] executed", zap.Int("users", len(users)), zap.Int("products", len(catalogue)))
	return nil
}

func (s *Service) Mount(r *middleware.Router) {
	r.GET("/seed", apiresp.Wrap(func(c *gin.Context) error {
		if err := s.Run(c.Request.Context()); err != nil {
			return err
		}
		return apiresp.OK(c, Executed)
	}), middleware.RouteOpt{IsAuth: true, Roles: []string{usermodel.RoleSuperUser}})
}
