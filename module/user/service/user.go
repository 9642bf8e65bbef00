package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"PShop/logger"
	"PShop/module/user/model"
	"PShop/module/user/store"
	"PShop/service/chat"
	"PShop/tools/errs"
	jwtlib "PShop/tools/security"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// RegisterReq 注册入参
type RegisterReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=50,password"`
	FullName string `json:"fullName" validate:"required,min=1"`
}

// LoginReq 登录入参
type LoginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=50"`
}

// AuthResult is what register, login and check-status return.
type AuthResult struct {
	User      model.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("password", strongPassword)
	return v
}

// strongPassword wants an upper case letter, a lower case letter and a
// digit or symbol, and no leading dot or newline.
func strongPassword(fl validator.FieldLevel) bool {
	pwd := fl.Field().String()
	if strings.HasPrefix(pwd, ".") || strings.HasPrefix(pwd, "\n") {
		return false
	}
	var upper, lower, other bool
	for _, r := range pwd {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		default:
			other = true
		}
	}
	return upper && lower && other
}

func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return errs.ErrArgs.WrapMsg("invalid request", "err", err)
	}
	return nil
}

type Service struct {
	repo store.Repo
	jwt  jwtlib.Options
	cost int
	now  func() time.Time
}

func NewService(repo store.Repo, jwt jwtlib.Options) *Service {
	return &Service{repo: repo, jwt: jwt, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithBcryptCost lowers the hashing cost, for seeds and tests.
func (s *Service) WithBcryptCost(cost int) *Service {
	s.cost = cost
	return s
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (s *Service) HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), s.cost)
	if err != nil {
		return "", errs.WrapMsg(err, "hash password")
	}
	return string(b), nil
}

func (s *Service) Register(ctx context.Context, req RegisterReq) (AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := Validate(req); err != nil {
		return AuthResult{}, err
	}
	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return AuthResult{}, err
	}
	u := model.User{
		ID:        uuid.New(),
		Email:     req.Email,
		Password:  hash,
		FullName:  req.FullName,
		IsActive:  true,
		Roles:     []string{model.RoleUser},
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return AuthResult{}, err
	}
	logger.Info("[user] registered", zap.String("id", u.ID.String()), zap.String("email", u.Email))
	return s.issue(u)
}

// Login fails with the same Unauthorized error for unknown email and wrong
// password.
func (s *Service) Login(ctx context.Context, req LoginReq) (AuthResult, error) {
	email := normalizeEmail(req.Email)
	req.Email = email
	if err := Validate(req); err != nil {
		return AuthResult{}, err
	}
	u, err := s.repo.FindByEmail(ctx, email)
	if errs.ErrRecordNotFound.Is(err) {
		return AuthResult{}, errs.ErrUnauthorized.WrapMsg("credentials are not valid")
	}
	if err != nil {
		return AuthResult{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)) != nil {
		return AuthResult{}, errs.ErrUnauthorized.WrapMsg("credentials are not valid")
	}
	if !u.IsActive {
		return AuthResult{}, errs.ErrIdentityInactive.WrapMsg("user is inactive", "email", email)
	}
	return s.issue(u)
}

// CheckStatus reissues a token for an already authenticated user.
func (s *Service) CheckStatus(u model.User) (AuthResult, error) {
	return s.issue(u)
}

func (s *Service) issue(u model.User) (AuthResult, error) {
	token, exp, err := jwtlib.Generate(s.jwt, u.ID.String(), u.Roles)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: u, Token: token, ExpiresAt: exp}, nil
}

// Authenticate verifies token and loads its active owner.
func (s *Service) Authenticate(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, errs.ErrUnauthorized.WrapMsg("token missing")
	}
	claims, err := jwtlib.Verify(s.jwt, token)
	if err != nil {
		return model.User{}, err
	}
	u, err := s.activeUser(ctx, claims.Subject)
	if errs.ErrRecordNotFound.Is(err) {
		return model.User{}, errs.ErrUnauthorized.WrapMsg("token owner not found", "sub", claims.Subject)
	}
	return u, err
}

func (s *Service) activeUser(ctx context.Context, subject string) (model.User, error) {
	id, err := uuid.Parse(subject)
	if err != nil {
		return model.User{}, errs.ErrTokenInvalid.WrapMsg("subject is not a user id", "sub", subject)
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if !u.IsActive {
		return model.User{}, errs.ErrIdentityInactive.WrapMsg("user is inactive", "id", subject)
	}
	return u, nil
}

// VerifyCredential lets the chat gateway accept the same bearer tokens as the
// REST api. Activity is checked later by ResolveActiveIdentity.
func (s *Service) VerifyCredential(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", errs.ErrUnauthorized.WrapMsg("token missing")
	}
	claims, err := jwtlib.Verify(s.jwt, token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ResolveActiveIdentity is read fresh on every call; there is no cache.
func (s *Service) ResolveActiveIdentity(ctx context.Context, userID string) (chat.Identity, error) {
	u, err := s.activeUser(ctx, userID)
	if err != nil {
		return chat.Identity{}, err
	}
	return chat.Identity{ID: u.ID.String(), DisplayName: u.FullName}, nil
}

var (
	_ chat.IdentityResolver   = (*Service)(nil)
	_ chat.CredentialVerifier = (*Service)(nil)
)
