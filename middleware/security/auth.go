package security

import (
	"context"
	"strings"

	"PShop/module/user/model"
	"PShop/tools/apiresp"
	"PShop/tools/errs"

	"github.com/gin-gonic/gin"
)

// —— context key ——
const (
	PPCtxAuthKey = "authorization" // string, the raw token
	PPCtxUserKey = "authUser"      // model.User
)

// Authenticator turns a bearer token into its active owner.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (model.User, error)
}

type Options struct {
	HeaderToken               string // 默认 "Authentication"
	EnableAuthorizationBearer bool   // 默认 true
}

func DefaultOptions() *Options {
	return &Options{
		HeaderToken:               "Authentication",
		EnableAuthorizationBearer: true,
	}
}

func (o *Options) token(c *gin.Context) string {
	token := strings.TrimSpace(c.GetHeader(o.HeaderToken))
	// 兼容 Authorization: Bearer xxx
	if token == "" && o.EnableAuthorizationBearer {
		authz := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}
	return token
}

// Middleware aborts with 401 unless the request carries a valid token of an
// active user; the user is stored under PPCtxUserKey.
func Middleware(auth Authenticator, opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := opts.token(c)
		if token == "" {
			apiresp.Fail(c, errs.ErrUnauthorized.WrapMsg("token missing"))
			return
		}
		u, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			apiresp.Fail(c, err)
			return
		}
		c.Set(PPCtxAuthKey, token)
		c.Set(PPCtxUserKey, u)
		c.Next()
	}
}

// RequireRoles passes when the authenticated user holds any of roles; an
// empty list only requires authentication.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			apiresp.Fail(c, errs.ErrUnauthorized.WrapMsg("user not in context"))
			return
		}
		if len(roles) > 0 && !u.HasAnyRole(roles...) {
			apiresp.Fail(c, errs.ErrForbidden.WrapMsg("user "+u.FullName+" needs a valid role", "roles", strings.Join(roles, "|")))
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (model.User, bool) {
	v, ok := c.Get(PPCtxUserKey)
	if !ok {
		return model.User{}, false
	}
	u, ok := v.(model.User)
	return u, ok
}
