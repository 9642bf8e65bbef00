package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"PShop/module/user/model"
	"PShop/tools/errs"

	"github.com/gin-gonic/gin"
)

type fakeAuth map[string]model.User

func (f fakeAuth) Authenticate(_ context.Context, token string) (model.User, error) {
	u, ok := f[token]
	if !ok {
		return model.User{}, errs.ErrTokenInvalid.WrapMsg("unknown token")
	}
	if !u.IsActive {
		return model.User{}, errs.ErrIdentityInactive.WrapMsg("inactive")
	}
	return u, nil
}

func TestMiddlewareAndRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := fakeAuth{
		"admin": {FullName: "A", IsActive: true, Roles: []string{model.RoleAdmin}},
		"user":  {FullName: "U", IsActive: true, Roles: []string{model.RoleUser}},
		"gone":  {FullName: "G", Roles: []string{model.RoleAdmin}},
	}
	r := gin.New()
	r.GET("/admin", Middleware(auth, nil), RequireRoles(model.RoleAdmin, model.RoleSuperUser), func(c *gin.Context) {
		u, _ := CurrentUser(c)
		c.String(http.StatusOK, u.FullName)
	})

	cases := []struct {
		header, value string
		status        int
	}{
		{"", "", http.StatusUnauthorized},
		{"Authentication", "nope", http.StatusUnauthorized},
		{"Authentication", "gone", http.StatusUnauthorized},
		{"Authorization", "Bearer user", http.StatusForbidden},
		{"Authorization", "bearer admin", http.StatusOK},
		{"Authentication", "admin", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if tc.header != "" {
			req.Header.Set(tc.header, tc.value)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.status {
			t.Errorf("%s=%q: status %d want %d", tc.header, tc.value, w.Code, tc.status)
		}
		if tc.status == http.StatusOK && w.Body.String() != "A" {
			t.Errorf("body = %q", w.Body.String())
		}
	}
}

func TestRequireRolesWithoutUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireRoles(), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}
