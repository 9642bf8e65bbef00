package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"PShop/middleware"
	"PShop/module/product/model"
	"PShop/module/product/service"
	"PShop/module/product/store"
	usermodel "PShop/module/user/model"
	"PShop/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type tokens map[string]usermodel.User

func (t tokens) Authenticate(_ context.Context, token string) (usermodel.User, error) {
	if u, ok := t[token]; ok {
		return u, nil
	}
	return usermodel.User{}, errs.ErrTokenInvalid.WrapMsg("unknown")
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := tokens{
		"admin": {ID: uuid.New(), IsActive: true, Roles: []string{usermodel.RoleAdmin}},
		"user":  {ID: uuid.New(), IsActive: true, Roles: []string{usermodel.RoleUser}},
	}
	r := gin.New()
	NewProductHandler(service.NewService(store.NewMemStore())).Mount(middleware.NewRouter(r.Group("/api"), auth))
	return r
}

func call(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authentication", token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProductRoutes(t *testing.T) {
	r := newRouter()
	body := map[string]any{"title": "Desk Lamp", "price": 20, "sizes": []string{"one"}, "gender": "unisex"}

	if w := call(r, http.MethodPost, "/api/products", "", body); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: %d", w.Code)
	}
	if w := call(r, http.MethodPost, "/api/products", "user", body); w.Code != http.StatusForbidden {
		t.Fatalf("user create: %d", w.Code)
	}
	w := call(r, http.MethodPost, "/api/products", "admin", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("admin create: %d %s", w.Code, w.Body)
	}
	var p model.Product
	_ = json.Unmarshal(w.Body.Bytes(), &p)

	if w := call(r, http.MethodPost, "/api/products", "admin", body); w.Code != http.StatusConflict {
		t.Fatalf("duplicate: %d", w.Code)
	}

	w = call(r, http.MethodGet, "/api/products?limit=5", "", nil)
	var list []model.Product
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("list: %d %s", w.Code, w.Body)
	}
	if w := call(r, http.MethodGet, "/api/products?limit=abc", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", w.Code)
	}

	if w := call(r, http.MethodGet, "/api/products/desk_lamp", "", nil); w.Code != http.StatusOK {
		t.Fatalf("by slug: %d", w.Code)
	}
	if w := call(r, http.MethodGet, "/api/products/"+uuid.NewString(), "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing: %d", w.Code)
	}

	w = call(r, http.MethodPatch, "/api/products/"+p.ID.String(), "admin", map[string]any{"stock": 3})
	if w.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", w.Code, w.Body)
	}
	if w := call(r, http.MethodPatch, "/api/products/not-a-uuid", "admin", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Fatalf("patch bad id: %d", w.Code)
	}

	if w := call(r, http.MethodDelete, "/api/products/"+p.ID.String(), "admin", nil); w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	if w := call(r, http.MethodDelete, "/api/products/"+p.ID.String(), "admin", nil); w.Code != http.StatusNotFound {
		t.Fatalf("delete again: %d", w.Code)
	}
}
