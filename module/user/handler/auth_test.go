package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"PShop/middleware"
	"PShop/module/user/service"
	"PShop/module/user/store"
	"PShop/tools/apiresp"
	jwtlib "PShop/tools/security"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewService(store.NewMemStore(), jwtlib.DefaultOptions([]byte("k"))).WithBcryptCost(bcrypt.MinCost)
	r := gin.New()
	NewAuthHandler(svc).Mount(middleware.NewRouter(r.Group("/api"), svc))
	return r
}

func do(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthFlow(t *testing.T) {
	r := newRouter()

	w := do(r, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "flow@google.com", "password": "Abc123", "fullName": "Flow",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body)
	}
	var reg service.AuthResult
	if err := json.Unmarshal(w.Body.Bytes(), &reg); err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("password")) {
		t.Fatalf("hash leaked: %s", w.Body)
	}

	w = do(r, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "flow@google.com", "password": "Abc123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body)
	}

	w = do(r, http.MethodGet, "/api/auth/check-status", reg.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("check-status: %d %s", w.Code, w.Body)
	}
	var st service.AuthResult
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.User.ID != reg.User.ID || st.Token == "" {
		t.Fatalf("check-status = %+v", st)
	}
}

func TestAuthErrors(t *testing.T) {
	r := newRouter()

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
	}{
		{"bad body", http.MethodPost, "/api/auth/register", "", map[string]string{"email": "nope"}, http.StatusBadRequest},
		{"weak password", http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@b.com", "password": "abcdef", "fullName": "A"}, http.StatusBadRequest},
		{"unknown login", http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@b.com", "password": "Abc123"}, http.StatusUnauthorized},
		{"no token", http.MethodGet, "/api/auth/check-status", "", nil, http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/api/auth/check-status", "xyz", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, tc.method, tc.path, tc.token, tc.body)
			if w.Code != tc.status {
				t.Fatalf("status = %d want %d: %s", w.Code, tc.status, w.Body)
			}
			var body apiresp.ErrBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.StatusCode != tc.status {
				t.Fatalf("body = %s", w.Body)
			}
		})
	}
}
