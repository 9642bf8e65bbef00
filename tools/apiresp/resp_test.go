package apiresp

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"PShop/tools/errs"

	"github.com/gin-gonic/gin"
)

func serve(h HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", Wrap(h))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w
}

func TestWrapRendersCodeError(t *testing.T) {
	w := serve(func(*gin.Context) error { return errs.ErrDuplicateKey.WrapMsg("title taken") })
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d", w.Code)
	}
	var body ErrBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Code != errs.DuplicateKey || body.Detail != "title taken" {
		t.Fatalf("body = %+v", body)
	}
}

func TestWrapHidesInternalDetail(t *testing.T) {
	w := serve(func(*gin.Context) error { return errors.New("dial tcp 10.0.0.1:5432: refused") })
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body ErrBody
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Detail != "" || body.Message != "internal server error" {
		t.Fatalf("body leaked: %+v", body)
	}
}

func TestWrapOK(t *testing.T) {
	w := serve(func(c *gin.Context) error { return OK(c, gin.H{"ok": true}) })
	if w.Code != http.StatusOK || w.Body.String() != `{"ok":true}` {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}
