package errs

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestCodeErrorIsThroughWrap(t *testing.T) {
	err := ErrRecordNotFound.WrapMsg("product", "term", "abc")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("errors.Is lost the code through wrapping: %v", err)
	}
	if errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("unexpected match against another code")
	}
	if !strings.Contains(err.Error(), "term=abc") {
		t.Fatalf("detail missing from %q", err.Error())
	}
}

func TestCodeRelationChildren(t *testing.T) {
	if !ErrUnauthorized.Is(ErrTokenExpired.Wrap()) {
		t.Fatalf("token expired should be an unauthorized error")
	}
	if !ErrRecordNotFound.Is(ErrConnNotFound.Wrap()) {
		t.Fatalf("conn not found should be a not-found error")
	}
	if ErrTokenExpired.Is(ErrUnauthorized.Wrap()) {
		t.Fatalf("relation must not be symmetric")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrArgs.WrapMsg("bad"), http.StatusBadRequest},
		{ErrTokenInvalid.Wrap(), http.StatusUnauthorized},
		{ErrIdentityInactive.Wrap(), http.StatusUnauthorized},
		{ErrForbidden.Wrap(), http.StatusForbidden},
		{ErrDuplicateKey.Wrap(), http.StatusConflict},
		{WrapMsg(errors.New("boom"), "db"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestErrPanic(t *testing.T) {
	if ErrPanic(nil) != nil {
		t.Fatalf("nil recover value must give nil error")
	}
	err := ErrPanic("kaboom")
	ce, ok := AsCode(err)
	if !ok || ce.Code != ServerInternalError || ce.Detail != "kaboom" {
		t.Fatalf("unexpected panic error: %#v", ce)
	}
}
