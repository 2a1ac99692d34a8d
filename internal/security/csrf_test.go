package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func csrfHandler(status int) http.Handler {
	csrf := CSRF{}
	return csrf.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
}

func TestCSRFBlocksMissingToken(t *testing.T) {
	rr := httptest.NewRecorder()
	csrfHandler(http.StatusOK).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/protected", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestCSRFBlocksMismatchedToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("X-CSRF-Token", "aaaa")
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "bbbb"})
	rr := httptest.NewRecorder()
	csrfHandler(http.StatusOK).ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for mismatch, got %d", rr.Code)
	}
}

func TestCSRFAllowsMatchingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("X-CSRF-Token", "secure-token")
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "secure-token"})
	rr := httptest.NewRecorder()
	csrfHandler(http.StatusOK).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestCSRFSkipsReadsAndBearer(t *testing.T) {
	rr := httptest.NewRecorder()
	csrfHandler(http.StatusOK).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected GET to bypass csrf, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	rr = httptest.NewRecorder()
	csrfHandler(http.StatusAccepted).ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected bearer request to bypass csrf, got %d", rr.Code)
	}
}
