package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGatewayAuth_ValidToken(t *testing.T) {
	m := NewGatewayAuth("test-secret")

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
	})

	r := httptest.NewRequest(http.MethodPost, "/api/gateway/event", nil)
	r.Header.Set("X-Gateway-Token", m.Token())

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestGatewayAuth_MissingToken(t *testing.T) {
	m := NewGatewayAuth("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/gateway/event", nil)

	m.Middleware(next).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestGatewayAuth_WrongSecret(t *testing.T) {
	issuer := NewGatewayAuth("other-secret")
	m := NewGatewayAuth("test-secret")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/gateway/event", nil)
	r.Header.Set("X-Gateway-Token", issuer.Token())

	m.Middleware(next).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestGatewayAuth_ExpiredToken(t *testing.T) {
	m := NewGatewayAuth("test-secret")

	issued := time.Now().Add(-10 * time.Minute)
	m.now = func() time.Time { return issued }
	token := m.Token()
	m.now = time.Now

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next handler should not be called")
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/gateway/event", nil)
	r.Header.Set("X-Gateway-Token", token)

	m.Middleware(next).ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestGatewayAuth_MalformedToken(t *testing.T) {
	m := NewGatewayAuth("test-secret")

	for _, token := range []string{"garbage", "1.2.3", "abc.def"} {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/gateway/event", nil)
		r.Header.Set("X-Gateway-Token", token)

		m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatalf("next handler should not be called for %q", token)
		})).ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %d, want %d", token, w.Code, http.StatusUnauthorized)
		}
	}
}
