package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imrishuroy/glaze-storefront/internal/storefront/storefronttest"
)

type testServer struct {
	h      *storefronttest.Harness
	router *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	return &testServer{h: h, router: NewRouter(h.Shell, slog.New(slog.NewTextHandler(io.Discard, nil)))}
}

func (s *testServer) do(t *testing.T, method, path, session string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", "", nil)
	expectStatus(t, w, http.StatusOK)
	if decode(t, w)["status"] != "ok" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestSessionHeader_MintedAndEchoed(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/cart", "", nil)
	if w.Header().Get(SessionHeader) == "" {
		t.Fatalf("expected a minted session id")
	}
	w = s.do(t, http.MethodGet, "/cart", "abc", nil)
	if got := w.Header().Get(SessionHeader); got != "abc" {
		t.Fatalf("expected the session echoed, got %q", got)
	}
}

func TestProducts(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/products", "s1", nil)
	expectStatus(t, w, http.StatusOK)
	var list []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list) != 6 {
		t.Fatalf("expected 6 products: %v %s", err, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/products/p1", "s1", nil)
	expectStatus(t, w, http.StatusOK)
	if _, ok := decode(t, w)["reviews"]; !ok {
		t.Fatalf("expected a review summary: %s", w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/products/zzz", "s1", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestCartRoutes(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/cart/items", "s1", map[string]string{"product_id": "p1"})
	w := s.do(t, http.MethodPost, "/cart/items", "s1", map[string]string{"product_id": "p1"})
	expectStatus(t, w, http.StatusOK)
	if decode(t, w)["count"] != float64(2) {
		t.Fatalf("expected count 2: %s", w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/cart/items", "s1", map[string]string{})
	expectStatus(t, w, http.StatusBadRequest)
	if decode(t, w)["error"] != "validation_failed" {
		t.Fatalf("expected validation_failed: %s", w.Body.String())
	}

	w = s.do(t, http.MethodDelete, "/cart/items/p1", "s1", nil)
	expectStatus(t, w, http.StatusOK)
	if decode(t, w)["count"] != float64(0) {
		t.Fatalf("expected empty cart: %s", w.Body.String())
	}
}

func TestReviewValidation(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/products/p1/reviews", "s1", map[string]any{"author": "Wanjiku", "rating": 0, "comment": "meh"})
	expectStatus(t, w, http.StatusBadRequest)
	body := decode(t, w)
	fields, _ := body["fields"].(map[string]any)
	if _, ok := fields["rating"]; !ok {
		t.Fatalf("expected a rating field error: %s", w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/products/p1/reviews", "s1", map[string]any{"author": "Wanjiku", "rating": 5, "comment": "lovely"})
	expectStatus(t, w, http.StatusCreated)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/auth/signup", "s1", map[string]string{"name": "Ada", "email": "ada@glaze.test", "password": "secret1"})
	expectStatus(t, w, http.StatusAccepted)

	w = s.do(t, http.MethodPost, "/auth/signup/verify", "s1", map[string]string{"email": "ada@glaze.test", "code": "12345"})
	expectStatus(t, w, http.StatusBadRequest)

	w = s.do(t, http.MethodPost, "/auth/signup/verify", "s1", map[string]string{"email": "ada@glaze.test", "code": s.h.Mail.LastCode()})
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, http.MethodGet, "/auth/me", "s1", nil)
	user, _ := decode(t, w)["user"].(map[string]any)
	if user["email"] != "ada@glaze.test" {
		t.Fatalf("expected logged in: %s", w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/auth/logout", "s1", nil)
	expectStatus(t, w, http.StatusNoContent)
	w = s.do(t, http.MethodGet, "/auth/me", "s1", nil)
	if decode(t, w)["user"] != nil {
		t.Fatalf("expected logged out: %s", w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/auth/login", "s1", map[string]string{"email": "ada@glaze.test", "password": "wrong-pw"})
	expectStatus(t, w, http.StatusUnauthorized)
	if decode(t, w)["error"] != "invalid_credentials" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestCheckoutOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.h.Login(t, "s1", "Ada", "ada@glaze.test")

	w := s.do(t, http.MethodPost, "/checkout", "s1", nil)
	expectStatus(t, w, http.StatusBadRequest) // empty cart

	s.do(t, http.MethodPost, "/cart/items", "s1", map[string]string{"product_id": "p4"})
	w = s.do(t, http.MethodPost, "/checkout", "s1", nil)
	expectStatus(t, w, http.StatusCreated)
	if decode(t, w)["step"] != "SHIPPING" {
		t.Fatalf("unexpected checkout %s", w.Body.String())
	}

	w = s.do(t, http.MethodPut, "/checkout/shipping", "s1", map[string]string{
		"name": "Ada", "email": "ada@glaze.test", "phone": "0712345678", "address": "12 Moi Avenue", "city": "Nairobi",
	})
	expectStatus(t, w, http.StatusOK)
	w = s.do(t, http.MethodPut, "/checkout/method", "s1", map[string]string{"method": "paypal"})
	expectStatus(t, w, http.StatusOK)
	w = s.do(t, http.MethodPost, "/checkout/paypal", "s1", nil)
	expectStatus(t, w, http.StatusOK)
	if decode(t, w)["redirect_url"] == nil {
		t.Fatalf("expected a redirect url: %s", w.Body.String())
	}

	w = s.do(t, http.MethodDelete, "/checkout", "s1", nil)
	expectStatus(t, w, http.StatusLocked)

	s.h.Clock.Advance(5 * time.Second)
	w = s.do(t, http.MethodGet, "/orders", "s1", nil)
	expectStatus(t, w, http.StatusOK)
	var list []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("expected one order: %v %s", err, w.Body.String())
	}
}

func TestAdminGate(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/admin/orders", "guest", nil)
	expectStatus(t, w, http.StatusUnauthorized)

	s.h.Login(t, "s1", "Ada", "ada@glaze.test")
	w = s.do(t, http.MethodGet, "/admin/orders", "s1", nil)
	expectStatus(t, w, http.StatusForbidden)
	if decode(t, w)["error"] != "admin_only" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	s.do(t, http.MethodPost, "/auth/demo", "boss", nil)
	w = s.do(t, http.MethodPost, "/admin/products", "boss", map[string]any{"name": "Berry Bliss", "price": "21.50", "hex": "#AA3355"})
	expectStatus(t, w, http.StatusCreated)
	id, _ := decode(t, w)["id"].(string)
	if id == "" || w.Header().Get("Location") != "/products/"+id {
		t.Fatalf("expected a new id and Location: %s", w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/admin/products", "boss", map[string]any{"name": "Free", "price": 0})
	expectStatus(t, w, http.StatusBadRequest)

	w = s.do(t, http.MethodDelete, "/admin/products/"+id, "boss", nil)
	expectStatus(t, w, http.StatusNoContent)

	w = s.do(t, http.MethodGet, "/admin/settings", "boss", nil)
	expectStatus(t, w, http.StatusOK)
	if decode(t, w)["gemini_api_key"] != "****1234" {
		t.Fatalf("expected a masked key: %s", w.Body.String())
	}
}

func TestConsultantNotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := storefronttest.New(t)
	s := &testServer{h: h, router: NewRouter(h.Shell, slog.New(slog.NewTextHandler(io.Discard, nil)))}
	w := s.do(t, http.MethodPost, "/consultant/recommend", "s1", map[string]string{"text": "bold"})
	expectStatus(t, w, http.StatusServiceUnavailable)
	if decode(t, w)["error"] != "consultant_not_configured" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}
