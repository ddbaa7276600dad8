package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const testSecret = "test-secret-key-for-unit-tests-only-32b"

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	i, err := NewIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return i
}

func runMiddleware(t *testing.T, issuer *Issuer, header string) (int64, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen int64
	h := Middleware(issuer)(func(c echo.Context) error {
		seen = UserIDFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})
	return seen, h(c)
}

func TestNewIssuer_ShortSecret(t *testing.T) {
	if _, err := NewIssuer("short", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestIssueAndParse(t *testing.T) {
	i := newTestIssuer(t)

	tok, err := i.Issue(42, "house")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := i.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "42" || claims.Username != "house" {
		t.Errorf("claims = %+v", claims)
	}
	if id, _ := claims.UserID(); id != 42 {
		t.Errorf("UserID = %d, want 42", id)
	}
}

func TestParse_Rejects(t *testing.T) {
	i := newTestIssuer(t)
	good, err := i.Issue(1, "house")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other, err := NewIssuer("another-secret-key-that-is-long-enough!", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	foreign, _ := other.Issue(1, "house")

	expiredIssuer := newTestIssuer(t)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredIssuer.Issue(1, "house")

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", Issuer: defaultIssuer},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"tampered", good + "x"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"alg none", none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := i.Parse(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestMiddleware_Unauthorized(t *testing.T) {
	i := newTestIssuer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"bad token", "Bearer abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runMiddleware(t, i, tt.header)
			var httpErr *echo.HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected echo.HTTPError, got %T", err)
			}
			if httpErr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", httpErr.Code)
			}
		})
	}
}

func TestMiddleware_ValidToken(t *testing.T) {
	i := newTestIssuer(t)
	tok, err := i.Issue(7, "cuddy")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	id, err := runMiddleware(t, i, "bearer "+tok)
	if err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if id != 7 {
		t.Errorf("user id = %d, want 7", id)
	}
}
