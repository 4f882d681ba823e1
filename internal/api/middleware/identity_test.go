package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/infrastructure/token"
)

func runIdentity(t *testing.T, codec *token.Codec, header string) (domain.Principal, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got domain.Principal
	called := false
	handler := Identity(codec, zerolog.Nop())(func(c echo.Context) error {
		called = true
		got = PrincipalFrom(c)
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	return got, got.Authenticated()
}

func TestIdentity_ValidToken(t *testing.T) {
	codec := token.NewCodec("secret", time.Hour)
	signed, err := codec.Sign(domain.Principal{ID: "u1", Role: domain.RoleAdmin}, "alice")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	p, ok := runIdentity(t, codec, "Bearer "+signed)
	if !ok {
		t.Fatalf("expected principal")
	}
	if p.ID != "u1" || p.Role != domain.RoleAdmin {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestIdentity_NoIdentityCases(t *testing.T) {
	codec := token.NewCodec("secret", time.Hour)
	signed, _ := codec.Sign(domain.Principal{ID: "u1", Role: domain.RoleCustomer}, "")
	other, _ := token.NewCodec("other", time.Hour).Sign(domain.Principal{ID: "u1", Role: domain.RoleCustomer}, "")

	cases := map[string]string{
		"missing header":    "",
		"lowercase scheme":  "bearer " + signed,
		"other scheme":      "Token " + signed,
		"no token":          "Bearer",
		"extra part":        "Bearer " + signed + " extra",
		"double space":      "Bearer  " + signed,
		"garbage token":     "Bearer not-a-token",
		"foreign signature": "Bearer " + other,
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			if p, ok := runIdentity(t, codec, header); ok {
				t.Fatalf("expected no identity, got %+v", p)
			}
		})
	}
}

func TestPrincipalFrom_Anonymous(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	if PrincipalFrom(c).Authenticated() {
		t.Fatal("expected anonymous principal")
	}
}
