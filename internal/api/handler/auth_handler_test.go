package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/core/ports"
	"github.com/storefront/storefront-api/internal/core/service"
	"github.com/storefront/storefront-api/internal/infrastructure/token"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, in ports.RegisterInput) (*domain.User, error)
	loginFn    func(ctx context.Context, email, password string) (string, *domain.User, error)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, email, password)
}

func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthHandler_Register_Success(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(_ context.Context, in ports.RegisterInput) (*domain.User, error) {
			if in.Username != "alice" || in.Email != "a@example.com" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.User{ID: "u1", Username: in.Username, Email: in.Email, Role: domain.RoleCustomer, PasswordHash: "hash"}, nil
		},
	}
	handler := NewAuthHandler(stub)

	c, rec := newJSONContext(http.MethodPost, "/auth/register",
		`{"username":"alice","password":"secret1","email":"a@example.com"}`)

	if err := handler.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	env, data := decodeEnvelope(t, rec)
	if !env.Success {
		t.Fatalf("expected success envelope")
	}
	user, ok := data["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user in response")
	}
	if user["username"] != "alice" || user["role"] != "customer" {
		t.Fatalf("unexpected user payload: %+v", user)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Fatalf("password hash must not be serialised")
	}
}

func TestAuthHandler_Register_Validation(t *testing.T) {
	handler := NewAuthHandler(&stubAuthService{})

	c, _ := newJSONContext(http.MethodPost, "/auth/register", `{"username":"bob","email":"not-an-email","password":"x"}`)

	err := handler.Register(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	msg, _ := he.Message.(string)
	if !strings.Contains(msg, "email must be a valid email") || !strings.Contains(msg, "password must be at least 6") {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestAuthHandler_Register_UserExists(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(context.Context, ports.RegisterInput) (*domain.User, error) {
			return nil, domain.ErrUserExists
		},
	}
	c, _ := newJSONContext(http.MethodPost, "/auth/register", `{"username":"bob","email":"b@example.com","password":"secret1"}`)

	if err := NewAuthHandler(stub).Register(c); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(_ context.Context, email, password string) (string, *domain.User, error) {
			if email != "carol@example.com" || password != "s3cret" {
				t.Fatalf("unexpected credentials")
			}
			return "signed-token", &domain.User{ID: "u3", Username: "carol"}, nil
		},
	}
	c, rec := newJSONContext(http.MethodPost, "/auth/login", `{"email":"carol@example.com","password":"s3cret"}`)

	if err := NewAuthHandler(stub).Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	_, data := decodeEnvelope(t, rec)
	if data["token"] != "signed-token" {
		t.Fatalf("expected token, got %+v", data)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(context.Context, string, string) (string, *domain.User, error) {
			return "", nil, domain.ErrInvalidCredentials
		},
	}
	c, _ := newJSONContext(http.MethodPost, "/auth/login", `{"email":"dave@example.com","password":"bad"}`)

	if err := NewAuthHandler(stub).Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

type memUserRepo struct {
	users map[string]*domain.User
}

func (r *memUserRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	if _, ok := r.users[u.Email]; ok {
		return nil, domain.ErrUserExists
	}
	clone := *u
	clone.ID = "65f1b00000000000000000aa"
	r.users[u.Email] = &clone
	out := clone
	return &out, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	u, ok := r.users[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func TestAuthHandler_Register_IgnoresRequestedRole(t *testing.T) {
	codec := token.NewCodec("register-secret", time.Hour)
	h := NewAuthHandler(service.NewAuthService(&memUserRepo{users: map[string]*domain.User{}}, codec))

	c, rec := newJSONContext(http.MethodPost, "/auth/register",
		`{"username":"mallory","email":"m@example.com","password":"secret1","role":"admin"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, data := decodeEnvelope(t, rec)
	if user, _ := data["user"].(map[string]any); user["role"] != "customer" {
		t.Fatalf("expected customer role, got %+v", data)
	}

	c, rec = newJSONContext(http.MethodPost, "/auth/login", `{"email":"m@example.com","password":"secret1"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("login: %v", err)
	}
	_, data = decodeEnvelope(t, rec)
	tok, _ := data["token"].(string)
	p, err := codec.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.Role != domain.RoleCustomer {
		t.Fatalf("self-registered account must not be admin, got %s", p.Role)
	}
}
