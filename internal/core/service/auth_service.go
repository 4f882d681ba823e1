package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/core/ports"
)

// AuthService implements registration and login.
type AuthService struct {
	repo   ports.AuthRepository
	signer ports.TokenSigner
}

func NewAuthService(repo ports.AuthRepository, signer ports.TokenSigner) *AuthService {
	return &AuthService{repo: repo, signer: signer}
}

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	return s.create(ctx, in, domain.RoleCustomer)
}

// EnsureAdmin creates the administrator account described by in unless an
// account with that email already exists. An existing account that is not an
// administrator is an error: it must not be silently promoted or ignored.
func (s *AuthService) EnsureAdmin(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != domain.RoleAdmin {
			return nil, fmt.Errorf("ensure admin %s: account exists with role %s", email, existing.Role)
		}
		return existing, nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("ensure admin %s: %w", email, err)
	}

	return s.create(ctx, in, domain.RoleAdmin)
}

func (s *AuthService) create(ctx context.Context, in ports.RegisterInput, role domain.Role) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || email == "" || in.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		Username:     in.Username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Login checks the password and returns a bearer token carrying the user's id
// and role.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.signer.Sign(domain.Principal{ID: user.ID, Role: user.Role}, user.Username)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}
