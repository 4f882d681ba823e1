package ports

import (
	"context"

	"github.com/storefront/storefront-api/internal/core/domain"
)

// RegisterInput carries a self-service sign-up. Accounts created this way
// always get the customer role.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
}

// TokenSigner issues bearer credentials for a principal.
type TokenSigner interface {
	Sign(p domain.Principal, username string) (string, error)
}

// TokenVerifier checks a bearer credential's signature and expiry and decodes
// the principal it carries.
type TokenVerifier interface {
	Verify(token string) (domain.Principal, error)
}
