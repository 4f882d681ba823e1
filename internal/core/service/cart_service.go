package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/storefront/storefront-api/internal/api/metrics"
	"github.com/storefront/storefront-api/internal/core/domain"
	"github.com/storefront/storefront-api/internal/core/ports"
)

const (
	// maxAddAttempts bounds the retries after a lost unique-index race.
	maxAddAttempts = 3

	replayPollInterval = 25 * time.Millisecond
	replayPollAttempts = 20
)

var (
	errQuantityRange = domain.InvalidField("quantity", fmt.Sprintf("must be between 1 and %d", domain.MaxLineQuantity))
	errQuantityLimit = domain.InvalidField("quantity", fmt.Sprintf("would take the cart line past %d", domain.MaxLineQuantity))
)

// CartService implements ports.CartService on top of a cart store that owns
// the (user, product) uniqueness invariant. It holds no state between calls.
type CartService struct {
	repo     ports.CartRepository
	catalog  ports.ProductCatalog
	guard    ports.ReplayGuard
	validate *validator.Validate
	log      zerolog.Logger
}

// NewCartService wires a CartService. guard may be nil, in which case
// idempotency keys are ignored.
func NewCartService(repo ports.CartRepository, catalog ports.ProductCatalog, guard ports.ReplayGuard, log zerolog.Logger) *CartService {
	return &CartService{
		repo:     repo,
		catalog:  catalog,
		guard:    guard,
		validate: validator.New(),
		log:      log,
	}
}

// AddToCart adds quantity of a product to the principal's cart. Repeated adds
// of the same product accumulate on a single line.
func (s *CartService) AddToCart(ctx context.Context, p domain.Principal, in ports.AddToCartInput) (*domain.CartLine, error) {
	if !p.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if err := s.checkID("productId", in.ProductID); err != nil {
		return nil, err
	}
	if !domain.ValidQuantity(in.Quantity) {
		return nil, errQuantityRange
	}

	product, err := s.catalog.FindByID(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("add to cart: %w", err)
	}

	fingerprint := replayFingerprint(in.ProductID, in.Quantity)
	claimed := false
	if in.IdempotencyKey != "" && s.guard != nil {
		line, ok, err := s.claimReplay(ctx, p, in.IdempotencyKey, fingerprint)
		if err != nil {
			return nil, fmt.Errorf("add to cart: %w", err)
		}
		if line != nil {
			metrics.CartAddOutcomeTotal.WithLabelValues("replayed").Inc()
			return line, nil
		}
		claimed = ok
	}

	line, created, err := s.addOrIncrement(ctx, p.ID, in.ProductID, in.Quantity)
	if err != nil {
		if claimed {
			s.releaseReplay(ctx, p, in.IdempotencyKey)
		}
		if errors.Is(err, domain.ErrQuantityLimit) {
			return nil, errQuantityLimit
		}
		return nil, fmt.Errorf("add to cart: %w", err)
	}
	if claimed {
		s.completeReplay(ctx, p, in.IdempotencyKey, fingerprint, line.ID)
	}
	line.Product = product

	outcome := "merged"
	if created {
		outcome = "created"
	}
	metrics.CartAddOutcomeTotal.WithLabelValues(outcome).Inc()

	s.log.Info().
		Str("user_id", p.ID).
		Str("product_id", in.ProductID).
		Str("line_id", line.ID).
		Int("quantity", line.Quantity).
		Str("outcome", outcome).
		Msg("cart line added")

	return line, nil
}

// addOrIncrement retries the store's atomic upsert when it loses the race for
// the first insert of a (user, product) pair.
func (s *CartService) addOrIncrement(ctx context.Context, userID, productID string, quantity int) (*domain.CartLine, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAddAttempts; attempt++ {
		line, created, err := s.repo.AddOrIncrement(ctx, userID, productID, quantity)
		if err == nil {
			return line, created, nil
		}
		if !errors.Is(err, domain.ErrCartConflict) {
			return nil, false, err
		}
		lastErr = err
		metrics.CartConflictRetriesTotal.Inc()
		s.log.Debug().
			Str("user_id", userID).
			Str("product_id", productID).
			Int("attempt", attempt).
			Msg("cart upsert conflict, retrying")

		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
	}
	// Exhausted retries are an internal failure, not a conflict.
	return nil, false, fmt.Errorf("upsert retries exhausted: %s", lastErr)
}

// UpdateQuantity replaces the quantity of one of the principal's lines.
func (s *CartService) UpdateQuantity(ctx context.Context, p domain.Principal, lineID string, quantity int) (*domain.CartLine, error) {
	if !p.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if err := s.checkID("id", lineID); err != nil {
		return nil, err
	}
	if !domain.ValidQuantity(quantity) {
		return nil, errQuantityRange
	}

	line, err := s.repo.SetQuantity(ctx, p.ID, lineID, quantity)
	if err != nil {
		return nil, fmt.Errorf("update cart line: %w", err)
	}
	s.attachProduct(ctx, line)

	s.log.Info().Str("user_id", p.ID).Str("line_id", lineID).Int("quantity", quantity).Msg("cart line updated")
	return line, nil
}

// RemoveLine deletes one of the principal's lines. Removing a line that does
// not exist, or is not owned by the principal, yields ErrCartLineNotFound.
func (s *CartService) RemoveLine(ctx context.Context, p domain.Principal, lineID string) error {
	if !p.Authenticated() {
		return domain.ErrUnauthorized
	}
	if err := s.checkID("id", lineID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, p.ID, lineID); err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}

	s.log.Info().Str("user_id", p.ID).Str("line_id", lineID).Msg("cart line removed")
	return nil
}

// ClearCart removes every line of the principal. An empty cart is cleared
// successfully.
func (s *CartService) ClearCart(ctx context.Context, p domain.Principal) error {
	if !p.Authenticated() {
		return domain.ErrUnauthorized
	}

	n, err := s.repo.DeleteAllByUser(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	s.log.Info().Str("user_id", p.ID).Int64("removed", n).Msg("cart cleared")
	return nil
}

func (s *CartService) ListCart(ctx context.Context, p domain.Principal) ([]domain.CartLine, error) {
	if !p.Authenticated() {
		return nil, domain.ErrUnauthorized
	}

	lines, err := s.repo.ListByUser(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return lines, nil
}

func (s *CartService) GetLine(ctx context.Context, p domain.Principal, lineID string) (*domain.CartLine, error) {
	if !p.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if err := s.checkID("id", lineID); err != nil {
		return nil, err
	}

	line, err := s.repo.FindLine(ctx, p.ID, lineID)
	if err != nil {
		return nil, fmt.Errorf("get cart line: %w", err)
	}
	return line, nil
}

// attachProduct joins the line with its catalog entry. A product that no
// longer resolves leaves Product nil.
func (s *CartService) attachProduct(ctx context.Context, line *domain.CartLine) {
	product, err := s.catalog.FindByID(ctx, line.ProductID)
	if err != nil {
		if !errors.Is(err, domain.ErrProductNotFound) {
			s.log.Warn().Err(err).Str("product_id", line.ProductID).Msg("catalog lookup failed")
		}
		return
	}
	line.Product = product
}

// replayFingerprint identifies an add request for idempotency key reuse checks.
func replayFingerprint(productID string, quantity int) string {
	return productID + ":" + strconv.Itoa(quantity)
}

// checkID rejects identifiers that are not 24-character hex object ids.
func (s *CartService) checkID(field, id string) error {
	if err := s.validate.Var(id, "required,mongodb"); err != nil {
		return domain.InvalidField(field, "is not valid")
	}
	return nil
}

// claimReplay reserves an idempotency key. When the key was already used it
// returns the line recorded for it, waiting briefly for an in-flight first
// request to finish. claimed reports whether this call owns the key. Guard
// failures are logged and the add proceeds unguarded.
func (s *CartService) claimReplay(ctx context.Context, p domain.Principal, key, fingerprint string) (*domain.CartLine, bool, error) {
	for i := 0; i < replayPollAttempts; i++ {
		ok, prior, err := s.guard.Claim(ctx, p.ID, key, fingerprint)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", p.ID).Msg("replay guard unavailable, processing anyway")
			return nil, false, nil
		}
		if ok {
			return nil, true, nil
		}
		if prior.Fingerprint != fingerprint {
			return nil, false, domain.InvalidField("Idempotency-Key", "was already used for a different request")
		}
		if prior.LineID != "" {
			line, err := s.repo.FindLine(ctx, p.ID, prior.LineID)
			if errors.Is(err, domain.ErrCartLineNotFound) {
				// The recorded line was removed since; treat as a new add.
				return nil, false, nil
			}
			if err != nil {
				return nil, false, err
			}
			return line, false, nil
		}

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(replayPollInterval):
		}
	}
	return nil, false, domain.ErrRequestInFlight
}

func (s *CartService) completeReplay(ctx context.Context, p domain.Principal, key, fingerprint, lineID string) {
	if err := s.guard.Complete(ctx, p.ID, key, fingerprint, lineID); err != nil {
		s.log.Warn().Err(err).Str("user_id", p.ID).Msg("failed to record idempotency key")
	}
}

func (s *CartService) releaseReplay(ctx context.Context, p domain.Principal, key string) {
	if err := s.guard.Release(ctx, p.ID, key); err != nil {
		s.log.Warn().Err(err).Str("user_id", p.ID).Msg("failed to release idempotency key")
	}
}
