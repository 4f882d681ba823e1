package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storefront/storefront-api/internal/core/ports"
)

const (
	defaultReplayTTL = 24 * time.Hour
	claimAttempts    = 2
)

// ReplayGuard remembers which cart line an Idempotency-Key produced.
// Key format: cart:idem:<user_id>:<key>
// Value format: <fingerprint>|<line_id>, with an empty line id while the
// first request is running.
type ReplayGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReplayGuard creates a ReplayGuard wrapping the given Redis client.
func NewReplayGuard(client *redis.Client, ttl time.Duration) *ReplayGuard {
	if ttl <= 0 {
		ttl = defaultReplayTTL
	}
	return &ReplayGuard{client: client, ttl: ttl}
}

// Claim reserves the key with SETNX. When it is already taken the stored
// fingerprint and line id are returned.
func (g *ReplayGuard) Claim(ctx context.Context, userID, key, fingerprint string) (bool, ports.Replay, error) {
	k := g.key(userID, key)

	for i := 0; i < claimAttempts; i++ {
		ok, err := g.client.SetNX(ctx, k, fingerprint+"|", g.ttl).Result()
		if err != nil {
			return false, ports.Replay{}, fmt.Errorf("replay claim: %w", err)
		}
		if ok {
			return true, ports.Replay{}, nil
		}

		v, err := g.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return false, ports.Replay{}, fmt.Errorf("replay lookup: %w", err)
		}
		fp, lineID, _ := strings.Cut(v, "|")
		return false, ports.Replay{Fingerprint: fp, LineID: lineID}, nil
	}

	// The key keeps vanishing under us; report it as our own pending claim so
	// the caller polls and tries again.
	return false, ports.Replay{Fingerprint: fingerprint}, nil
}

// Complete stores the produced line id, keeping the TTL set by Claim.
func (g *ReplayGuard) Complete(ctx context.Context, userID, key, fingerprint, lineID string) error {
	err := g.client.SetArgs(ctx, g.key(userID, key), fingerprint+"|"+lineID, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (g *ReplayGuard) Release(ctx context.Context, userID, key string) error {
	return g.client.Del(ctx, g.key(userID, key)).Err()
}

func (g *ReplayGuard) key(userID, key string) string {
	return fmt.Sprintf("cart:idem:%s:%s", userID, key)
}
