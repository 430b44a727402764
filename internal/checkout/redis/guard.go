package redis

import (
	"context"
	"fmt"
	"ms-checkout/internal/logger"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultApprovalTTL = 7 * 24 * time.Hour

// Guard remembers which checkouts already ran their approval side effects.
type Guard struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewGuard(client *redis.Client, ttl time.Duration, log *logger.Logger) *Guard {
	if ttl <= 0 {
		ttl = defaultApprovalTTL
	}
	return &Guard{Client: client, TTL: ttl, Logger: log}
}

func approvalKey(checkoutID string) string {
	return "checkout_approved:" + checkoutID
}

// MarkApproved returns true only for the first caller per checkout within the TTL.
func (g *Guard) MarkApproved(ctx context.Context, checkoutID, paymentID string) (bool, error) {
	value := paymentID
	if value == "" {
		value = "manual"
	}
	ok, err := g.Client.SetNX(ctx, approvalKey(checkoutID), value, g.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", approvalKey(checkoutID), err)
	}
	if !ok && g.Logger != nil {
		g.Logger.Debug("REDIS", fmt.Sprintf("Approval for checkout %s already recorded", checkoutID))
	}
	return ok, nil
}

// Clear drops the marker so a deleted checkout ID can be reused.
func (g *Guard) Clear(ctx context.Context, checkoutID string) error {
	return g.Client.Del(ctx, approvalKey(checkoutID)).Err()
}
