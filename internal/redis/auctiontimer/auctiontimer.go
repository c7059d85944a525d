package auctiontimer

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix marks the TTL keys whose expiry finalises a live auction.
const KeyPrefix = "auc_t:"

// minTTL keeps overdue auctions on the expiry path instead of dropping them.
const minTTL = time.Second

type Timer struct {
	rdc *redis.Client
}

func New(rdc *redis.Client) *Timer {
	return &Timer{rdc: rdc}
}

// Arm (re)sets the expiry key so that it vanishes at endsAt.
func (t *Timer) Arm(ctx context.Context, auctionID string, ttl time.Duration) error {
	if ttl < minTTL {
		ttl = minTTL
	}
	return t.rdc.Set(ctx, KeyPrefix+auctionID, auctionID, ttl).Err()
}

func (t *Timer) Disarm(ctx context.Context, auctionID string) error {
	return t.rdc.Del(ctx, KeyPrefix+auctionID).Err()
}

// AuctionID extracts the id from an expired key name.
func AuctionID(key string) (string, bool) {
	if !strings.HasPrefix(key, KeyPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(key, KeyPrefix)
	return id, id != ""
}
