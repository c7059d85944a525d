package auctionwatcher

import (
	"context"
	"time"

	"auctiongate/internal/authz"
	"auctiongate/internal/lifecycle"
	"auctiongate/internal/redis/auctiontimer"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Expirer interface {
	Expire(ctx context.Context, actor authz.Actor, id string) (lifecycle.Auction, error)
}

// Run listens to key-expiry events and finalises auctions through the same
// guarded service call staff use. Start it once at service boot.
func Run(ctx context.Context, rdb *redis.Client, svc Expirer, enableNotifications bool) {
	if enableNotifications {
		if err := rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
			zap.L().Warn("watcher.config_set", zap.Error(err))
		}
	}
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	defer ps.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			handle(ctx, svc, m.Payload)
		}
	}
}

func handle(ctx context.Context, svc Expirer, key string) bool {
	id, ok := auctiontimer.AuctionID(key)
	if !ok {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := svc.Expire(ctx, authz.System, id); err != nil {
		// the sweep retries anything left live past end_time
		zap.L().Warn("watcher.expire", zap.String("auction_id", id), zap.Error(err))
	}
	return true
}
