package scheduler

import (
	"context"
	"time"

	"auctiongate/internal/authz"
	"auctiongate/internal/clock"
	"auctiongate/internal/lifecycle"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const lockKey = "aucs:sweep_lock"

// releaseScript deletes the lock only while it still holds our owner token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`

// Source lists auctions whose scheduled time has passed.
type Source interface {
	DueForActivation(ctx context.Context, now time.Time, limit int) ([]string, error)
	DueForExpiry(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// Lifecycle is the guarded entry point the sweep drives, the same one staff use.
type Lifecycle interface {
	Activate(ctx context.Context, actor authz.Actor, id string) (lifecycle.Auction, error)
	Expire(ctx context.Context, actor authz.Actor, id string) (lifecycle.Auction, error)
}

type Result struct {
	Skipped   bool
	Activated int
	Expired   int
	Failed    int
}

// Sweeper activates due scheduled auctions and finalises overdue live ones.
// It backs up the Redis expiry timer, whose notifications are fire-and-forget.
type Sweeper struct {
	src     Source
	svc     Lifecycle
	rdc     *redis.Client
	clock   clock.Clock
	batch   int
	owner   string
	lockTTL time.Duration
}

func NewSweeper(src Source, svc Lifecycle, rdc *redis.Client, clk clock.Clock, batch int) *Sweeper {
	return &Sweeper{
		src:     src,
		svc:     svc,
		rdc:     rdc,
		clock:   clk,
		batch:   batch,
		owner:   uuid.NewString(),
		lockTTL: time.Minute,
	}
}

// SweepOnce runs one pass unless another instance holds the sweep lock.
func (s *Sweeper) SweepOnce(ctx context.Context) (Result, error) {
	ok, err := s.rdc.SetNX(ctx, lockKey, s.owner, s.lockTTL).Result()
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Skipped: true}, nil
	}
	defer s.release(ctx)

	var res Result
	now := s.clock.Now()

	ids, err := s.src.DueForActivation(ctx, now, s.batch)
	if err != nil {
		return res, err
	}
	for _, id := range ids {
		if _, err := s.svc.Activate(ctx, authz.System, id); err != nil {
			res.Failed++
			logSweepError("sweep.activate", id, err)
			continue
		}
		res.Activated++
	}

	ids, err = s.src.DueForExpiry(ctx, now, s.batch)
	if err != nil {
		return res, err
	}
	for _, id := range ids {
		if _, err := s.svc.Expire(ctx, authz.System, id); err != nil {
			res.Failed++
			logSweepError("sweep.expire", id, err)
			continue
		}
		res.Expired++
	}
	return res, nil
}

// release drops the sweep lock if this instance still owns it. A pass that
// outlived lockTTL leaves the newer holder's lock alone.
func (s *Sweeper) release(ctx context.Context) {
	n, err := s.rdc.Eval(ctx, releaseScript, []string{lockKey}, s.owner).Int64()
	if err != nil {
		zap.L().Warn("sweep.unlock", zap.Error(err))
		return
	}
	if n == 0 {
		zap.L().Warn("sweep.lock_lost", zap.String("owner", s.owner), zap.Duration("ttl", s.lockTTL))
	}
}

func logSweepError(event, id string, err error) {
	// a staff action got there first
	if lifecycle.IsInvalidTransition(err) || lifecycle.IsConflict(err) {
		zap.L().Debug(event, zap.String("auction_id", id), zap.Error(err))
		return
	}
	zap.L().Warn(event, zap.String("auction_id", id), zap.Error(err))
}

// Start schedules SweepOnce on spec and stops the cron when ctx ends.
func Start(ctx context.Context, spec string, s *Sweeper) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		res, err := s.SweepOnce(ctx)
		if err != nil {
			zap.L().Error("sweep_failed", zap.Error(err))
			return
		}
		if res.Activated+res.Expired+res.Failed > 0 {
			zap.L().Info("sweep_done",
				zap.Int("activated", res.Activated),
				zap.Int("expired", res.Expired),
				zap.Int("failed", res.Failed))
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return c, nil
}
