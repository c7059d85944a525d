package auction

import (
	"context"
	"errors"
	"strings"
	"time"

	"auctiongate/internal/authz"
	"auctiongate/internal/clock"
	"auctiongate/internal/database/auctionstore"
	"auctiongate/internal/events"
	"auctiongate/internal/lifecycle"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Store interface {
	Get(ctx context.Context, id string) (lifecycle.Auction, error)
	Create(ctx context.Context, a lifecycle.Auction, tr lifecycle.Transition) error
	Update(ctx context.Context, a lifecycle.Auction, expectedVersion int64, tr lifecycle.Transition) error
	List(ctx context.Context, f auctionstore.Filter) ([]lifecycle.Auction, error)
	CountByStatus(ctx context.Context) (map[lifecycle.Status]int, error)
	Transitions(ctx context.Context, auctionID string) ([]lifecycle.Transition, error)
}

// Timer owns the expiry key of a live auction.
type Timer interface {
	Arm(ctx context.Context, auctionID string, ttl time.Duration) error
	Disarm(ctx context.Context, auctionID string) error
}

// StatsCache holds the per-status counters. Generation changes on every
// Invalidate; Put only stores counts read under the generation it is given.
type StatsCache interface {
	Get(ctx context.Context) (map[lifecycle.Status]int, bool, error)
	Generation(ctx context.Context) (int64, error)
	Put(ctx context.Context, generation int64, counts map[lifecycle.Status]int) error
	Invalidate(ctx context.Context) error
}

// MaxBulkStatus caps the ids accepted by one ForceStatusBulk call.
const MaxBulkStatus = 50

// BulkStatusResult is the outcome of one id in a bulk status change.
type BulkStatusResult struct {
	ID      string
	Auction lifecycle.Auction
	Err     error
}

type SubmitInput struct {
	ItemID       string
	MinimumBid   decimal.Decimal
	MaximumBid   decimal.Decimal
	StartingBid  decimal.Decimal
	ReservePrice decimal.NullDecimal
	AuctionType  lifecycle.AuctionType
	StartTime    time.Time
	EndTime      time.Time
}

type IAuctionService interface {
	Submit(ctx context.Context, actor authz.Actor, in SubmitInput) (lifecycle.Auction, error)
	Approve(ctx context.Context, actor authz.Actor, id string, in lifecycle.ApproveInput) (lifecycle.Auction, error)
	Reject(ctx context.Context, actor authz.Actor, id, reason string) (lifecycle.Auction, error)
	ChangeAuctionType(ctx context.Context, actor authz.Actor, id string, newType lifecycle.AuctionType) (lifecycle.Auction, error)
	ApproveForLiveNow(ctx context.Context, actor authz.Actor, id string) (lifecycle.Auction, error)
	ForceStatus(ctx context.Context, actor authz.Actor, id string, status lifecycle.Status) (lifecycle.Auction, error)
	ForceStatusBulk(ctx context.Context, actor authz.Actor, ids []string, status lifecycle.Status) ([]BulkStatusResult, error)
	ForceLive(ctx context.Context, actor authz.Actor, id string) (lifecycle.Auction, error)
	Activate(ctx context.Context, actor authz.Actor, id string) (lifecycle.Auction, error)
	Expire(ctx context.Context, actor authz.Actor, id string) (lifecycle.Auction, error)
	GetAuction(ctx context.Context, id string) (lifecycle.Auction, error)
	ListAuctions(ctx context.Context, f auctionstore.Filter) ([]lifecycle.Auction, error)
	Transitions(ctx context.Context, id string) ([]lifecycle.Transition, error)
	Stats(ctx context.Context) (map[lifecycle.Status]int, error)
}

type auctionService struct {
	store     Store
	timer     Timer
	stats     StatsCache
	publisher events.Publisher
	clock     clock.Clock
}

var _ IAuctionService = (*auctionService)(nil)

func NewAuctionService(store Store, timer Timer, stats StatsCache, pub events.Publisher, clk clock.Clock) IAuctionService {
	return &auctionService{
		store:     store,
		timer:     timer,
		stats:     stats,
		publisher: pub,
		clock:     clk,
	}
}

// engineFn is one guarded move from the lifecycle package. A nil transition
// with a nil error means the move was already applied.
type engineFn func(a lifecycle.Auction, now time.Time) (lifecycle.Auction, *lifecycle.Transition, error)

func (svc *auctionService) Submit(ctx context.Context, actor authz.Actor, in SubmitInput) (lifecycle.Auction, error) {
	if !actor.Can(authz.CapSubmit) {
		return lifecycle.Auction{}, denied(actor, lifecycle.ActionSubmit)
	}
	if err := validateSubmission(&in); err != nil {
		return lifecycle.Auction{}, err
	}

	now := svc.clock.Now()
	a := lifecycle.Auction{
		ID:           uuid.NewString(),
		ItemID:       in.ItemID,
		MinimumBid:   in.MinimumBid,
		MaximumBid:   in.MaximumBid,
		StartingBid:  in.StartingBid,
		CurrentBid:   decimal.Zero,
		ReservePrice: in.ReservePrice,
		Status:       lifecycle.StatusPending,
		AuctionType:  in.AuctionType,
		StartTime:    in.StartTime.UTC(),
		EndTime:      in.EndTime.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
	tr := lifecycle.Transition{
		ID:        uuid.NewString(),
		AuctionID: a.ID,
		Action:    lifecycle.ActionSubmit,
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		ToStatus:  a.Status,
		FromType:  a.AuctionType,
		ToType:    a.AuctionType,
		At:        now,
	}
	if err := svc.store.Create(ctx, a, tr); err != nil {
		return lifecycle.Auction{}, err
	}
	svc.afterCommit(ctx, a, tr)
	return a, nil
}

func validateSubmission(in *SubmitInput) error {
	in.ItemID = strings.TrimSpace(in.ItemID)
	switch {
	case in.ItemID == "":
		return &lifecycle.ValidationError{Field: "item_id", Message: "is required"}
	case !in.MinimumBid.IsPositive():
		return &lifecycle.ValidationError{Field: "minimum_bid", Message: "must be greater than zero"}
	case in.MaximumBid.LessThan(in.MinimumBid):
		return &lifecycle.ValidationError{Field: "maximum_bid", Message: "must not be below minimum_bid"}
	case in.StartingBid.IsNegative():
		return &lifecycle.ValidationError{Field: "starting_bid", Message: "must not be negative"}
	case in.ReservePrice.Valid && in.ReservePrice.Decimal.IsNegative():
		return &lifecycle.ValidationError{Field: "reserve_price", Message: "must not be negative"}
	case !in.EndTime.After(in.StartTime):
		return &lifecycle.ValidationError{Field: "end_time", Message: "must be after start_time"}
	}
	for field, amount := range map[string]decimal.Decimal{
		"minimum_bid":   in.MinimumBid,
		"maximum_bid":   in.MaximumBid,
		"starting_bid":  in.StartingBid,
		"reserve_price": in.ReservePrice.Decimal,
	} {
		if err := lifecycle.ValidateCents(field, amount); err != nil {
			return err
		}
	}
	if in.AuctionType == "" {
		in.AuctionType = lifecycle.TypeSilentInstant
	}
	if !in.AuctionType.Valid() {
		return &lifecycle.ValidationError{Field: "auction_type", Message: "must be one of live, silent_instant"}
	}
	return nil
}

func (svc *auctionService) Approve(ctx context.Context, actor authz.Actor, id string, in lifecycle.ApproveInput) (lifecycle.Auction, error) {
	return svc.mutate(ctx, actor, id, authz.CapApprove, lifecycle.ActionApprove,
		func(a lifecycle.Auction, now time.Time) (lifecycle.Auction, *lifecycle.Transition, error) {
			return lifecycle.Approve(a, in, now)
		})
}

func (svc *auctionService) Reject(ctx context.Context, actor authz.Actor, id, reason string) (lifecycle.Auction, error) {
	return svc.mutate(ctx, actor, id, authz.CapReject, lifecycle.ActionReject,
		func(a lifecycle.Auction, now time.Time) (lifecycle.Auction, *lifecycle.Transition, error) {
			return lifecycle.Reject(a, reason, now)
		})
}

func (svc *auctionService) ChangeAuctionType(ctx context.Context, actor authz.Actor, id string, newType lifecycle.AuctionType) (lifecycle.Auction, error) {
	return svc.mutate(ctx, actor, id, authz.CapChangeType, lifecycle.ActionChangeType,
		func(a lifecycle.Auction, now time.Time) (lifecycle.Auction, *lifecycle.Transition, error) {
			return lifecycle.ChangeType(a, newType, now)
		})
}

func (svc *auctionService) ApproveForLiveNow(ctx context.Context, actor authz.Actor, id string) (lifecycle.Auction, error) {
	return svc.mutate(ctx, actor, id, authz.CapApproveLive, lifecycle.ActionApproveForLive, lifecycle.ApproveForLiveNow)
}

// ForceStatus lets an admin complete, end or cancel a live auction without
// waiting for the timer.
func (svc *auctionService) ForceStatus(ctx context.Context, actor authz.Actor, id string, status lifecycle.Status) (lifecycle.Auction, error) {
	// an unsupported target is reported by Finish, after the load and role check
	action, ok := lifecycle.FinishAction(status)
	if !ok {
		action = actionForceStatus
	}
	return svc.mutate(ctx, actor, id, authz.CapForceStatus, action,
		func(a lifecycle.Auction, now time.Time) (lifecycle.Auction, *lifecycle.Transition, error) {
			return lifecycle.Finish(a, status, now)
		})
}

const actionForceStatus lifecycle.Action = "force_status"

// ForceStatusBulk runs ForceStatus for each distinct id and reports every
// outcome. Each id is its own guarded write, so one stale record does not
// block the rest.
func (svc *auctionService) ForceStatusBulk(ctx context.Context, actor authz.Actor, ids []string, status lifecycle.Status) ([]BulkStatusResult, error) {
	if !actor.Can(authz.CapForceStatus) {
		return nil, denied(actor, actionForceStatus)
	}
	if _, ok := lifecycle.FinishAction(status); !ok {
		return nil, &lifecycle.ValidationError{Field: "status", Message: "must be one of completed, ended, cancelled"}
	}

	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, &lifecycle.ValidationError{Field: "ids", Message: "must not contain empty ids"}
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 || len(unique) > MaxBulkStatus {
		return nil, &lifecycle.ValidationError{Field: "ids", Message: "must hold between 1 and 50 ids"}
	}

	out := make([]BulkStatusResult, 0, len(unique))
	failed := 0
	for _, id := range unique {
		a, err := svc.ForceStatus(ctx, actor, id, status)
		if err != nil {
			failed++
		}
		out = append(out, BulkStatusResult{ID: id, Auction: a, Err: err})
	}
	zap.L().Info("auction_bulk_status",
		zap.String("status", string(status)),
		zap.Int("requested", len(unique)),
		zap.Int("failed", failed),
		zap.String("actor_id", actor.ID))
	return out, nil
}

func (svc *auctionService) ForceLive(ctx context.Context, actor authz.Actor, id string) (lifecycle.Auction, error) {
	return svc.mutate(ctx, actor, id, authz.CapForceLive, lifecycle.ActionForceLive, lifecycle.ForceLive)
}

func (svc *auctionService) Activate(ctx context.Context, actor authz.Actor, id string) (lifecycle.Auction, error) {
	return svc.mutate(ctx, actor, id, authz.CapForceLive, lifecycle.ActionActivate, lifecycle.Activate)
}

// Expire is the timer's entry point. It goes through the same guarded path
// as staff actions and is a no-op on an already terminal record.
func (svc *auctionService) Expire(ctx context.Context, actor authz.Actor, id string) (lifecycle.Auction, error) {
	return svc.mutate(ctx, actor, id, authz.CapExpire, lifecycle.ActionExpire, lifecycle.Expire)
}

// mutate loads the record, re-checks the caller's capability, runs the
// engine against the fresh state and persists with an optimistic version
// check.
func (svc *auctionService) mutate(ctx context.Context, actor authz.Actor, id string,
	capability authz.Capability, action lifecycle.Action, fn engineFn) (lifecycle.Auction, error) {

	cur, err := svc.store.Get(ctx, id)
	if err != nil {
		return lifecycle.Auction{}, err
	}
	if !actor.Can(capability) {
		return lifecycle.Auction{}, denied(actor, action)
	}

	now := svc.clock.Now()
	next, tr, err := fn(cur, now)
	if err != nil {
		return lifecycle.Auction{}, err
	}
	if tr == nil {
		zap.L().Debug("auction_transition_noop",
			zap.String("auction_id", id),
			zap.String("action", string(action)),
			zap.String("status", string(cur.Status)))
		return cur, nil
	}

	tr.ID = uuid.NewString()
	tr.ActorID = actor.ID
	tr.ActorRole = string(actor.Role)
	if err := svc.store.Update(ctx, next, cur.Version, *tr); err != nil {
		if errors.Is(err, auctionstore.ErrVersionMismatch) {
			return svc.resolveConflict(ctx, id, action, fn)
		}
		zap.L().Error("auction_update_failed", zap.String("auction_id", id), zap.Error(err))
		return lifecycle.Auction{}, err
	}
	next.Version = cur.Version + 1

	svc.afterCommit(ctx, next, *tr)
	return next, nil
}

// resolveConflict handles a lost optimistic race. If the winner already
// produced the state the caller asked for, the caller gets that state back;
// otherwise a ConflictError carrying the stored state.
func (svc *auctionService) resolveConflict(ctx context.Context, id string, action lifecycle.Action, fn engineFn) (lifecycle.Auction, error) {
	fresh, err := svc.store.Get(ctx, id)
	if err != nil {
		return lifecycle.Auction{}, err
	}
	// Two finishers racing: the first terminal status wins and the loser
	// gets it back without a write of its own.
	if action.Finishes() && fresh.Status.IsTerminal() {
		zap.L().Debug("auction_finish_lost_race",
			zap.String("auction_id", id),
			zap.String("action", string(action)),
			zap.String("status", string(fresh.Status)))
		return fresh, nil
	}
	if _, tr, err := fn(fresh, svc.clock.Now()); err == nil && tr == nil {
		return fresh, nil
	}
	zap.L().Info("auction_transition_conflict",
		zap.String("auction_id", id),
		zap.String("action", string(action)),
		zap.String("status", string(fresh.Status)))
	return lifecycle.Auction{}, &lifecycle.ConflictError{
		Operation: string(action),
		Current:   fresh.State(),
		Version:   fresh.Version,
	}
}

func (svc *auctionService) afterCommit(ctx context.Context, a lifecycle.Auction, tr lifecycle.Transition) {
	zap.L().Info("auction_transition",
		zap.String("auction_id", a.ID),
		zap.String("action", string(tr.Action)),
		zap.String("from", string(tr.FromStatus)),
		zap.String("to", string(tr.ToStatus)),
		zap.String("auction_type", string(a.AuctionType)),
		zap.Bool("approved_for_live", a.ApprovedForLive),
		zap.String("actor_role", tr.ActorRole),
		zap.String("actor_id", tr.ActorID))

	switch {
	case a.Status == lifecycle.StatusLive && tr.FromStatus != lifecycle.StatusLive:
		if err := svc.timer.Arm(ctx, a.ID, a.EndTime.Sub(tr.At)); err != nil {
			zap.L().Warn("timer_arm_failed", zap.String("auction_id", a.ID), zap.Error(err))
		}
	case a.Status.IsTerminal() && tr.FromStatus == lifecycle.StatusLive:
		if err := svc.timer.Disarm(ctx, a.ID); err != nil {
			zap.L().Warn("timer_disarm_failed", zap.String("auction_id", a.ID), zap.Error(err))
		}
	}

	if tr.FromStatus != tr.ToStatus {
		if err := svc.stats.Invalidate(ctx); err != nil {
			zap.L().Warn("stats_invalidate_failed", zap.Error(err))
		}
	}

	if err := svc.publisher.Publish(ctx, events.FromTransition(tr)); err != nil {
		zap.L().Warn("event_publish_failed", zap.String("auction_id", a.ID), zap.Error(err))
	}
}

func (svc *auctionService) GetAuction(ctx context.Context, id string) (lifecycle.Auction, error) {
	return svc.store.Get(ctx, id)
}

func (svc *auctionService) ListAuctions(ctx context.Context, f auctionstore.Filter) ([]lifecycle.Auction, error) {
	return svc.store.List(ctx, f)
}

func (svc *auctionService) Transitions(ctx context.Context, id string) ([]lifecycle.Transition, error) {
	if _, err := svc.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return svc.store.Transitions(ctx, id)
}

var allStatuses = []lifecycle.Status{
	lifecycle.StatusPending, lifecycle.StatusScheduled, lifecycle.StatusLive,
	lifecycle.StatusRejected, lifecycle.StatusCompleted, lifecycle.StatusEnded, lifecycle.StatusCancelled,
}

// Stats returns a count for every status, served from cache when possible.
func (svc *auctionService) Stats(ctx context.Context) (map[lifecycle.Status]int, error) {
	counts, ok, err := svc.stats.Get(ctx)
	if err != nil {
		zap.L().Warn("stats_cache_get_failed", zap.Error(err))
	}
	if ok {
		return counts, nil
	}

	gen, genErr := svc.stats.Generation(ctx)
	if genErr != nil {
		zap.L().Warn("stats_cache_generation_failed", zap.Error(genErr))
	}
	counts, err = svc.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range allStatuses {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	if genErr == nil {
		if err := svc.stats.Put(ctx, gen, counts); err != nil {
			zap.L().Warn("stats_cache_put_failed", zap.Error(err))
		}
	}
	return counts, nil
}

func denied(actor authz.Actor, action lifecycle.Action) error {
	return &lifecycle.AuthorizationError{Role: string(actor.Role), Operation: string(action)}
}
