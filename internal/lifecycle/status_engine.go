package lifecycle

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ApproveInput struct {
	OpeningPrice   decimal.Decimal
	AuctionType    AuctionType
	ApproveForLive bool
}

// Approve moves a pending auction to scheduled. The opening price is set
// here and never again.
func Approve(a Auction, in ApproveInput, now time.Time) (Auction, *Transition, error) {
	if a.Status != StatusPending || a.OpeningPrice.Valid {
		return a, nil, &ConflictError{Operation: string(ActionApprove), Current: a.State(), Version: a.Version}
	}
	if !in.OpeningPrice.IsPositive() {
		return a, nil, newValidationError("opening_price", "must be greater than zero")
	}
	if !in.AuctionType.Valid() {
		return a, nil, newValidationError("auction_type", "must be one of live, silent_instant")
	}
	if in.ApproveForLive && in.AuctionType != TypeLive {
		return a, nil, newValidationError("approve_for_live", "only live auctions can be approved for live")
	}
	if err := ValidateOpeningPrice(in.OpeningPrice, a.MinimumBid); err != nil {
		return a, nil, err
	}

	next := a
	next.Status = StatusScheduled
	next.OpeningPrice = decimal.NewNullDecimal(in.OpeningPrice)
	next.AuctionType = in.AuctionType
	next.ApprovedForLive = in.ApproveForLive
	next.UpdatedAt = now

	tr := newTransition(a, next, ActionApprove, now)
	tr.Note = "opening_price=" + in.OpeningPrice.StringFixed(2)
	return next, &tr, nil
}

func Reject(a Auction, reason string, now time.Time) (Auction, *Transition, error) {
	if a.Status != StatusPending {
		return a, nil, &ConflictError{Operation: string(ActionReject), Current: a.State(), Version: a.Version}
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return a, nil, newValidationError("reason", "rejection reason is required")
	}

	next := a
	next.Status = StatusRejected
	next.RejectionReason = reason
	next.UpdatedAt = now

	tr := newTransition(a, next, ActionReject, now)
	tr.Note = reason
	return next, &tr, nil
}

// ForceLive is the administrative scheduled -> live move.
func ForceLive(a Auction, now time.Time) (Auction, *Transition, error) {
	if a.Status != StatusScheduled {
		return a, nil, invalidTransition(ActionForceLive, a)
	}
	return goLive(a, ActionForceLive, now)
}

// Activate is the timer-driven scheduled -> live move; it waits for start_time.
func Activate(a Auction, now time.Time) (Auction, *Transition, error) {
	if a.Status != StatusScheduled || now.Before(a.StartTime) {
		return a, nil, invalidTransition(ActionActivate, a)
	}
	return goLive(a, ActionActivate, now)
}

func goLive(a Auction, action Action, now time.Time) (Auction, *Transition, error) {
	next := a
	next.Status = StatusLive
	next.UpdatedAt = now
	tr := newTransition(a, next, action, now)
	return next, &tr, nil
}

// FinishAction maps a forced terminal status to its trigger.
func FinishAction(target Status) (Action, bool) {
	switch target {
	case StatusCompleted:
		return ActionComplete, true
	case StatusEnded:
		return ActionEnd, true
	case StatusCancelled:
		return ActionCancel, true
	}
	return "", false
}

// Finish applies Complete, End or Cancel. Repeating the call that already
// produced the record's terminal status succeeds with a nil transition so
// that a staff action and the timer can race safely.
func Finish(a Auction, target Status, now time.Time) (Auction, *Transition, error) {
	action, ok := FinishAction(target)
	if !ok {
		return a, nil, newValidationError("status", "must be one of completed, ended, cancelled")
	}
	if a.Status == target {
		return a, nil, nil
	}
	if a.Status != StatusLive {
		return a, nil, invalidTransition(action, a)
	}

	next := a
	next.Status = target
	next.UpdatedAt = now
	tr := newTransition(a, next, action, now)
	return next, &tr, nil
}

// Expire is the timer's finalisation at end_time. A sale with a bid that
// meets the reserve completes, anything else ends. A record that is already
// terminal is left alone.
func Expire(a Auction, now time.Time) (Auction, *Transition, error) {
	if a.Status.IsTerminal() {
		return a, nil, nil
	}
	if a.Status != StatusLive || now.Before(a.EndTime) {
		return a, nil, invalidTransition(ActionExpire, a)
	}

	next := a
	next.Status = ExpiryOutcome(a)
	next.UpdatedAt = now
	tr := newTransition(a, next, ActionExpire, now)
	return next, &tr, nil
}

func ExpiryOutcome(a Auction) Status {
	if !a.CurrentBid.IsPositive() {
		return StatusEnded
	}
	if a.ReservePrice.Valid && a.CurrentBid.LessThan(a.ReservePrice.Decimal) {
		return StatusEnded
	}
	return StatusCompleted
}
