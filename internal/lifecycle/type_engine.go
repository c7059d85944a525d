package lifecycle

import "time"

func typeMutable(s Status) bool {
	return s == StatusScheduled || s == StatusLive
}

// ChangeType flips between live and silent_instant. approved_for_live is
// always cleared.
func ChangeType(a Auction, newType AuctionType, now time.Time) (Auction, *Transition, error) {
	if !newType.Valid() {
		return a, nil, newValidationError("auction_type", "must be one of live, silent_instant")
	}
	if !typeMutable(a.Status) || a.AuctionType == newType {
		return a, nil, invalidTransition(ActionChangeType, a)
	}

	next := a
	next.AuctionType = newType
	next.ApprovedForLive = false
	next.UpdatedAt = now
	tr := newTransition(a, next, ActionChangeType, now)
	return next, &tr, nil
}

// ApproveForLiveNow clears a running live auction to broadcast. Only the
// (live, live, false) state qualifies.
func ApproveForLiveNow(a Auction, now time.Time) (Auction, *Transition, error) {
	if a.Status != StatusLive || a.AuctionType != TypeLive || a.ApprovedForLive {
		return a, nil, invalidTransition(ActionApproveForLive, a)
	}

	next := a
	next.ApprovedForLive = true
	next.UpdatedAt = now
	tr := newTransition(a, next, ActionApproveForLive, now)
	return next, &tr, nil
}
