package lifecycle

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusLive      Status = "live"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transition may leave s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusEnded, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusLive,
		StatusRejected, StatusCompleted, StatusEnded, StatusCancelled:
		return true
	}
	return false
}

type AuctionType string

const (
	TypeLive          AuctionType = "live"
	TypeSilentInstant AuctionType = "silent_instant"
)

func (t AuctionType) Valid() bool {
	return t == TypeLive || t == TypeSilentInstant
}

// Auction is the authoritative auction record. Version increments on every
// persisted change and backs the optimistic check at write time.
type Auction struct {
	ID              string              `json:"id"`
	ItemID          string              `json:"item_id"`
	MinimumBid      decimal.Decimal     `json:"minimum_bid"`
	MaximumBid      decimal.Decimal     `json:"maximum_bid"`
	StartingBid     decimal.Decimal     `json:"starting_bid"`
	OpeningPrice    decimal.NullDecimal `json:"opening_price"`
	CurrentBid      decimal.Decimal     `json:"current_bid"`
	ReservePrice    decimal.NullDecimal `json:"reserve_price"`
	Status          Status              `json:"status"`
	AuctionType     AuctionType         `json:"auction_type"`
	ApprovedForLive bool                `json:"approved_for_live"`
	RejectionReason string              `json:"rejection_reason,omitempty"`
	StartTime       time.Time           `json:"start_time"`
	EndTime         time.Time           `json:"end_time"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Version         int64               `json:"version"`
}

// State is the (status, auction_type, approved_for_live) triple that every
// guard is evaluated against.
type State struct {
	Status          Status      `json:"status"`
	AuctionType     AuctionType `json:"auction_type"`
	ApprovedForLive bool        `json:"approved_for_live"`
}

func (a Auction) State() State {
	return State{
		Status:          a.Status,
		AuctionType:     a.AuctionType,
		ApprovedForLive: a.ApprovedForLive,
	}
}

type Action string

const (
	ActionSubmit         Action = "submit"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionForceLive      Action = "force_live"
	ActionActivate       Action = "activate"
	ActionComplete       Action = "complete"
	ActionEnd            Action = "end"
	ActionCancel         Action = "cancel"
	ActionExpire         Action = "expire"
	ActionChangeType     Action = "change_type"
	ActionApproveForLive Action = "approve_for_live"
)

// Finishes reports whether the action moves a live auction to a terminal status.
func (a Action) Finishes() bool {
	switch a {
	case ActionComplete, ActionEnd, ActionCancel, ActionExpire:
		return true
	}
	return false
}

// Transition describes one applied change. It is persisted next to the
// record as audit metadata and published to event consumers.
type Transition struct {
	ID              string      `json:"id"`
	AuctionID       string      `json:"auction_id"`
	Action          Action      `json:"action"`
	ActorID         string      `json:"actor_id"`
	ActorRole       string      `json:"actor_role"`
	FromStatus      Status      `json:"from_status"`
	ToStatus        Status      `json:"to_status"`
	FromType        AuctionType `json:"from_type"`
	ToType          AuctionType `json:"to_type"`
	ApprovedForLive bool        `json:"approved_for_live"`
	Note            string      `json:"note,omitempty"`
	At              time.Time   `json:"at"`
}

func newTransition(before, after Auction, action Action, at time.Time) Transition {
	return Transition{
		AuctionID:       after.ID,
		Action:          action,
		FromStatus:      before.Status,
		ToStatus:        after.Status,
		FromType:        before.AuctionType,
		ToType:          after.AuctionType,
		ApprovedForLive: after.ApprovedForLive,
		At:              at,
	}
}
