package auctionhandler

import (
	"time"

	"auctiongate/internal/lifecycle"

	"github.com/shopspring/decimal"
)

type SubmitAuctionBody struct {
	ItemID       string                `json:"item_id"       binding:"required"                           example:"car-1842"`
	MinimumBid   *decimal.Decimal      `json:"minimum_bid"   binding:"required" swaggertype:"string"      example:"10000.00"`
	MaximumBid   *decimal.Decimal      `json:"maximum_bid"   binding:"required" swaggertype:"string"      example:"14000.00"`
	StartingBid  *decimal.Decimal      `json:"starting_bid"                     swaggertype:"string"      example:"9500.00"`
	ReservePrice *decimal.Decimal      `json:"reserve_price"                    swaggertype:"string"      example:"11000.00"`
	AuctionType  lifecycle.AuctionType `json:"auction_type"  binding:"omitempty,oneof=live silent_instant" example:"silent_instant"`
	StartTime    time.Time             `json:"start_time"    binding:"required"                           example:"2026-07-01T19:00:00Z"`
	EndTime      time.Time             `json:"end_time"      binding:"required"                           example:"2026-07-11T19:00:00Z"`
} // @name SubmitAuctionRequest

type ApproveBody struct {
	OpeningPrice   *decimal.Decimal      `json:"opening_price"    binding:"required" swaggertype:"string" example:"9200.00"`
	AuctionType    lifecycle.AuctionType `json:"auction_type"     binding:"required"                      example:"silent_instant"`
	ApproveForLive bool                  `json:"approve_for_live"                                         example:"false"`
} // @name ApproveAuctionRequest

type RejectBody struct {
	Reason string `json:"reason" example:"photos do not match the VIN"`
} // @name RejectAuctionRequest

type ChangeTypeBody struct {
	AuctionType lifecycle.AuctionType `json:"auction_type" binding:"required" example:"live"`
} // @name ChangeAuctionTypeRequest

type ForceStatusBody struct {
	Status lifecycle.Status `json:"status" binding:"required" example:"completed"`
} // @name ForceStatusRequest

type BulkStatusBody struct {
	AuctionIDs []string         `json:"auction_ids" binding:"required,min=1,max=50,dive,required" example:"auc-1,auc-2"`
	Status     lifecycle.Status `json:"status"      binding:"required"                            example:"cancelled"`
} // @name BulkStatusRequest

// BulkStatusItem is the outcome for one id of a bulk status change.
type BulkStatusItem struct {
	ID      string       `json:"id"`
	Status  string       `json:"status"            example:"success"`
	Code    string       `json:"code,omitempty"`
	Message string       `json:"message,omitempty"`
	Auction *AuctionView `json:"auction,omitempty"`
} // @name BulkStatusItem

type ListAuctionsQuery struct {
	Status          string    `form:"status"            binding:"omitempty,oneof=pending scheduled live rejected completed ended cancelled"`
	AuctionType     string    `form:"auction_type"      binding:"omitempty,oneof=live silent_instant"`
	ApprovedForLive *bool     `form:"approved_for_live"`
	StartDate       time.Time `form:"start_date" time_format:"2006-01-02" time_utc:"1"`
	EndDate         time.Time `form:"end_date"   time_format:"2006-01-02" time_utc:"1"`
	Sort            string    `form:"sort,default=created_at"`
	Order           string    `form:"order,default=desc" binding:"oneof=asc desc"`
	Limit           int       `form:"limit,default=10"   binding:"gte=0,lte=100"`
	Offset          int       `form:"offset,default=0"   binding:"gte=0"`
} // @name ListAuctionsQuery

// Envelope wraps every response body.
type Envelope struct {
	Status  string `json:"status"            example:"success"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
	Details any    `json:"details,omitempty"`
} // @name Envelope

// AuctionView is the wire form of an auction. Seller bounds and the reserve
// are only filled for callers allowed to see them.
type AuctionView struct {
	ID              string                `json:"id"`
	ItemID          string                `json:"item_id"`
	MinimumBid      *decimal.Decimal      `json:"minimum_bid,omitempty"   swaggertype:"string"`
	MaximumBid      *decimal.Decimal      `json:"maximum_bid,omitempty"   swaggertype:"string"`
	ReservePrice    *decimal.Decimal      `json:"reserve_price,omitempty" swaggertype:"string"`
	StartingBid     decimal.Decimal       `json:"starting_bid"            swaggertype:"string"`
	OpeningPrice    decimal.NullDecimal   `json:"opening_price"           swaggertype:"string"`
	CurrentBid      decimal.Decimal       `json:"current_bid"             swaggertype:"string"`
	Status          lifecycle.Status      `json:"status"`
	AuctionType     lifecycle.AuctionType `json:"auction_type"`
	ApprovedForLive bool                  `json:"approved_for_live"`
	RejectionReason string                `json:"rejection_reason,omitempty"`
	StartTime       time.Time             `json:"start_time"`
	EndTime         time.Time             `json:"end_time"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Version         int64                 `json:"version"`
} // @name Auction

func newAuctionView(a lifecycle.Auction, private bool) AuctionView {
	v := AuctionView{
		ID:              a.ID,
		ItemID:          a.ItemID,
		StartingBid:     a.StartingBid,
		OpeningPrice:    a.OpeningPrice,
		CurrentBid:      a.CurrentBid,
		Status:          a.Status,
		AuctionType:     a.AuctionType,
		ApprovedForLive: a.ApprovedForLive,
		RejectionReason: a.RejectionReason,
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
		Version:         a.Version,
	}
	if private {
		minBid, maxBid := a.MinimumBid, a.MaximumBid
		v.MinimumBid, v.MaximumBid = &minBid, &maxBid
		if a.ReservePrice.Valid {
			reserve := a.ReservePrice.Decimal
			v.ReservePrice = &reserve
		}
	}
	return v
}
