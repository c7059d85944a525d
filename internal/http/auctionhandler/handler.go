package auctionhandler

import (
	"fmt"
	"net/http"

	"auctiongate/internal/authz"
	"auctiongate/internal/database/auctionstore"
	"auctiongate/internal/lifecycle"
	"auctiongate/internal/services/auction"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type Handler struct {
	svc auction.IAuctionService
}

func New(svc auction.IAuctionService) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/auctions", h.list)
	r.GET("/auctions/:id", h.info)
	r.GET("/auctions/:id/transitions", h.transitions)
	r.GET("/stats/auctions", h.stats)

	r.POST("/auctions", h.submit)
	r.POST("/auctions/status", h.bulkStatus)
	r.POST("/auctions/:id/approve", h.approve)
	r.POST("/auctions/:id/reject", h.reject)
	r.POST("/auctions/:id/type", h.changeType)
	r.POST("/auctions/:id/approve-live", h.approveLive)
	r.POST("/auctions/:id/status", h.forceStatus)
	r.POST("/auctions/:id/start", h.forceLive)
}

func (h *Handler) ok(c *gin.Context, status int, msg string, a lifecycle.Auction) {
	c.JSON(status, Envelope{
		Status:  "success",
		Message: msg,
		Data:    newAuctionView(a, actorFrom(c).Can(authz.CapViewPrivate)),
	})
}

// @Summary		Get auction details
// @Description	Returns a single auction. Seller bounds are omitted for buyers.
// @Tags			Auctions
// @Security		BearerAuth
// @Param			id	path		string	true	"Auction ID"
// @Success		200	{object}	Envelope{data=AuctionView}
// @Failure		401	{object}	Envelope
// @Failure		404	{object}	Envelope
// @Router			/auctions/{id} [get]
func (h *Handler) info(c *gin.Context) {
	a, err := h.svc.GetAuction(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.ok(c, http.StatusOK, "", a)
}

// @Summary		List auctions
// @Description	Paginated list, filterable by status, delivery mode and live approval.
// @Tags			Auctions
// @Security		BearerAuth
// @Param			status				query		string	false	"Status filter"			Enums(pending,scheduled,live,rejected,completed,ended,cancelled)
// @Param			auction_type		query		string	false	"Delivery mode filter"	Enums(live,silent_instant)
// @Param			approved_for_live	query		bool	false	"Live approval filter"
// @Param			start_date			query		string	false	"Starts on or after (YYYY-MM-DD)"
// @Param			end_date			query		string	false	"Ends on or before (YYYY-MM-DD)"
// @Param			sort				query		string	false	"Sort column"			Enums(created_at,start_time,end_time,current_bid,status)	default(created_at)
// @Param			order				query		string	false	"Sort direction"		Enums(asc,desc)	default(desc)
// @Param			limit				query		int		false	"Max results (0‑100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset				query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200					{object}	Envelope{data=[]AuctionView}
// @Failure		422					{object}	Envelope
// @Failure		503					{object}	Envelope
// @Router			/auctions [get]
func (h *Handler) list(c *gin.Context) {
	var q ListAuctionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	if !auctionstore.SortAllowed(q.Sort) {
		writeError(c, &lifecycle.ValidationError{Field: "sort", Message: "unsupported sort column"})
		return
	}

	filter := auctionstore.Filter{
		Status:          lifecycle.Status(q.Status),
		AuctionType:     lifecycle.AuctionType(q.AuctionType),
		ApprovedForLive: q.ApprovedForLive,
		StartFrom:       q.StartDate,
		Sort:            q.Sort,
		Desc:            q.Order == "desc",
		Limit:           q.Limit,
		Offset:          q.Offset,
	}
	if !q.EndDate.IsZero() {
		// end_date names a whole day
		filter.EndUntil = q.EndDate.AddDate(0, 0, 1)
	}

	list, err := h.svc.ListAuctions(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	private := actorFrom(c).Can(authz.CapViewPrivate)
	out := make([]AuctionView, 0, len(list))
	for _, a := range list {
		out = append(out, newAuctionView(a, private))
	}
	c.JSON(http.StatusOK, Envelope{Status: "success", Data: out})
}

// @Summary		Auction audit trail
// @Description	Every committed lifecycle move of one auction, oldest first. Staff only.
// @Tags			Auctions
// @Security		BearerAuth
// @Param			id	path		string	true	"Auction ID"
// @Success		200	{object}	Envelope{data=[]lifecycle.Transition}
// @Failure		403	{object}	Envelope
// @Failure		404	{object}	Envelope
// @Router			/auctions/{id}/transitions [get]
func (h *Handler) transitions(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(authz.CapViewPrivate) {
		writeError(c, &lifecycle.AuthorizationError{Role: string(actor.Role), Operation: "view_transitions"})
		return
	}
	trs, err := h.svc.Transitions(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if trs == nil {
		trs = []lifecycle.Transition{}
	}
	c.JSON(http.StatusOK, Envelope{Status: "success", Data: trs})
}

// @Summary		Auction counts per status
// @Tags			Stats
// @Security		BearerAuth
// @Success		200	{object}	Envelope{data=map[string]int}
// @Failure		403	{object}	Envelope
// @Router			/stats/auctions [get]
func (h *Handler) stats(c *gin.Context) {
	actor := actorFrom(c)
	if !actor.Can(authz.CapViewPrivate) {
		writeError(c, &lifecycle.AuthorizationError{Role: string(actor.Role), Operation: "view_stats"})
		return
	}
	counts, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Envelope{Status: "success", Data: counts})
}

// @Summary		Submit an auction
// @Description	Seller submits a listing for moderation. It starts as pending.
// @Tags			Auctions
// @Security		BearerAuth
// @Param			body	body		SubmitAuctionBody	true	"Listing"
// @Success		201		{object}	Envelope{data=AuctionView}
// @Failure		403		{object}	Envelope
// @Failure		422		{object}	Envelope
// @Router			/auctions [post]
func (h *Handler) submit(c *gin.Context) {
	var body SubmitAuctionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	in := auction.SubmitInput{
		ItemID:      body.ItemID,
		MinimumBid:  *body.MinimumBid,
		MaximumBid:  *body.MaximumBid,
		AuctionType: body.AuctionType,
		StartTime:   body.StartTime,
		EndTime:     body.EndTime,
	}
	if body.StartingBid != nil {
		in.StartingBid = *body.StartingBid
	}
	if body.ReservePrice != nil {
		in.ReservePrice = decimal.NewNullDecimal(*body.ReservePrice)
	}

	a, err := h.svc.Submit(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.ok(c, http.StatusCreated, "auction submitted for review", a)
}

// @Summary		Approve a pending auction
// @Description	Moderator or admin sets the opening price and delivery mode. The opening price must be at least 90% of the seller minimum.
// @Tags			Review
// @Security		BearerAuth
// @Param			id		path		string		true	"Auction ID"
// @Param			body	body		ApproveBody	true	"Approval"
// @Success		200		{object}	Envelope{data=AuctionView}
// @Failure		403		{object}	Envelope
// @Failure		409		{object}	Envelope
// @Failure		422		{object}	Envelope
// @Router			/auctions/{id}/approve [post]
func (h *Handler) approve(c *gin.Context) {
	var body ApproveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.svc.Approve(c.Request.Context(), actorFrom(c), c.Param("id"), lifecycle.ApproveInput{
		OpeningPrice:   *body.OpeningPrice,
		AuctionType:    body.AuctionType,
		ApproveForLive: body.ApproveForLive,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.ok(c, http.StatusOK, "auction approved", a)
}

// @Summary		Reject a pending auction
// @Tags			Review
// @Security		BearerAuth
// @Param			id		path		string		true	"Auction ID"
// @Param			body	body		RejectBody	true	"Reason"
// @Success		200		{object}	Envelope{data=AuctionView}
// @Failure		409		{object}	Envelope
// @Failure		422		{object}	Envelope
// @Router			/auctions/{id}/reject [post]
func (h *Handler) reject(c *gin.Context) {
	var body RejectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.svc.Reject(c.Request.Context(), actorFrom(c), c.Param("id"), body.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	h.ok(c, http.StatusOK, "auction rejected", a)
}

// @Summary		Change delivery mode
// @Description	Admin switches a scheduled or live auction between live and silent_instant. Live approval is reset.
// @Tags			Admin
// @Security		BearerAuth
// @Param			id		path		string			true	"Auction ID"
// @Param			body	body		ChangeTypeBody	true	"New type"
// @Success		200		{object}	Envelope{data=AuctionView}
// @Failure		403		{object}	Envelope
// @Failure		409		{object}	Envelope
// @Router			/auctions/{id}/type [post]
func (h *Handler) changeType(c *gin.Context) {
	var body ChangeTypeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.svc.ChangeAuctionType(c.Request.Context(), actorFrom(c), c.Param("id"), body.AuctionType)
	if err != nil {
		writeError(c, err)
		return
	}
	h.ok(c, http.StatusOK, "auction type changed", a)
}

// @Summary		Approve a live auction for broadcast
// @Tags			Admin
// @Security		BearerAuth
// @Param			id	path		string	true	"Auction ID"
// @Success		200	{object}	Envelope{data=AuctionView}
// @Failure		403	{object}	Envelope
// @Failure		409	{object}	Envelope
// @Router			/auctions/{id}/approve-live [post]
func (h *Handler) approveLive(c *gin.Context) {
	a, err := h.svc.ApproveForLiveNow(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.ok(c, http.StatusOK, "auction approved for live", a)
}

// @Summary		Finish an auction
// @Description	Admin moves a live auction to completed, ended or cancelled. Repeating the same terminal status is a no-op.
// @Tags			Admin
// @Security		BearerAuth
// @Param			id		path		string			true	"Auction ID"
// @Param			body	body		ForceStatusBody	true	"Target status"
// @Success		200		{object}	Envelope{data=AuctionView}
// @Failure		403		{object}	Envelope
// @Failure		409		{object}	Envelope
// @Failure		422		{object}	Envelope
// @Router			/auctions/{id}/status [post]
func (h *Handler) forceStatus(c *gin.Context) {
	var body ForceStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.svc.ForceStatus(c.Request.Context(), actorFrom(c), c.Param("id"), body.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	h.ok(c, http.StatusOK, "auction status updated", a)
}

// @Summary		Finish several auctions
// @Description	Admin moves up to 50 live auctions to completed, ended or cancelled. Each id is applied on its own and reported separately.
// @Tags			Admin
// @Security		BearerAuth
// @Param			body	body		BulkStatusBody	true	"Ids and target status"
// @Success		200		{object}	Envelope{data=[]BulkStatusItem}
// @Failure		403		{object}	Envelope
// @Failure		422		{object}	Envelope
// @Router			/auctions/status [post]
func (h *Handler) bulkStatus(c *gin.Context) {
	var body BulkStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err)
		return
	}
	actor := actorFrom(c)
	results, err := h.svc.ForceStatusBulk(c.Request.Context(), actor, body.AuctionIDs, body.Status)
	if err != nil {
		writeError(c, err)
		return
	}

	private := actor.Can(authz.CapViewPrivate)
	out := make([]BulkStatusItem, 0, len(results))
	failed := 0
	for _, r := range results {
		item := BulkStatusItem{ID: r.ID, Status: "success"}
		if r.Err != nil {
			failed++
			_, env := errorEnvelope(c, r.Err)
			item.Status, item.Code, item.Message = env.Status, env.Code, env.Message
		} else {
			view := newAuctionView(r.Auction, private)
			item.Auction = &view
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, Envelope{
		Status:  "success",
		Message: fmt.Sprintf("%d of %d auctions updated", len(out)-failed, len(out)),
		Data:    out,
	})
}

// @Summary		Start a scheduled auction now
// @Tags			Admin
// @Security		BearerAuth
// @Param			id	path		string	true	"Auction ID"
// @Success		200	{object}	Envelope{data=AuctionView}
// @Failure		403	{object}	Envelope
// @Failure		409	{object}	Envelope
// @Router			/auctions/{id}/start [post]
func (h *Handler) forceLive(c *gin.Context) {
	a, err := h.svc.ForceLive(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.ok(c, http.StatusOK, "auction is live", a)
}
