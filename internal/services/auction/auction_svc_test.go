package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"auctiongate/internal/authz"
	"auctiongate/internal/clock"
	"auctiongate/internal/database/auctionstore"
	"auctiongate/internal/events"
	"auctiongate/internal/lifecycle"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	now       = time.Date(2026, 6, 10, 18, 30, 0, 0, time.UTC)
	moderator = authz.Actor{ID: "mod-1", Role: authz.RoleModerator}
	admin     = authz.Actor{ID: "adm-1", Role: authz.RoleAdmin}
	seller    = authz.Actor{ID: "sel-1", Role: authz.RoleSeller}
	buyer     = authz.Actor{ID: "buy-1", Role: authz.RoleBuyer}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeStore struct {
	mu          sync.Mutex
	auctions    map[string]lifecycle.Auction
	transitions []lifecycle.Transition
	// beforeUpdate runs once, ahead of the next Update, to simulate a
	// concurrent writer.
	beforeUpdate func(s *fakeStore)
	getErr       error
}

func newFakeStore(list ...lifecycle.Auction) *fakeStore {
	s := &fakeStore{auctions: make(map[string]lifecycle.Auction)}
	for _, a := range list {
		s.auctions[a.ID] = a
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id string) (lifecycle.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return lifecycle.Auction{}, s.getErr
	}
	a, ok := s.auctions[id]
	if !ok {
		return lifecycle.Auction{}, lifecycle.ErrNotFound
	}
	return a, nil
}

func (s *fakeStore) Create(_ context.Context, a lifecycle.Auction, tr lifecycle.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[a.ID] = a
	s.transitions = append(s.transitions, tr)
	return nil
}

func (s *fakeStore) Update(_ context.Context, a lifecycle.Auction, expectedVersion int64, tr lifecycle.Transition) error {
	s.mu.Lock()
	hook := s.beforeUpdate
	s.beforeUpdate = nil
	s.mu.Unlock()
	if hook != nil {
		hook(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.auctions[a.ID]
	if cur.Version != expectedVersion {
		return auctionstore.ErrVersionMismatch
	}
	if cur.OpeningPrice.Valid {
		a.OpeningPrice = cur.OpeningPrice
	}
	a.Version = expectedVersion + 1
	s.auctions[a.ID] = a
	s.transitions = append(s.transitions, tr)
	return nil
}

// force writes a record directly, bumping its version like a competing writer.
func (s *fakeStore) force(id string, mutate func(a *lifecycle.Auction)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.auctions[id]
	mutate(&a)
	a.Version++
	s.auctions[id] = a
}

func (s *fakeStore) List(context.Context, auctionstore.Filter) ([]lifecycle.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]lifecycle.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		out = append(out, a)
	}
	return out, nil
}

func (s *fakeStore) CountByStatus(context.Context) (map[lifecycle.Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[lifecycle.Status]int)
	for _, a := range s.auctions {
		out[a.Status]++
	}
	return out, nil
}

func (s *fakeStore) Transitions(_ context.Context, id string) ([]lifecycle.Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []lifecycle.Transition
	for _, tr := range s.transitions {
		if tr.AuctionID == id {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (s *fakeStore) stored(id string) lifecycle.Auction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auctions[id]
}

type fakeTimer struct {
	mu       sync.Mutex
	armed    map[string]time.Duration
	disarmed []string
}

func (f *fakeTimer) Arm(_ context.Context, id string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armed == nil {
		f.armed = make(map[string]time.Duration)
	}
	f.armed[id] = ttl
	return nil
}

func (f *fakeTimer) Disarm(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disarmed = append(f.disarmed, id)
	return nil
}

type fakeStats struct {
	cached      map[lifecycle.Status]int
	generation  int64
	invalidated int
	err         error
	// afterGeneration runs once after Generation is read, to simulate a
	// transition committing while counts are being recomputed.
	afterGeneration func(f *fakeStats)
}

func (f *fakeStats) Get(context.Context) (map[lifecycle.Status]int, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.cached, f.cached != nil, nil
}

func (f *fakeStats) Generation(context.Context) (int64, error) {
	gen := f.generation
	if hook := f.afterGeneration; hook != nil {
		f.afterGeneration = nil
		hook(f)
	}
	return gen, f.err
}

func (f *fakeStats) Put(_ context.Context, gen int64, counts map[lifecycle.Status]int) error {
	if gen == f.generation {
		f.cached = counts
	}
	return nil
}

func (f *fakeStats) Invalidate(context.Context) error {
	f.invalidated++
	f.generation++
	f.cached = nil
	return nil
}

type recordingPublisher struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

type fixture struct {
	svc   IAuctionService
	store *fakeStore
	timer *fakeTimer
	stats *fakeStats
	pub   *recordingPublisher
}

func newFixture(list ...lifecycle.Auction) fixture {
	f := fixture{
		store: newFakeStore(list...),
		timer: &fakeTimer{},
		stats: &fakeStats{},
		pub:   &recordingPublisher{},
	}
	f.svc = NewAuctionService(f.store, f.timer, f.stats, f.pub, clock.NewFixed(now))
	return f
}

func pending(id string) lifecycle.Auction {
	return lifecycle.Auction{
		ID:          id,
		ItemID:      "car-" + id,
		MinimumBid:  dec("10000"),
		MaximumBid:  dec("14000"),
		StartingBid: dec("9800"),
		Status:      lifecycle.StatusPending,
		AuctionType: lifecycle.TypeSilentInstant,
		StartTime:   now.Add(time.Hour),
		EndTime:     now.Add(25 * time.Hour),
		CreatedAt:   now.Add(-24 * time.Hour),
		Version:     1,
	}
}

func in(st lifecycle.Status, typ lifecycle.AuctionType, afl bool) lifecycle.Auction {
	a := pending("auc-1")
	a.Status = st
	a.AuctionType = typ
	a.ApprovedForLive = afl
	a.OpeningPrice = decimal.NewNullDecimal(dec("9200"))
	return a
}

func TestApproveBelowFloor(t *testing.T) {
	f := newFixture(pending("auc-1"))

	_, err := f.svc.Approve(context.Background(), moderator, "auc-1", lifecycle.ApproveInput{
		OpeningPrice: dec("8500"),
		AuctionType:  lifecycle.TypeSilentInstant,
	})
	var ve *lifecycle.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "required minimum 9000")
	assert.Equal(t, lifecycle.StatusPending, f.store.stored("auc-1").Status)
	assert.Zero(t, f.pub.count())
}

func TestApproveSchedules(t *testing.T) {
	f := newFixture(pending("auc-1"))

	got, err := f.svc.Approve(context.Background(), moderator, "auc-1", lifecycle.ApproveInput{
		OpeningPrice: dec("9200"),
		AuctionType:  lifecycle.TypeSilentInstant,
	})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusScheduled, got.Status)
	assert.True(t, got.OpeningPrice.Decimal.Equal(dec("9200")))
	assert.False(t, got.ApprovedForLive)
	assert.Equal(t, int64(2), got.Version)

	stored := f.store.stored("auc-1")
	assert.Equal(t, got.Status, stored.Status)

	trs, err := f.svc.Transitions(context.Background(), "auc-1")
	require.NoError(t, err)
	require.Len(t, trs, 1)
	assert.Equal(t, "moderator", trs[0].ActorRole)
	assert.Equal(t, "mod-1", trs[0].ActorID)
	assert.NotEmpty(t, trs[0].ID)

	require.Equal(t, 1, f.pub.count())
	assert.Equal(t, lifecycle.StatusScheduled, f.pub.got[0].ToStatus)
	assert.Equal(t, 1, f.stats.invalidated)
	assert.Empty(t, f.timer.armed, "scheduled auctions are not timed yet")

	_, err = f.svc.Approve(context.Background(), admin, "auc-1", lifecycle.ApproveInput{
		OpeningPrice: dec("13000"),
		AuctionType:  lifecycle.TypeLive,
	})
	assert.True(t, lifecycle.IsConflict(err), "second approval")
	assert.True(t, f.store.stored("auc-1").OpeningPrice.Decimal.Equal(dec("9200")))
}

func TestRejectEmptyReason(t *testing.T) {
	f := newFixture(pending("auc-1"))

	_, err := f.svc.Reject(context.Background(), moderator, "auc-1", "")
	assert.True(t, lifecycle.IsValidation(err))
	assert.Equal(t, lifecycle.StatusPending, f.store.stored("auc-1").Status)
}

func TestRejectedIsTerminal(t *testing.T) {
	f := newFixture(pending("auc-1"))
	ctx := context.Background()

	_, err := f.svc.Reject(ctx, moderator, "auc-1", "salvage title")
	require.NoError(t, err)
	before := f.store.stored("auc-1")

	_, err = f.svc.Approve(ctx, admin, "auc-1", lifecycle.ApproveInput{OpeningPrice: dec("9500"), AuctionType: lifecycle.TypeLive})
	assert.Error(t, err)
	_, err = f.svc.ChangeAuctionType(ctx, admin, "auc-1", lifecycle.TypeLive)
	assert.Error(t, err)
	_, err = f.svc.ForceLive(ctx, admin, "auc-1")
	assert.Error(t, err)
	_, err = f.svc.ForceStatus(ctx, admin, "auc-1", lifecycle.StatusCancelled)
	assert.Error(t, err)

	assert.Equal(t, before, f.store.stored("auc-1"))
}

func TestAuthorization(t *testing.T) {
	ctx := context.Background()

	t.Run("moderator limited to approve and reject", func(t *testing.T) {
		f := newFixture(in(lifecycle.StatusScheduled, lifecycle.TypeSilentInstant, false))

		_, err := f.svc.ChangeAuctionType(ctx, moderator, "auc-1", lifecycle.TypeLive)
		var ae *lifecycle.AuthorizationError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "moderator", ae.Role)

		_, err = f.svc.ForceLive(ctx, moderator, "auc-1")
		assert.True(t, lifecycle.IsAuthorization(err))
		_, err = f.svc.ForceStatus(ctx, moderator, "auc-1", lifecycle.StatusCancelled)
		assert.True(t, lifecycle.IsAuthorization(err))
		_, err = f.svc.ApproveForLiveNow(ctx, moderator, "auc-1")
		assert.True(t, lifecycle.IsAuthorization(err))

		assert.Equal(t, lifecycle.TypeSilentInstant, f.store.stored("auc-1").AuctionType)
	})

	t.Run("buyer and seller cannot review", func(t *testing.T) {
		f := newFixture(pending("auc-1"))
		for _, actor := range []authz.Actor{buyer, seller} {
			_, err := f.svc.Approve(ctx, actor, "auc-1", lifecycle.ApproveInput{OpeningPrice: dec("9500"), AuctionType: lifecycle.TypeLive})
			assert.True(t, lifecycle.IsAuthorization(err))
			_, err = f.svc.Reject(ctx, actor, "auc-1", "no")
			assert.True(t, lifecycle.IsAuthorization(err))
		}
	})

	t.Run("system timer cannot approve", func(t *testing.T) {
		f := newFixture(pending("auc-1"))
		_, err := f.svc.Approve(ctx, authz.System, "auc-1", lifecycle.ApproveInput{OpeningPrice: dec("9500"), AuctionType: lifecycle.TypeLive})
		assert.True(t, lifecycle.IsAuthorization(err))
	})

	t.Run("unknown id before role", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Approve(ctx, buyer, "missing", lifecycle.ApproveInput{})
		assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	})
}

func TestChangeAuctionType(t *testing.T) {
	f := newFixture(in(lifecycle.StatusScheduled, lifecycle.TypeSilentInstant, false))

	got, err := f.svc.ChangeAuctionType(context.Background(), admin, "auc-1", lifecycle.TypeLive)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.TypeLive, got.AuctionType)
	assert.False(t, got.ApprovedForLive)
	assert.Equal(t, lifecycle.StatusScheduled, got.Status)
	assert.Zero(t, f.stats.invalidated, "status did not change")
	assert.Equal(t, 1, f.pub.count())
}

func TestApproveForLiveNow(t *testing.T) {
	f := newFixture(in(lifecycle.StatusLive, lifecycle.TypeLive, false))

	got, err := f.svc.ApproveForLiveNow(context.Background(), admin, "auc-1")
	require.NoError(t, err)
	assert.True(t, got.ApprovedForLive)
	assert.Equal(t, lifecycle.StatusLive, got.Status)
	assert.Equal(t, lifecycle.TypeLive, got.AuctionType)

	_, err = f.svc.ApproveForLiveNow(context.Background(), admin, "auc-1")
	var ite *lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.True(t, ite.Current.ApprovedForLive)
}

func TestForceStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(in(lifecycle.StatusLive, lifecycle.TypeLive, true))

	got, err := f.svc.ForceStatus(ctx, admin, "auc-1", lifecycle.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusCompleted, got.Status)
	assert.Equal(t, []string{"auc-1"}, f.timer.disarmed)

	again, err := f.svc.ForceStatus(ctx, admin, "auc-1", lifecycle.StatusCompleted)
	require.NoError(t, err, "repeating the same terminal call is a no-op")
	assert.Equal(t, lifecycle.StatusCompleted, again.Status)
	assert.Equal(t, 1, f.pub.count(), "no second side effect")

	_, err = f.svc.ForceStatus(ctx, admin, "auc-1", lifecycle.StatusEnded)
	assert.True(t, lifecycle.IsInvalidTransition(err))

	_, err = f.svc.ForceStatus(ctx, admin, "auc-1", lifecycle.StatusLive)
	assert.True(t, lifecycle.IsValidation(err))

	_, err = f.svc.ForceStatus(ctx, moderator, "auc-1", lifecycle.StatusLive)
	assert.True(t, lifecycle.IsAuthorization(err), "role is checked before the target status")

	_, err = f.svc.ForceStatus(ctx, buyer, "missing", lifecycle.StatusLive)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	trs, err := f.svc.Transitions(ctx, "auc-1")
	require.NoError(t, err)
	assert.Len(t, trs, 1)
}

func TestForceLiveArmsTimer(t *testing.T) {
	f := newFixture(in(lifecycle.StatusScheduled, lifecycle.TypeLive, true))

	got, err := f.svc.ForceLive(context.Background(), admin, "auc-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusLive, got.Status)
	assert.Equal(t, 25*time.Hour, f.timer.armed["auc-1"])
}

func TestExpire(t *testing.T) {
	ctx := context.Background()

	t.Run("before end time", func(t *testing.T) {
		f := newFixture(in(lifecycle.StatusLive, lifecycle.TypeLive, false))
		_, err := f.svc.Expire(ctx, authz.System, "auc-1")
		assert.True(t, lifecycle.IsInvalidTransition(err))
	})

	t.Run("completes when reserve met", func(t *testing.T) {
		a := in(lifecycle.StatusLive, lifecycle.TypeSilentInstant, false)
		a.EndTime = now.Add(-time.Minute)
		a.CurrentBid = dec("12000")
		f := newFixture(a)

		got, err := f.svc.Expire(ctx, authz.System, "auc-1")
		require.NoError(t, err)
		assert.Equal(t, lifecycle.StatusCompleted, got.Status)
		assert.Equal(t, "system", f.pub.got[0].ActorRole)
	})

	t.Run("terminal is a no-op", func(t *testing.T) {
		f := newFixture(in(lifecycle.StatusCancelled, lifecycle.TypeLive, false))
		got, err := f.svc.Expire(ctx, authz.System, "auc-1")
		require.NoError(t, err)
		assert.Equal(t, lifecycle.StatusCancelled, got.Status)
		assert.Zero(t, f.pub.count())
	})

	t.Run("moderator cannot expire", func(t *testing.T) {
		f := newFixture(in(lifecycle.StatusLive, lifecycle.TypeLive, false))
		_, err := f.svc.Expire(ctx, moderator, "auc-1")
		assert.True(t, lifecycle.IsAuthorization(err))
	})
}

func TestActivate(t *testing.T) {
	a := in(lifecycle.StatusScheduled, lifecycle.TypeSilentInstant, false)
	a.StartTime = now.Add(-time.Minute)
	f := newFixture(a)

	got, err := f.svc.Activate(context.Background(), authz.System, "auc-1")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusLive, got.Status)
	assert.Contains(t, f.timer.armed, "auc-1")
}

func TestTimerRacesStaff(t *testing.T) {
	ctx := context.Background()
	overdue := in(lifecycle.StatusLive, lifecycle.TypeLive, false)
	overdue.EndTime = now.Add(-time.Second)
	overdue.CurrentBid = dec("11000")

	t.Run("same terminal state resolves to success", func(t *testing.T) {
		f := newFixture(overdue)
		f.store.beforeUpdate = func(s *fakeStore) {
			s.force("auc-1", func(a *lifecycle.Auction) { a.Status = lifecycle.StatusCompleted })
		}

		got, err := f.svc.ForceStatus(ctx, admin, "auc-1", lifecycle.StatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.StatusCompleted, got.Status)
		assert.Zero(t, f.pub.count(), "the loser publishes nothing")
	})

	t.Run("timer losing to staff is a no-op", func(t *testing.T) {
		f := newFixture(overdue)
		f.store.beforeUpdate = func(s *fakeStore) {
			s.force("auc-1", func(a *lifecycle.Auction) { a.Status = lifecycle.StatusCancelled })
		}

		got, err := f.svc.Expire(ctx, authz.System, "auc-1")
		require.NoError(t, err)
		assert.Equal(t, lifecycle.StatusCancelled, got.Status)
	})

	t.Run("end losing to complete returns the winner", func(t *testing.T) {
		f := newFixture(overdue)
		f.store.beforeUpdate = func(s *fakeStore) {
			s.force("auc-1", func(a *lifecycle.Auction) { a.Status = lifecycle.StatusCompleted })
		}

		got, err := f.svc.ForceStatus(ctx, admin, "auc-1", lifecycle.StatusEnded)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.StatusCompleted, got.Status)
		assert.Equal(t, lifecycle.StatusCompleted, f.store.stored("auc-1").Status)
		assert.Zero(t, f.pub.count(), "the loser publishes nothing")
		assert.Empty(t, f.timer.disarmed)

		trs, err := f.svc.Transitions(ctx, "auc-1")
		require.NoError(t, err)
		assert.Empty(t, trs, "the loser writes no audit row")
	})

	t.Run("staff losing to the timer returns the timer's outcome", func(t *testing.T) {
		f := newFixture(overdue)
		f.store.beforeUpdate = func(s *fakeStore) {
			s.force("auc-1", func(a *lifecycle.Auction) { a.Status = lifecycle.StatusEnded })
		}

		got, err := f.svc.ForceStatus(ctx, admin, "auc-1", lifecycle.StatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, lifecycle.StatusEnded, got.Status)
	})

	t.Run("finish losing to a non-terminal write is a conflict", func(t *testing.T) {
		f := newFixture(overdue)
		f.store.beforeUpdate = func(s *fakeStore) {
			s.force("auc-1", func(a *lifecycle.Auction) { a.AuctionType = lifecycle.TypeSilentInstant })
		}

		_, err := f.svc.ForceStatus(ctx, admin, "auc-1", lifecycle.StatusCancelled)
		var ce *lifecycle.ConflictError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, lifecycle.StatusLive, ce.Current.Status)
	})
}

func TestForceStatusBulk(t *testing.T) {
	ctx := context.Background()
	live := func(id string) lifecycle.Auction {
		a := in(lifecycle.StatusLive, lifecycle.TypeLive, false)
		a.ID = id
		return a
	}
	f := newFixture(live("a"), live("b"), pending("p"))

	res, err := f.svc.ForceStatusBulk(ctx, admin, []string{"a", " b ", "a", "p", "missing"}, lifecycle.StatusCancelled)
	require.NoError(t, err)
	require.Len(t, res, 4, "duplicates collapse")

	assert.Equal(t, "a", res[0].ID)
	require.NoError(t, res[0].Err)
	assert.Equal(t, lifecycle.StatusCancelled, res[0].Auction.Status)
	assert.Equal(t, "b", res[1].ID)
	require.NoError(t, res[1].Err)
	assert.True(t, lifecycle.IsInvalidTransition(res[2].Err))
	assert.ErrorIs(t, res[3].Err, lifecycle.ErrNotFound)

	assert.Equal(t, lifecycle.StatusCancelled, f.store.stored("b").Status)
	assert.Equal(t, lifecycle.StatusPending, f.store.stored("p").Status)
	assert.Equal(t, 2, f.pub.count())
	assert.Equal(t, 2, f.stats.invalidated)

	t.Run("admin only", func(t *testing.T) {
		_, err := f.svc.ForceStatusBulk(ctx, moderator, []string{"a"}, lifecycle.StatusEnded)
		assert.True(t, lifecycle.IsAuthorization(err))
	})

	t.Run("bounds", func(t *testing.T) {
		_, err := f.svc.ForceStatusBulk(ctx, admin, nil, lifecycle.StatusEnded)
		assert.True(t, lifecycle.IsValidation(err))

		ids := make([]string, MaxBulkStatus+1)
		for i := range ids {
			ids[i] = fmt.Sprintf("id-%d", i)
		}
		_, err = f.svc.ForceStatusBulk(ctx, admin, ids, lifecycle.StatusEnded)
		assert.True(t, lifecycle.IsValidation(err))

		_, err = f.svc.ForceStatusBulk(ctx, admin, []string{"a"}, lifecycle.StatusLive)
		assert.True(t, lifecycle.IsValidation(err))
	})
}

func TestApproveRejectRace(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(pending("auc-1"))
		ctx := context.Background()

		var (
			wg         sync.WaitGroup
			approveErr error
			rejectErr  error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, approveErr = f.svc.Approve(ctx, admin, "auc-1", lifecycle.ApproveInput{
				OpeningPrice: dec("9500"),
				AuctionType:  lifecycle.TypeLive,
			})
		}()
		go func() {
			defer wg.Done()
			_, rejectErr = f.svc.Reject(ctx, moderator, "auc-1", "duplicate listing")
		}()
		wg.Wait()

		require.True(t, (approveErr == nil) != (rejectErr == nil), "exactly one wins: approve=%v reject=%v", approveErr, rejectErr)

		stored := f.store.stored("auc-1")
		if approveErr == nil {
			assert.True(t, lifecycle.IsConflict(rejectErr))
			assert.Equal(t, lifecycle.StatusScheduled, stored.Status)
		} else {
			assert.True(t, lifecycle.IsConflict(approveErr))
			assert.Equal(t, lifecycle.StatusRejected, stored.Status)
			assert.False(t, stored.OpeningPrice.Valid)
		}
		assert.Equal(t, int64(2), stored.Version)
		assert.Equal(t, 1, f.pub.count())
	}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	valid := SubmitInput{
		ItemID:      " car-77 ",
		MinimumBid:  dec("20000"),
		MaximumBid:  dec("26000"),
		StartingBid: dec("19000"),
		StartTime:   now.Add(time.Hour),
		EndTime:     now.Add(10 * 24 * time.Hour),
	}

	t.Run("creates pending record", func(t *testing.T) {
		f := newFixture()
		got, err := f.svc.Submit(ctx, seller, valid)
		require.NoError(t, err)
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, "car-77", got.ItemID)
		assert.Equal(t, lifecycle.StatusPending, got.Status)
		assert.Equal(t, lifecycle.TypeSilentInstant, got.AuctionType)
		assert.False(t, got.OpeningPrice.Valid)
		assert.Equal(t, got, f.store.stored(got.ID))
		assert.Equal(t, 1, f.stats.invalidated)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture()
		cases := []struct {
			field  string
			mutate func(in *SubmitInput)
		}{
			{"item_id", func(in *SubmitInput) { in.ItemID = "" }},
			{"minimum_bid", func(in *SubmitInput) { in.MinimumBid = decimal.Zero }},
			{"maximum_bid", func(in *SubmitInput) { in.MaximumBid = dec("100") }},
			{"starting_bid", func(in *SubmitInput) { in.StartingBid = dec("-1") }},
			{"reserve_price", func(in *SubmitInput) { in.ReservePrice = decimal.NewNullDecimal(dec("-5")) }},
			{"end_time", func(in *SubmitInput) { in.EndTime = in.StartTime }},
			{"auction_type", func(in *SubmitInput) { in.AuctionType = "auction" }},
			{"starting_bid", func(in *SubmitInput) { in.StartingBid = dec("19000.001") }},
			{"reserve_price", func(in *SubmitInput) { in.ReservePrice = decimal.NewNullDecimal(dec("21000.125")) }},
		}
		for _, tc := range cases {
			input := valid
			tc.mutate(&input)
			_, err := f.svc.Submit(ctx, seller, input)
			var ve *lifecycle.ValidationError
			require.ErrorAs(t, err, &ve, tc.field)
			assert.Equal(t, tc.field, ve.Field)
		}
	})

	t.Run("only sellers submit", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Submit(ctx, moderator, valid)
		assert.True(t, lifecycle.IsAuthorization(err))
	})
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(pending("a"), pending("b"), in(lifecycle.StatusLive, lifecycle.TypeLive, false))

	got, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got[lifecycle.StatusPending])
	assert.Equal(t, 1, got[lifecycle.StatusLive])
	assert.Equal(t, 0, got[lifecycle.StatusCompleted])
	assert.Len(t, got, 7)
	assert.Equal(t, got, f.stats.cached)

	f.stats.cached = map[lifecycle.Status]int{lifecycle.StatusPending: 99}
	got, err = f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 99, got[lifecycle.StatusPending], "served from cache")

	f.stats.err = errors.New("redis down")
	got, err = f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got[lifecycle.StatusPending], "cache failure falls back to the store")
}

func TestStatsSkipsRefillAfterConcurrentInvalidate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(pending("a"))
	f.stats.afterGeneration = func(s *fakeStats) { _ = s.Invalidate(ctx) }

	got, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got[lifecycle.StatusPending])
	assert.Nil(t, f.stats.cached, "counts read before the invalidation are not cached")

	_, err = f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.NotNil(t, f.stats.cached)
}

func TestTransientErrorsSurface(t *testing.T) {
	f := newFixture(pending("auc-1"))
	f.store.getErr = lifecycle.Transient(errors.New("connection refused"))

	_, err := f.svc.Reject(context.Background(), moderator, "auc-1", "x")
	assert.True(t, lifecycle.IsTransient(err))
	assert.Zero(t, f.pub.count())
}
