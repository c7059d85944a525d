package auctionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"auctiongate/internal/lifecycle"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrVersionMismatch is returned by Update when the stored version moved
// after the caller read the record.
var ErrVersionMismatch = errors.New("auction version mismatch")

// Filter narrows List. Zero values are ignored. StartFrom is inclusive on
// start_time; EndUntil is exclusive on end_time.
type Filter struct {
	Status          lifecycle.Status
	AuctionType     lifecycle.AuctionType
	ApprovedForLive *bool
	StartFrom       time.Time
	EndUntil        time.Time
	Sort            string
	Desc            bool
	Limit           int
	Offset          int
}

var sortColumns = map[string]string{
	"created_at":  "created_at",
	"start_time":  "start_time",
	"end_time":    "end_time",
	"current_bid": "current_bid",
	"status":      "status",
}

// SortAllowed reports whether the list endpoint may order by s.
func SortAllowed(s string) bool {
	_, ok := sortColumns[s]
	return ok
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const auctionColumns = `id, item_id, minimum_bid, maximum_bid, starting_bid,
       opening_price, current_bid, reserve_price, status, auction_type,
       approved_for_live, coalesce(rejection_reason, ''), start_time, end_time,
       created_at, updated_at, version`

type scanner interface {
	Scan(dest ...any) error
}

func scanAuction(row scanner) (lifecycle.Auction, error) {
	var a lifecycle.Auction
	err := row.Scan(&a.ID, &a.ItemID, &a.MinimumBid, &a.MaximumBid, &a.StartingBid,
		&a.OpeningPrice, &a.CurrentBid, &a.ReservePrice, &a.Status, &a.AuctionType,
		&a.ApprovedForLive, &a.RejectionReason, &a.StartTime, &a.EndTime,
		&a.CreatedAt, &a.UpdatedAt, &a.Version)
	return a, err
}

func (s *Store) Get(ctx context.Context, id string) (lifecycle.Auction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id)
	a, err := scanAuction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return lifecycle.Auction{}, lifecycle.ErrNotFound
		}
		return lifecycle.Auction{}, lifecycle.Transient(fmt.Errorf("get auction: %w", err))
	}
	return a, nil
}

func (s *Store) Create(ctx context.Context, a lifecycle.Auction, tr lifecycle.Transition) error {
	const ins = `
	  INSERT INTO auctions (id, item_id, minimum_bid, maximum_bid, starting_bid,
	                        current_bid, reserve_price, status, auction_type,
	                        approved_for_live, start_time, end_time,
	                        created_at, updated_at, version)
	       VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, ins,
			a.ID, a.ItemID, a.MinimumBid, a.MaximumBid, a.StartingBid,
			a.CurrentBid, a.ReservePrice, a.Status, a.AuctionType,
			a.ApprovedForLive, a.StartTime, a.EndTime,
			a.CreatedAt, a.UpdatedAt, a.Version,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return &lifecycle.ConflictError{Operation: string(lifecycle.ActionSubmit), Current: a.State()}
			}
			return fmt.Errorf("insert auction: %w", err)
		}
		return insertTransition(ctx, tx, tr)
	})
}

// Update writes the lifecycle fields of a guarded by an optimistic check
// on expectedVersion and records tr in the same transaction. Bid fields
// belong to the bidding subsystem and are not written here.
func (s *Store) Update(ctx context.Context, a lifecycle.Auction, expectedVersion int64, tr lifecycle.Transition) error {
	const upd = `
	  UPDATE auctions
	     SET opening_price     = coalesce(opening_price, $2),
	         status            = $3,
	         auction_type      = $4,
	         approved_for_live = $5,
	         rejection_reason  = $6,
	         updated_at        = $7,
	         version           = version + 1
	   WHERE id = $1 AND version = $8`

	reason := sql.NullString{String: a.RejectionReason, Valid: a.RejectionReason != ""}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, upd,
			a.ID, a.OpeningPrice, a.Status, a.AuctionType,
			a.ApprovedForLive, reason, a.UpdatedAt, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("update auction: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update auction: %w", err)
		}
		if n == 0 {
			return ErrVersionMismatch
		}
		return insertTransition(ctx, tx, tr)
	})
}

func insertTransition(ctx context.Context, tx *sql.Tx, tr lifecycle.Transition) error {
	const ins = `
	  INSERT INTO auction_transitions (id, auction_id, action, actor_id, actor_role,
	                                   from_status, to_status, from_type, to_type,
	                                   approved_for_live, note, created_at)
	       VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := tx.ExecContext(ctx, ins,
		tr.ID, tr.AuctionID, tr.Action, tr.ActorID, tr.ActorRole,
		tr.FromStatus, tr.ToStatus, tr.FromType, tr.ToType,
		tr.ApprovedForLive, tr.Note, tr.At,
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return lifecycle.Transient(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		if errors.Is(err, ErrVersionMismatch) || lifecycle.IsConflict(err) {
			return err
		}
		return lifecycle.Transient(err)
	}
	if err := tx.Commit(); err != nil {
		return lifecycle.Transient(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *Store) List(ctx context.Context, f Filter) ([]lifecycle.Auction, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	if f.AuctionType != "" {
		where = append(where, "auction_type = "+arg(f.AuctionType))
	}
	if f.ApprovedForLive != nil {
		where = append(where, "approved_for_live = "+arg(*f.ApprovedForLive))
	}
	if !f.StartFrom.IsZero() {
		where = append(where, "start_time >= "+arg(f.StartFrom))
	}
	if !f.EndUntil.IsZero() {
		where = append(where, "end_time < "+arg(f.EndUntil))
	}

	q := `SELECT ` + auctionColumns + ` FROM auctions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	col, ok := sortColumns[f.Sort]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if f.Desc {
		dir = "DESC"
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	q += " ORDER BY " + col + " " + dir + ", id LIMIT " + arg(limit) + " OFFSET " + arg(f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, lifecycle.Transient(fmt.Errorf("list auctions: %w", err))
	}
	defer rows.Close()

	list := make([]lifecycle.Auction, 0, limit)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, lifecycle.Transient(fmt.Errorf("scan auction: %w", err))
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, lifecycle.Transient(err)
	}
	return list, nil
}

func (s *Store) CountByStatus(ctx context.Context) (map[lifecycle.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM auctions GROUP BY status`)
	if err != nil {
		return nil, lifecycle.Transient(fmt.Errorf("count auctions: %w", err))
	}
	defer rows.Close()

	out := make(map[lifecycle.Status]int)
	for rows.Next() {
		var (
			st lifecycle.Status
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, lifecycle.Transient(err)
		}
		out[st] = n
	}
	if err := rows.Err(); err != nil {
		return nil, lifecycle.Transient(err)
	}
	return out, nil
}

func (s *Store) Transitions(ctx context.Context, auctionID string) ([]lifecycle.Transition, error) {
	const q = `
	  SELECT id, auction_id, action, actor_id, actor_role, from_status, to_status,
	         from_type, to_type, approved_for_live, note, created_at
	    FROM auction_transitions
	   WHERE auction_id = $1
	   ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, auctionID)
	if err != nil {
		return nil, lifecycle.Transient(fmt.Errorf("list transitions: %w", err))
	}
	defer rows.Close()

	var out []lifecycle.Transition
	for rows.Next() {
		var tr lifecycle.Transition
		if err := rows.Scan(&tr.ID, &tr.AuctionID, &tr.Action, &tr.ActorID, &tr.ActorRole,
			&tr.FromStatus, &tr.ToStatus, &tr.FromType, &tr.ToType,
			&tr.ApprovedForLive, &tr.Note, &tr.At); err != nil {
			return nil, lifecycle.Transient(err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, lifecycle.Transient(err)
	}
	return out, nil
}

// DueForActivation lists scheduled auctions whose start_time has passed.
func (s *Store) DueForActivation(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const q = `SELECT id FROM auctions WHERE status = 'scheduled' AND start_time <= $1 ORDER BY start_time LIMIT $2`
	return s.ids(ctx, q, now, limit)
}

// DueForExpiry lists live auctions whose end_time has passed.
func (s *Store) DueForExpiry(ctx context.Context, now time.Time, limit int) ([]string, error) {
	const q = `SELECT id FROM auctions WHERE status = 'live' AND end_time <= $1 ORDER BY end_time LIMIT $2`
	return s.ids(ctx, q, now, limit)
}

func (s *Store) ids(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, lifecycle.Transient(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, lifecycle.Transient(err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, lifecycle.Transient(err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
