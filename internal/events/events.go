package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"auctiongate/internal/lifecycle"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

const Version = 1

// Event is emitted once per committed transition.
type Event struct {
	Version         int                   `json:"version"`
	ID              string                `json:"id"`
	Event           string                `json:"event"`
	AuctionID       string                `json:"auction_id"`
	FromStatus      lifecycle.Status      `json:"from_status"`
	ToStatus        lifecycle.Status      `json:"to_status"`
	AuctionType     lifecycle.AuctionType `json:"auction_type"`
	ApprovedForLive bool                  `json:"approved_for_live"`
	ActorRole       string                `json:"actor_role"`
	At              time.Time             `json:"at"`
}

func FromTransition(tr lifecycle.Transition) Event {
	return Event{
		Version:         Version,
		ID:              uuid.NewString(),
		Event:           string(tr.Action),
		AuctionID:       tr.AuctionID,
		FromStatus:      tr.FromStatus,
		ToStatus:        tr.ToStatus,
		AuctionType:     tr.ToType,
		ApprovedForLive: tr.ApprovedForLive,
		ActorRole:       tr.ActorRole,
		At:              tr.At,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// RedisPublisher writes to the per-auction pub/sub channel "auc:<id>:events".
type RedisPublisher struct {
	rdc *redis.Client
}

func NewRedisPublisher(rdc *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdc: rdc}
}

func RedisChannel(auctionID string) string {
	return "auc:" + auctionID + ":events"
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdc.Publish(ctx, RedisChannel(ev.AuctionID), payload).Err()
}

type natsConn interface {
	Publish(subj string, data []byte) error
}

var _ natsConn = (*nats.Conn)(nil)

// NatsPublisher fans transitions out on "auction.events.<to_status>";
// settlement subscribes to auction.events.completed.
type NatsPublisher struct {
	nc natsConn
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

func NatsSubject(ev Event) string {
	return "auction.events." + string(ev.ToStatus)
}

func (p *NatsPublisher) Publish(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.nc.Publish(NatsSubject(ev), payload)
}

// Multi publishes to every sink and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
