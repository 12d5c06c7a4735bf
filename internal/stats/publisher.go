package stats

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/doctorquest/quiz/pkg/http/ws"
)

// DefaultChannel carries refreshed snapshots between instances.
const DefaultChannel = "stats:updates"

// Publisher sends snapshots over Redis Pub/Sub.
type Publisher struct {
	redis   *redis.Client
	channel string
}

// NewPublisher creates a Pub/Sub publisher on channel (DefaultChannel when empty).
func NewPublisher(client *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{redis: client, channel: channel}
}

// Publish implements SnapshotPublisher.
func (p *Publisher) Publish(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return p.redis.Publish(ctx, p.channel, payload).Err()
}

// UserSender delivers a message to every connection bound to a user.
type UserSender interface {
	SendToUser(userID uuid.UUID, msg ws.Message) error
}

// SnapshotSink stores snapshots seen on the update channel, so sessions that
// did not record the answer still serve current statistics.
type SnapshotSink interface {
	ApplySnapshot(snap Snapshot)
}

// Broadcaster listens for snapshot updates, hands them to the sink and forwards
// them to the user's WebSocket connections on this instance.
type Broadcaster struct {
	redis   *redis.Client
	hub     UserSender
	sink    SnapshotSink
	channel string
	logger  zerolog.Logger
}

// NewBroadcaster creates a Pub/Sub powered stats broadcaster. sink may be nil.
func NewBroadcaster(client *redis.Client, hub UserSender, sink SnapshotSink, channel string, logger zerolog.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Broadcaster{
		redis:   client,
		hub:     hub,
		sink:    sink,
		channel: channel,
		logger:  logger.With().Str("component", "stats_broadcaster").Logger(),
	}
}

// Run subscribes to the update channel and blocks until the context is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.redis == nil || (b.hub == nil && b.sink == nil) {
		return nil
	}

	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(msg.Payload)
		}
	}
}

func (b *Broadcaster) forward(payload string) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		b.logger.Warn().Err(err).Msg("failed to decode stats update payload")
		return
	}

	if b.sink != nil {
		b.sink.ApplySnapshot(snap)
	}
	if b.hub == nil {
		return
	}

	msg, err := ws.NewMessage(ws.TypeStatsUpdate, ws.StatsUpdatePayload{
		UserID:        snap.UserID.String(),
		TotalAnswered: snap.TotalAnswered,
		TotalCorrect:  snap.TotalCorrect,
		Accuracy:      snap.Accuracy(),
		CurrentStreak: snap.CurrentStreak,
		LongestStreak: snap.LongestStreak,
	})
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to marshal stats WS payload")
		return
	}

	if err := b.hub.SendToUser(snap.UserID, msg); err != nil && !errors.Is(err, ws.ErrConnectionNotFound) {
		b.logger.Warn().Err(err).Str("user_id", snap.UserID.String()).Msg("failed to push stats update")
	}
}
