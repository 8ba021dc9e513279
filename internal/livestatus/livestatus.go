// Package livestatus pushes best-effort playback status notifications
// to a Redis pub/sub channel for UI consumers. No delivery guarantee.
package livestatus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const channel = "stheno:status"

type Status struct {
	PlayerID   int       `json:"player_id"`
	State      string    `json:"state"`
	ScheduleID int       `json:"schedule_id,omitempty"`
	ContentID  int       `json:"content_id,omitempty"`
	At         time.Time `json:"at"`
}

type Notifier struct {
	rdb *redis.Client
}

// New returns a notifier; an empty address yields a no-op notifier.
func New(addr, username, password string) *Notifier {
	if addr == "" {
		return &Notifier{}
	}
	return &Notifier{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       0,
	})}
}

// Publish fans the status out; failures are logged and swallowed.
func (n *Notifier) Publish(ctx context.Context, st Status) {
	if n.rdb == nil {
		return
	}
	payload, err := json.Marshal(st)
	if err != nil {
		log.Error().Err(err).Msg("marshal live status failed")
		return
	}
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		log.Warn().Err(err).Int("player_id", st.PlayerID).Msg("live status publish failed")
	}
}

func (n *Notifier) Close() {
	if n.rdb != nil {
		_ = n.rdb.Close()
	}
}
