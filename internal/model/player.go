package model

import "time"

const (
	PlayerOnline  = "online"
	PlayerOffline = "offline"
)

// Player represents a networked presentation device. DeviceID is the
// transient casting id last seen for the physical device; it is not
// stable across network rejoins, so the engine writes it back whenever
// a name-based re-discovery finds the device under a new id.
type Player struct {
	ID         int        `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	DeviceID   *string    `db:"device_id" json:"device_id,omitempty"`
	DeviceName *string    `db:"device_name" json:"device_name,omitempty"`
	Status     string     `db:"status" json:"status"`
	LastSeenAt *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}
