package model

import "time"

// ContentRole classifies what a schedule's campaign is for. The
// classification itself is made upstream; the engine consumes it as data.
type ContentRole string

const (
	RoleMain    ContentRole = "main"
	RoleOverlay ContentRole = "overlay"
)

type Schedule struct {
	ID           int         `db:"id" json:"id"`
	PlayerID     int         `db:"player_id" json:"player_id"`
	CampaignID   int         `db:"campaign_id" json:"campaign_id"`
	StartDate    time.Time   `db:"start_date" json:"start_date"`
	EndDate      time.Time   `db:"end_date" json:"end_date"`
	StartTime    string      `db:"start_time" json:"start_time"`
	EndTime      *string     `db:"end_time" json:"end_time,omitempty"`
	DaysOfWeek   int         `db:"days_of_week" json:"days_of_week"`
	Priority     int         `db:"priority" json:"priority"`
	IsPersistent bool        `db:"is_persistent" json:"is_persistent"`
	Role         ContentRole `db:"content_role" json:"content_role"`
	PlaybackMode string      `db:"playback_mode" json:"playback_mode"`
	ItemDuration int         `db:"item_duration" json:"item_duration"`
	Active       bool        `db:"active" json:"active"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// DayEnabled reports whether the schedule runs on the given weekday.
// Days are stored as a bitmask with bit 0 = Sunday, matching time.Weekday.
func (s Schedule) DayEnabled(day time.Weekday) bool {
	return s.DaysOfWeek&(1<<uint(day)) != 0
}
