package model

import "time"

type Campaign struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Compiled artifact metadata, if a pre-rendered video exists for the
	// whole campaign. Produced by the compiler subsystem; consumed here
	// only as a ready/stale flag plus duration.
	CompiledURL      *string `db:"compiled_url" json:"compiled_url,omitempty"`
	CompiledDuration *int    `db:"compiled_duration" json:"compiled_duration,omitempty"`
	CompiledReady    bool    `db:"compiled_ready" json:"compiled_ready"`
	CompiledStale    bool    `db:"compiled_stale" json:"compiled_stale"`

	Items []ContentItem `db:"-" json:"items,omitempty"`
}

// CompiledUsable reports whether the compiled artifact should drive
// playback instead of the individual items.
func (c Campaign) CompiledUsable() bool {
	return c.CompiledReady && !c.CompiledStale && c.CompiledURL != nil
}

type ContentItem struct {
	ID         int     `db:"id" json:"id"`
	CampaignID int     `db:"campaign_id" json:"campaign_id"`
	Name       string  `db:"name" json:"name"`
	Kind       string  `db:"kind" json:"kind"` // video | image | audio
	URL        string  `db:"url" json:"url"`
	MimeType   string  `db:"mime_type" json:"mime_type"`
	Position   int     `db:"position" json:"position"`
	Duration   *int    `db:"duration" json:"duration,omitempty"`
}
