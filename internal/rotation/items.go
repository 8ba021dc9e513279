// Package rotation tracks, per player, which item of the winning
// schedule's campaign is on screen and advances it by elapsed duration.
package rotation

import (
	"fmt"
	"time"

	"github.com/Nixie-Tech-LLC/stheno/internal/cast"
	"github.com/Nixie-Tech-LLC/stheno/internal/model"
)

// Item is one resolved rotation step: the media to dispatch plus the
// effective duration it should stay on screen.
type Item struct {
	ContentID int
	Media     cast.Media
	Duration  time.Duration
}

// ResolveItems turns a campaign into the ordered rotation list for a
// schedule. A usable compiled artifact collapses the whole campaign
// into one indivisible item; otherwise each content item gets its
// duration override, falling back to the schedule's default.
func ResolveItems(s model.Schedule, c *model.Campaign) ([]Item, error) {
	if c == nil || !c.Active {
		return nil, fmt.Errorf("campaign %d inactive or missing", s.CampaignID)
	}

	if c.CompiledUsable() {
		dur := s.ItemDuration
		if c.CompiledDuration != nil {
			dur = *c.CompiledDuration
		}
		return []Item{{
			ContentID: c.ID,
			Media: cast.Media{
				URL:      *c.CompiledURL,
				MimeType: "video/mp4",
				Title:    c.Name,
				Kind:     "video",
			},
			Duration: time.Duration(dur) * time.Second,
		}}, nil
	}

	if len(c.Items) == 0 {
		return nil, fmt.Errorf("campaign %d has no content items", c.ID)
	}

	items := make([]Item, 0, len(c.Items))
	for _, ci := range c.Items {
		dur := s.ItemDuration
		if ci.Duration != nil {
			dur = *ci.Duration
		}
		items = append(items, Item{
			ContentID: ci.ID,
			Media: cast.Media{
				URL:      ci.URL,
				MimeType: ci.MimeType,
				Title:    ci.Name,
				Kind:     ci.Kind,
			},
			Duration: time.Duration(dur) * time.Second,
		})
	}
	return items, nil
}
