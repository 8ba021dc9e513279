package db

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/stheno/internal/model"
)

// ActiveSchedules returns every enabled schedule whose date range covers
// asOf. Time-of-day and weekday filtering happens in the evaluator, not
// here: the same row set is judged against a single captured "now".
func (s *pgStore) ActiveSchedules(asOf time.Time) ([]model.Schedule, error) {
	var out []model.Schedule
	const q = `
	SELECT id, player_id, campaign_id, start_date, end_date,
	       start_time, end_time, days_of_week, priority, is_persistent,
	       content_role, playback_mode, item_duration, active,
	       created_at, updated_at
	  FROM schedules
	 WHERE active = true
	   AND start_date <= $1
	   AND end_date >= $1
	 ORDER BY player_id, priority DESC, created_at;`
	if err := s.db.Select(&out, q, asOf); err != nil {
		log.Error().Err(err).Msg("ActiveSchedules failed")
		return nil, err
	}
	return out, nil
}

func (s *pgStore) GetCampaign(campaignID int) (*model.Campaign, error) {
	var c model.Campaign
	const q = `
	SELECT id, name, active, compiled_url, compiled_duration,
	       compiled_ready, compiled_stale, created_at, updated_at
	  FROM campaigns
	 WHERE id = $1;`
	if err := s.db.Get(&c, q, campaignID); err != nil {
		log.Error().Err(err).Int("campaign_id", campaignID).Msg("GetCampaign failed")
		return nil, err
	}

	const itemsQ = `
	SELECT id, campaign_id, name, kind, url, mime_type, position, duration
	  FROM content_items
	 WHERE campaign_id = $1
	 ORDER BY position;`
	if err := s.db.Select(&c.Items, itemsQ, campaignID); err != nil {
		log.Error().Err(err).Int("campaign_id", campaignID).Msg("GetCampaign items failed")
		return nil, err
	}
	return &c, nil
}
