package db

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/stheno/internal/model"
)

func (s *pgStore) GetPlayer(playerID int) (*model.Player, error) {
	var p model.Player
	const q = `
	SELECT id, name, device_id, device_name, status, last_seen_at,
	       created_at, updated_at
	  FROM players
	 WHERE id = $1;`
	if err := s.db.Get(&p, q, playerID); err != nil {
		log.Error().Err(err).Int("player_id", playerID).Msg("GetPlayer failed")
		return nil, err
	}
	return &p, nil
}

func (s *pgStore) UpdatePlayerStatus(playerID int, status string, lastSeen time.Time) error {
	_, err := s.db.Exec(`
	UPDATE players
	   SET status = $2, last_seen_at = $3, updated_at = now()
	 WHERE id = $1;`, playerID, status, lastSeen)
	if err != nil {
		log.Error().Err(err).Int("player_id", playerID).Str("status", status).Msg("UpdatePlayerStatus failed")
	}
	return err
}

// UpdatePlayerDevice writes back a freshly discovered transient device id.
// Casting ids are not stable across network rejoins, so this write-back is
// mandatory whenever name-based re-discovery matches the device.
func (s *pgStore) UpdatePlayerDevice(playerID int, deviceID, deviceName string) error {
	_, err := s.db.Exec(`
	UPDATE players
	   SET device_id = $2, device_name = $3, updated_at = now()
	 WHERE id = $1;`, playerID, deviceID, deviceName)
	if err != nil {
		log.Error().Err(err).Int("player_id", playerID).Str("device_id", deviceID).Msg("UpdatePlayerDevice failed")
	}
	return err
}
