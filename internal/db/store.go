// exposes a Store interface that is passed to the engine components
package db

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Nixie-Tech-LLC/stheno/internal/model"
)

type Store interface {
	// schedule functions
	ActiveSchedules(asOf time.Time) ([]model.Schedule, error)
	GetCampaign(campaignID int) (*model.Campaign, error)

	// player functions
	GetPlayer(playerID int) (*model.Player, error)
	UpdatePlayerStatus(playerID int, status string, lastSeen time.Time) error
	UpdatePlayerDevice(playerID int, deviceID, deviceName string) error
}

type pgStore struct {
	db *sqlx.DB
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

func NewStore(conn *sqlx.DB) Store {
	return &pgStore{db: conn}
}
