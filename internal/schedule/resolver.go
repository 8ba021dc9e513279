package schedule

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/stheno/internal/model"
)

// Resolve picks at most one schedule per player from the set of
// schedules already evaluated active at this tick.
//
// Any active main schedule suppresses every overlay for that player.
// Among candidates of the same role the highest priority wins, ties
// broken by earliest creation time, then lowest id for determinism.
func Resolve(active []model.Schedule) map[int]model.Schedule {
	byPlayer := make(map[int][]model.Schedule)
	for _, s := range active {
		byPlayer[s.PlayerID] = append(byPlayer[s.PlayerID], s)
	}

	winners := make(map[int]model.Schedule, len(byPlayer))
	for playerID, candidates := range byPlayer {
		mains := filterRole(candidates, model.RoleMain)
		if len(mains) > 0 {
			winners[playerID] = best(mains)
			continue
		}

		overlays := filterRole(candidates, model.RoleOverlay)
		if len(overlays) > 0 {
			winners[playerID] = best(overlays)
			continue
		}

		log.Warn().Int("player_id", playerID).Msg("active schedules with no recognized content role")
	}
	return winners
}

func filterRole(in []model.Schedule, role model.ContentRole) []model.Schedule {
	out := make([]model.Schedule, 0, len(in))
	for _, s := range in {
		if s.Role == role {
			out = append(out, s)
		}
	}
	return out
}

func best(candidates []model.Schedule) model.Schedule {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0]
}
