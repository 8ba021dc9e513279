package schedule

import (
	"testing"
	"time"

	"github.com/Nixie-Tech-LLC/stheno/internal/model"
)

func mkSchedule(id, playerID, priority int, role model.ContentRole, createdAt time.Time) model.Schedule {
	return model.Schedule{
		ID:        id,
		PlayerID:  playerID,
		Priority:  priority,
		Role:      role,
		CreatedAt: createdAt,
	}
}

func TestHighestPriorityMainWins(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	winners := Resolve([]model.Schedule{
		mkSchedule(1, 10, 3, model.RoleMain, base),
		mkSchedule(2, 10, 5, model.RoleMain, base.Add(time.Hour)),
	})

	w, ok := winners[10]
	if !ok {
		t.Fatal("expected a winner for player 10")
	}
	if w.ID != 2 {
		t.Errorf("expected priority-5 schedule 2 to win, got %d", w.ID)
	}
}

func TestMainSuppressesOverlay(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	winners := Resolve([]model.Schedule{
		mkSchedule(1, 10, 1, model.RoleMain, base),
		mkSchedule(2, 10, 9, model.RoleOverlay, base),
	})

	w := winners[10]
	if w.ID != 1 {
		t.Errorf("main should suppress overlay regardless of priority, got schedule %d", w.ID)
	}
}

func TestOverlayWinsWhenNoMain(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	winners := Resolve([]model.Schedule{
		mkSchedule(2, 10, 1, model.RoleOverlay, base),
	})

	if winners[10].ID != 2 {
		t.Errorf("expected overlay schedule 2, got %d", winners[10].ID)
	}
}

func TestPriorityTieBrokenByCreationTime(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	winners := Resolve([]model.Schedule{
		mkSchedule(7, 10, 5, model.RoleMain, base.Add(time.Hour)),
		mkSchedule(8, 10, 5, model.RoleMain, base),
	})

	if winners[10].ID != 8 {
		t.Errorf("expected earliest-created schedule 8, got %d", winners[10].ID)
	}
}

func TestPlayersResolvedIndependently(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	winners := Resolve([]model.Schedule{
		mkSchedule(1, 10, 1, model.RoleMain, base),
		mkSchedule(2, 20, 1, model.RoleOverlay, base),
	})

	if len(winners) != 2 {
		t.Fatalf("expected winners for both players, got %d", len(winners))
	}
	if winners[10].ID != 1 || winners[20].ID != 2 {
		t.Errorf("unexpected winners: %v", winners)
	}
}
