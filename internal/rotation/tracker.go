package rotation

import (
	"sync"
	"time"

	"github.com/Nixie-Tech-LLC/stheno/internal/model"
)

// Decision is the tracker's verdict for one player at one tick.
type Decision struct {
	// Dispatch is set when the item should be (re)sent to the device.
	Dispatch bool
	Item     Item
	// Restarted is set when the winning schedule changed and playback
	// starts over from the first item.
	Restarted bool
}

type state struct {
	scheduleID int
	itemIdx    int
	startedAt  time.Time
	dispatched bool
}

// Tracker owns per-player rotation state. State is ephemeral: a restart
// simply re-derives it at the next tick.
type Tracker struct {
	mu       sync.Mutex
	byPlayer map[int]*state
}

func NewTracker() *Tracker {
	return &Tracker{byPlayer: make(map[int]*state)}
}

// Evaluate compares the winning schedule against the player's current
// rotation state.
//
// On a schedule change (including main/overlay switches) the first item
// dispatches immediately and the timer resets — interrupted playlists
// are never resumed mid-rotation. Otherwise the current item rotates to
// the next one when its effective duration has elapsed, at most one
// step per tick. A persistent overlay, once on screen, is never rotated
// away by duration.
func (t *Tracker) Evaluate(playerID int, s model.Schedule, items []Item, now time.Time) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(items) == 0 {
		return Decision{}
	}

	st, ok := t.byPlayer[playerID]
	if !ok || st.scheduleID != s.ID {
		t.byPlayer[playerID] = &state{
			scheduleID: s.ID,
			itemIdx:    0,
			startedAt:  now,
			dispatched: true,
		}
		return Decision{Dispatch: true, Item: items[0], Restarted: true}
	}

	// The content list can shrink between ticks while the schedule stays
	// the same.
	if st.itemIdx >= len(items) {
		st.itemIdx = 0
	}
	current := items[st.itemIdx]

	if s.Role == model.RoleOverlay && s.IsPersistent {
		return Decision{Item: current}
	}

	if now.Sub(st.startedAt) >= current.Duration {
		st.itemIdx = (st.itemIdx + 1) % len(items)
		st.startedAt = now
		return Decision{Dispatch: true, Item: items[st.itemIdx]}
	}

	return Decision{Item: current}
}

// Clear drops a player's rotation state so the next winner starts from
// its first item.
func (t *Tracker) Clear(playerID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byPlayer, playerID)
}

// Current reports the player's schedule and item index for introspection.
func (t *Tracker) Current(playerID int) (scheduleID, itemIdx int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, found := t.byPlayer[playerID]
	if !found {
		return 0, 0, false
	}
	return st.scheduleID, st.itemIdx, true
}
