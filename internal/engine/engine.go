// Package engine runs the playback orchestrator: on a fixed tick it
// evaluates schedules, resolves one winner per player, consults the
// rotation tracker and drives the casting transport.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Nixie-Tech-LLC/stheno/internal/cast"
	"github.com/Nixie-Tech-LLC/stheno/internal/db"
	"github.com/Nixie-Tech-LLC/stheno/internal/device"
	"github.com/Nixie-Tech-LLC/stheno/internal/livestatus"
	"github.com/Nixie-Tech-LLC/stheno/internal/model"
	"github.com/Nixie-Tech-LLC/stheno/internal/rotation"
	"github.com/Nixie-Tech-LLC/stheno/internal/schedule"
	"github.com/Nixie-Tech-LLC/stheno/internal/telemetry"
)

// Per-player engine states.
type PlayerState string

const (
	StateNoActiveSchedule PlayerState = "no-active-schedule"
	StateDispatching      PlayerState = "dispatching"
	StatePlaying          PlayerState = "playing"
	StateRotating         PlayerState = "rotating"
	StateFailed           PlayerState = "failed"
)

// PlayerStatus is the introspectable per-player view backing the ops API.
type PlayerStatus struct {
	PlayerID       int         `json:"player_id"`
	State          PlayerState `json:"state"`
	ScheduleID     int         `json:"schedule_id,omitempty"`
	ContentID      int         `json:"content_id,omitempty"`
	LastError      string      `json:"last_error,omitempty"`
	LastDispatchAt *time.Time  `json:"last_dispatch_at,omitempty"`
}

type Engine struct {
	store      db.Store
	evaluator  schedule.Evaluator
	tracker    *rotation.Tracker
	devices    *device.Manager
	dispatcher *cast.Dispatcher
	events     telemetry.Publisher
	notifier   *livestatus.Notifier

	tick    time.Duration
	workers int
	now     func() time.Time

	kick chan struct{}

	mu       sync.Mutex
	players  map[int]*PlayerStatus
	badConfs map[int]struct{}
}

func New(store db.Store, evaluator schedule.Evaluator, tracker *rotation.Tracker,
	devices *device.Manager, dispatcher *cast.Dispatcher,
	events telemetry.Publisher, notifier *livestatus.Notifier,
	tick time.Duration, workers int) *Engine {
	return &Engine{
		store:      store,
		evaluator:  evaluator,
		tracker:    tracker,
		devices:    devices,
		dispatcher: dispatcher,
		events:     events,
		notifier:   notifier,
		tick:       tick,
		workers:    workers,
		now:        time.Now,
		kick:       make(chan struct{}, 1),
		players:    make(map[int]*PlayerStatus),
		badConfs:   make(map[int]struct{}),
	}
}

// Run drives ticks until the context is cancelled. In-flight work is
// individually timeout-bounded, so shutdown lets the current tick
// finish naturally.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	e.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("engine loop stopped")
			return
		case <-e.kick:
			e.Tick(ctx)
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// RequestTick schedules an immediate out-of-band tick. Coalesces if one
// is already pending.
func (e *Engine) RequestTick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Tick processes one batch. All evaluation uses the single captured
// "now" so no two players are judged against different instants.
func (e *Engine) Tick(ctx context.Context) {
	now := e.now()

	all, err := e.store.ActiveSchedules(now)
	if err != nil {
		log.Error().Err(err).Msg("tick aborted: could not load schedules")
		return
	}

	active := make([]model.Schedule, 0, len(all))
	for _, s := range all {
		ok, err := e.evaluator.ActiveAt(s, now)
		if err != nil {
			e.warnBadConfigOnce(s.ID, err)
			continue
		}
		if ok {
			active = append(active, s)
		}
	}

	winners := schedule.Resolve(active)
	e.markIdlePlayers(winners)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for playerID, winner := range winners {
		playerID, winner := playerID, winner
		g.Go(func() error {
			// Errors are contained per player; a dead device never
			// aborts the rest of the batch.
			e.processPlayer(gctx, playerID, winner, now)
			return nil
		})
	}
	_ = g.Wait()

	log.Debug().
		Int("schedules", len(all)).
		Int("active", len(active)).
		Int("winners", len(winners)).
		Time("now", now).
		Msg("tick complete")
}

// markIdlePlayers records no-active-schedule for players that had a
// winner before but not this tick. No stop command is sent: the last
// content stays on screen until superseded, avoiding flicker across
// brief schedule gaps.
func (e *Engine) markIdlePlayers(winners map[int]model.Schedule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for playerID, st := range e.players {
		if _, stillActive := winners[playerID]; !stillActive && st.State != StateNoActiveSchedule {
			st.State = StateNoActiveSchedule
			st.ScheduleID = 0
		}
	}
}

func (e *Engine) processPlayer(ctx context.Context, playerID int, winner model.Schedule, now time.Time) {
	campaign, err := e.store.GetCampaign(winner.CampaignID)
	if err != nil {
		log.Warn().Err(err).Int("player_id", playerID).Int("schedule_id", winner.ID).
			Msg("campaign lookup failed, schedule skipped this tick")
		return
	}

	items, err := rotation.ResolveItems(winner, campaign)
	if err != nil {
		log.Warn().Err(err).Int("player_id", playerID).Int("schedule_id", winner.ID).
			Msg("no dispatchable content, schedule skipped this tick")
		return
	}

	decision := e.tracker.Evaluate(playerID, winner, items, now)
	if !decision.Dispatch {
		e.setState(playerID, func(st *PlayerStatus) {
			st.State = StatePlaying
			st.ScheduleID = winner.ID
			st.ContentID = decision.Item.ContentID
		})
		return
	}

	phase := StateRotating
	if decision.Restarted {
		phase = StateDispatching
	}
	e.setState(playerID, func(st *PlayerStatus) {
		st.State = phase
		st.ScheduleID = winner.ID
		st.ContentID = decision.Item.ContentID
	})

	player, err := e.store.GetPlayer(playerID)
	if err != nil {
		e.recordFailure(ctx, playerID, winner, decision.Item, now, 0, err)
		return
	}

	start := e.now()
	handle, deviceID, err := e.devices.Resolve(ctx, player)
	if err != nil {
		if device.IsBreakerOpen(err) {
			log.Debug().Int("player_id", playerID).Msg("connection refused by open breaker")
		}
		if uerr := e.store.UpdatePlayerStatus(playerID, model.PlayerOffline, now); uerr != nil {
			log.Error().Err(uerr).Int("player_id", playerID).Msg("offline write-back failed")
		}
		e.recordFailure(ctx, playerID, winner, decision.Item, now, e.now().Sub(start), err)
		return
	}

	err = e.dispatcher.Dispatch(deviceID, handle, decision.Item.Media)
	took := e.now().Sub(start)
	e.events.Publish(telemetry.NewEvent(winner.ID, playerID, decision.Item.ContentID, now, took, err))
	if err != nil {
		e.recordDispatchFailure(ctx, playerID, winner, decision.Item, now, err)
		return
	}

	if uerr := e.store.UpdatePlayerStatus(playerID, model.PlayerOnline, now); uerr != nil {
		log.Error().Err(uerr).Int("player_id", playerID).Msg("online write-back failed")
	}

	dispatchedAt := e.now()
	e.setState(playerID, func(st *PlayerStatus) {
		st.State = StatePlaying
		st.ScheduleID = winner.ID
		st.ContentID = decision.Item.ContentID
		st.LastError = ""
		st.LastDispatchAt = &dispatchedAt
	})
	e.notifier.Publish(ctx, livestatus.Status{
		PlayerID:   playerID,
		State:      string(StatePlaying),
		ScheduleID: winner.ID,
		ContentID:  decision.Item.ContentID,
		At:         now,
	})

	log.Info().
		Int("player_id", playerID).
		Int("schedule_id", winner.ID).
		Int("content_id", decision.Item.ContentID).
		Dur("took", took).
		Bool("restarted", decision.Restarted).
		Msg("content dispatched")
}

// recordFailure covers connection-stage failures, which also emit a
// telemetry event since no dispatch will follow.
func (e *Engine) recordFailure(ctx context.Context, playerID int, winner model.Schedule,
	item rotation.Item, now time.Time, took time.Duration, err error) {
	log.Error().Err(err).Int("player_id", playerID).Int("schedule_id", winner.ID).
		Msg("player processing failed")
	e.events.Publish(telemetry.NewEvent(winner.ID, playerID, item.ContentID, now, took, err))
	e.failState(ctx, playerID, winner, item, now, err)
}

// recordDispatchFailure covers post-connection failures; the telemetry
// event was already emitted with the dispatch timing.
func (e *Engine) recordDispatchFailure(ctx context.Context, playerID int, winner model.Schedule,
	item rotation.Item, now time.Time, err error) {
	log.Error().Err(err).Int("player_id", playerID).Int("schedule_id", winner.ID).
		Msg("dispatch failed")
	e.failState(ctx, playerID, winner, item, now, err)
}

func (e *Engine) failState(ctx context.Context, playerID int, winner model.Schedule,
	item rotation.Item, now time.Time, err error) {
	e.setState(playerID, func(st *PlayerStatus) {
		st.State = StateFailed
		st.ScheduleID = winner.ID
		st.ContentID = item.ContentID
		st.LastError = err.Error()
	})
	e.notifier.Publish(ctx, livestatus.Status{
		PlayerID:   playerID,
		State:      string(StateFailed),
		ScheduleID: winner.ID,
		ContentID:  item.ContentID,
		At:         now,
	})
}

func (e *Engine) setState(playerID int, mutate func(*PlayerStatus)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.players[playerID]
	if !ok {
		st = &PlayerStatus{PlayerID: playerID, State: StateNoActiveSchedule}
		e.players[playerID] = st
	}
	mutate(st)
}

func (e *Engine) warnBadConfigOnce(scheduleID int, err error) {
	e.mu.Lock()
	_, seen := e.badConfs[scheduleID]
	if !seen {
		e.badConfs[scheduleID] = struct{}{}
	}
	e.mu.Unlock()
	if !seen {
		log.Warn().Err(err).Int("schedule_id", scheduleID).
			Msg("schedule has no usable time window, treated as inactive")
	}
}

// PlayerStates returns a copy of the per-player view.
func (e *Engine) PlayerStates() []PlayerStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PlayerStatus, 0, len(e.players))
	for _, st := range e.players {
		out = append(out, *st)
	}
	return out
}

// StopPlayer clears rotation state and best-effort stops whatever the
// player's device is showing. The loop itself never auto-stops content;
// this is the explicit operator path.
func (e *Engine) StopPlayer(ctx context.Context, playerID int) error {
	player, err := e.store.GetPlayer(playerID)
	if err != nil {
		return err
	}

	e.tracker.Clear(playerID)
	if player.DeviceID != nil && *player.DeviceID != "" {
		e.devices.Disconnect(*player.DeviceID)
		e.dispatcher.Forget(*player.DeviceID)
	}
	e.setState(playerID, func(st *PlayerStatus) {
		st.State = StateNoActiveSchedule
		st.ScheduleID = 0
		st.ContentID = 0
	})
	e.notifier.Publish(ctx, livestatus.Status{
		PlayerID: playerID,
		State:    string(StateNoActiveSchedule),
		At:       e.now(),
	})
	return nil
}
