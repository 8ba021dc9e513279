package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Nixie-Tech-LLC/stheno/internal/cast"
	"github.com/Nixie-Tech-LLC/stheno/internal/device"
	"github.com/Nixie-Tech-LLC/stheno/internal/discovery"
	"github.com/Nixie-Tech-LLC/stheno/internal/livestatus"
	"github.com/Nixie-Tech-LLC/stheno/internal/model"
	"github.com/Nixie-Tech-LLC/stheno/internal/rotation"
	"github.com/Nixie-Tech-LLC/stheno/internal/schedule"
	"github.com/Nixie-Tech-LLC/stheno/internal/telemetry"
)

type statusWrite struct {
	playerID int
	status   string
}

type fakeStore struct {
	mu        sync.Mutex
	schedules []model.Schedule
	campaigns map[int]*model.Campaign
	players   map[int]*model.Player

	statusWrites []statusWrite
}

func (f *fakeStore) ActiveSchedules(time.Time) ([]model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Schedule(nil), f.schedules...), nil
}

func (f *fakeStore) GetCampaign(campaignID int) (*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok {
		return nil, errors.New("campaign not found")
	}
	return c, nil
}

func (f *fakeStore) GetPlayer(playerID int) (*model.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[playerID]
	if !ok {
		return nil, errors.New("player not found")
	}
	return p, nil
}

func (f *fakeStore) UpdatePlayerStatus(playerID int, status string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusWrites = append(f.statusWrites, statusWrite{playerID: playerID, status: status})
	return nil
}

func (f *fakeStore) UpdatePlayerDevice(playerID int, deviceID, deviceName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.players[playerID]; ok {
		p.DeviceID, p.DeviceName = &deviceID, &deviceName
	}
	return nil
}

func (f *fakeStore) lastStatus(playerID int) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.statusWrites) - 1; i >= 0; i-- {
		if f.statusWrites[i].playerID == playerID {
			return f.statusWrites[i].status, true
		}
	}
	return "", false
}

type fixedScanner struct {
	records []cast.DeviceRecord
}

func (s fixedScanner) Source() string { return "castdns" }

func (s fixedScanner) Scan(context.Context, time.Duration) ([]cast.DeviceRecord, error) {
	return s.records, nil
}

// recHandle reports idle so every tracker-approved dispatch reaches Load.
type recHandle struct {
	mu    sync.Mutex
	loads []string
}

func (h *recHandle) Ready() error { return nil }

func (h *recHandle) Load(media cast.Media) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loads = append(h.loads, media.URL)
	return nil
}

func (h *recHandle) Play() error { return nil }

func (h *recHandle) Pause() error { return nil }

func (h *recHandle) Stop() error { return nil }

func (h *recHandle) SetVolume(float64) error { return nil }

func (h *recHandle) Status() (*cast.Status, error) {
	return &cast.Status{State: cast.StateIdle}, nil
}

func (h *recHandle) Close(bool) error { return nil }

func (h *recHandle) loaded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.loads...)
}

type fixedConnector struct {
	handle cast.Handle
	err    error
}

func (c fixedConnector) Connect(context.Context, cast.DeviceRecord) (cast.Handle, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.handle, nil
}

type recPublisher struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (p *recPublisher) Publish(ev telemetry.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recPublisher) Close() {}

func (p *recPublisher) all() []telemetry.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]telemetry.Event(nil), p.events...)
}

func devRef(id, name string) (*string, *string) { return &id, &name }

// newFixture wires a player with a weekday main schedule and an
// always-on persistent overlay against an in-memory device network.
func newFixture(connector cast.Connector) (*Engine, *fakeStore, *recPublisher) {
	end18 := "18:00:00"
	midnight := "00:00:00"
	weekdays := 0
	for d := time.Monday; d <= time.Friday; d++ {
		weekdays |= 1 << uint(d)
	}
	allDays := 0x7F

	deviceID, deviceName := devRef("dev-1", "Lobby TV")
	store := &fakeStore{
		schedules: []model.Schedule{
			{
				ID: 1, PlayerID: 7, CampaignID: 1,
				StartDate: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
				EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
				StartTime: "08:00:00", EndTime: &end18,
				DaysOfWeek: weekdays, Priority: 1, Role: model.RoleMain,
				ItemDuration: 10, Active: true,
				CreatedAt: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
			},
			{
				ID: 2, PlayerID: 7, CampaignID: 2,
				StartDate: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
				EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
				StartTime: "00:00:00", EndTime: &midnight,
				DaysOfWeek: allDays, Priority: 0, Role: model.RoleOverlay,
				IsPersistent: true, ItemDuration: 30, Active: true,
				CreatedAt: time.Date(2024, 12, 2, 0, 0, 0, 0, time.UTC),
			},
		},
		campaigns: map[int]*model.Campaign{
			1: {ID: 1, Name: "daytime loop", Active: true, Items: []model.ContentItem{
				{ID: 101, CampaignID: 1, Name: "intro", Kind: "video", URL: "https://cdn.example.com/intro.mp4", MimeType: "video/mp4", Position: 0},
				{ID: 102, CampaignID: 1, Name: "promo", Kind: "video", URL: "https://cdn.example.com/promo.mp4", MimeType: "video/mp4", Position: 1},
			}},
			2: {ID: 2, Name: "house ad", Active: true, Items: []model.ContentItem{
				{ID: 201, CampaignID: 2, Name: "house", Kind: "video", URL: "https://cdn.example.com/house.mp4", MimeType: "video/mp4", Position: 0},
			}},
		},
		players: map[int]*model.Player{
			7: {ID: 7, Name: "lobby", DeviceID: deviceID, DeviceName: deviceName},
		},
	}

	dir := discovery.New(time.Millisecond, fixedScanner{records: []cast.DeviceRecord{
		{ID: "dev-1", Name: "Lobby TV", Addr: "192.0.2.10", Port: 8009},
	}})
	mgr := device.NewManager(dir, connector, store, time.Second, 3, time.Minute)
	events := &recPublisher{}
	eng := New(store, schedule.Evaluator{Grace: 30 * time.Second},
		rotation.NewTracker(), mgr, cast.NewDispatcher(0),
		events, livestatus.New("", "", ""), time.Minute, 4)
	return eng, store, events
}

// 2025-01-01 is a Wednesday.
func wednesdayAt(hour, min int) time.Time {
	return time.Date(2025, 1, 1, hour, min, 0, 0, time.UTC)
}

func TestTickDispatchesHighestPriorityWindow(t *testing.T) {
	handle := &recHandle{}
	eng, store, events := newFixture(fixedConnector{handle: handle})
	eng.now = func() time.Time { return wednesdayAt(10, 0) }

	eng.Tick(context.Background())

	if got := handle.loaded(); len(got) != 1 || got[0] != "https://cdn.example.com/intro.mp4" {
		t.Fatalf("expected the main schedule's first item, got %v", got)
	}
	if st, ok := store.lastStatus(7); !ok || st != model.PlayerOnline {
		t.Errorf("expected online write-back, got %q %v", st, ok)
	}

	states := eng.PlayerStates()
	if len(states) != 1 || states[0].State != StatePlaying || states[0].ScheduleID != 1 {
		t.Fatalf("unexpected player state: %+v", states)
	}

	evs := events.all()
	if len(evs) != 1 || !evs[0].Success || evs[0].ScheduleID != 1 || evs[0].ContentID != 101 {
		t.Fatalf("unexpected telemetry: %+v", evs)
	}
}

func TestWindowCloseSwitchesToPersistentOverlay(t *testing.T) {
	handle := &recHandle{}
	eng, _, _ := newFixture(fixedConnector{handle: handle})

	now := wednesdayAt(10, 0)
	eng.now = func() time.Time { return now }
	eng.Tick(context.Background())

	now = wednesdayAt(19, 0)
	eng.Tick(context.Background())

	want := []string{"https://cdn.example.com/intro.mp4", "https://cdn.example.com/house.mp4"}
	got := handle.loaded()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected overlay takeover after the main window closed, got %v", got)
	}

	states := eng.PlayerStates()
	if len(states) != 1 || states[0].ScheduleID != 2 {
		t.Fatalf("expected the overlay schedule to own the player, got %+v", states)
	}
}

func TestRotationAdvancesAfterItemDuration(t *testing.T) {
	handle := &recHandle{}
	eng, _, _ := newFixture(fixedConnector{handle: handle})

	now := wednesdayAt(10, 0)
	eng.now = func() time.Time { return now }
	eng.Tick(context.Background())

	now = now.Add(5 * time.Second)
	eng.Tick(context.Background())
	if got := handle.loaded(); len(got) != 1 {
		t.Fatalf("item should stay on screen before its duration elapses, got %v", got)
	}

	now = now.Add(5 * time.Second)
	eng.Tick(context.Background())
	got := handle.loaded()
	if len(got) != 2 || got[1] != "https://cdn.example.com/promo.mp4" {
		t.Fatalf("expected rotation to the second item, got %v", got)
	}
}

func TestConnectFailureMarksPlayerOffline(t *testing.T) {
	eng, store, events := newFixture(fixedConnector{err: errors.New("connection refused")})
	eng.now = func() time.Time { return wednesdayAt(10, 0) }

	eng.Tick(context.Background())

	if st, ok := store.lastStatus(7); !ok || st != model.PlayerOffline {
		t.Errorf("expected offline write-back, got %q %v", st, ok)
	}
	states := eng.PlayerStates()
	if len(states) != 1 || states[0].State != StateFailed || states[0].LastError == "" {
		t.Fatalf("expected failed state with error, got %+v", states)
	}
	evs := events.all()
	if len(evs) != 1 || evs[0].Success {
		t.Fatalf("expected one failure telemetry event, got %+v", evs)
	}
}

func TestDeadDeviceDoesNotBlockOtherPlayers(t *testing.T) {
	handle := &recHandle{}
	eng, store, _ := newFixture(fixedConnector{handle: handle})

	// Second player with no stored device reference resolves to an
	// immediate failure; the first must still be served.
	midnight := "00:00:00"
	store.mu.Lock()
	store.players[8] = &model.Player{ID: 8, Name: "cafe"}
	store.schedules = append(store.schedules, model.Schedule{
		ID: 3, PlayerID: 8, CampaignID: 2,
		StartDate: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		StartTime: "00:00:00", EndTime: &midnight,
		DaysOfWeek: 0x7F, Priority: 1, Role: model.RoleMain,
		IsPersistent: true, ItemDuration: 30, Active: true,
	})
	store.mu.Unlock()

	eng.now = func() time.Time { return wednesdayAt(10, 0) }
	eng.Tick(context.Background())

	if got := handle.loaded(); len(got) != 1 {
		t.Fatalf("healthy player should have been dispatched, got %v", got)
	}

	var failed, playing bool
	for _, st := range eng.PlayerStates() {
		switch st.PlayerID {
		case 7:
			playing = st.State == StatePlaying
		case 8:
			failed = st.State == StateFailed
		}
	}
	if !playing || !failed {
		t.Fatalf("expected player 7 playing and player 8 failed: %+v", eng.PlayerStates())
	}
}

func TestScheduleGapLeavesContentOnScreen(t *testing.T) {
	handle := &recHandle{}
	eng, store, _ := newFixture(fixedConnector{handle: handle})

	now := wednesdayAt(10, 0)
	eng.now = func() time.Time { return now }
	eng.Tick(context.Background())

	// Drop every schedule: the player goes idle but no stop is sent.
	store.mu.Lock()
	store.schedules = nil
	store.mu.Unlock()

	now = now.Add(time.Minute)
	eng.Tick(context.Background())

	if got := handle.loaded(); len(got) != 1 {
		t.Fatalf("no new loads expected during a schedule gap, got %v", got)
	}
	states := eng.PlayerStates()
	if len(states) != 1 || states[0].State != StateNoActiveSchedule {
		t.Fatalf("expected no-active-schedule, got %+v", states)
	}
}

func TestStopPlayerRestartsRotation(t *testing.T) {
	handle := &recHandle{}
	eng, _, _ := newFixture(fixedConnector{handle: handle})

	now := wednesdayAt(10, 0)
	eng.now = func() time.Time { return now }
	eng.Tick(context.Background())

	if err := eng.StopPlayer(context.Background(), 7); err != nil {
		t.Fatal(err)
	}

	now = now.Add(time.Minute)
	eng.Tick(context.Background())

	got := handle.loaded()
	if len(got) != 2 || got[1] != "https://cdn.example.com/intro.mp4" {
		t.Fatalf("expected playback to restart from the first item after stop, got %v", got)
	}
}
