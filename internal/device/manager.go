// Package device resolves stored logical device references into live,
// validated casting connections, with per-device failure isolation.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Nixie-Tech-LLC/stheno/internal/cast"
	"github.com/Nixie-Tech-LLC/stheno/internal/db"
	"github.com/Nixie-Tech-LLC/stheno/internal/discovery"
	"github.com/Nixie-Tech-LLC/stheno/internal/model"
)

var (
	// ErrNoDeviceRef means the player has never been paired to a device.
	ErrNoDeviceRef = errors.New("device: player has no stored device reference")
	// ErrDeviceNotFound means every resolution step came up empty.
	ErrDeviceNotFound = errors.New("device: device not found on network")
)

const (
	nameRediscoveryAttempts = 2
	directoryMaxAge         = 30 * time.Second
)

// resolved pairs a live handle with the directory record it came from.
type resolved struct {
	handle cast.Handle
	record cast.DeviceRecord
}

// Manager owns the connection cache and one circuit breaker per device
// id. After enough consecutive failures the breaker refuses further
// attempts for a cooldown window without touching the network.
type Manager struct {
	directory *discovery.Directory
	connector cast.Connector
	store     db.Store

	connectTimeout  time.Duration
	breakerFailures uint32
	breakerCooldown time.Duration

	mu       sync.Mutex
	cache    map[string]cast.Handle
	breakers map[string]*gobreaker.CircuitBreaker[resolved]
}

func NewManager(dir *discovery.Directory, connector cast.Connector, store db.Store,
	connectTimeout time.Duration, breakerFailures int, breakerCooldown time.Duration) *Manager {
	if breakerFailures < 1 {
		breakerFailures = 1
	}
	return &Manager{
		directory:       dir,
		connector:       connector,
		store:           store,
		connectTimeout:  connectTimeout,
		breakerFailures: uint32(breakerFailures),
		breakerCooldown: breakerCooldown,
		cache:           make(map[string]cast.Handle),
		breakers:        make(map[string]*gobreaker.CircuitBreaker[resolved]),
	}
}

// Resolve turns the player's stored device reference into a validated
// handle, short-circuiting on the first step that succeeds:
//
//  1. reconnect via the directory's freshest address for the stored id
//  2. name-based re-discovery, writing back the freshly discovered id
//  3. one final unfiltered pass checking the original id again
//
// The returned device id is the one the handle is connected under,
// which may differ from the stored one after a write-back.
func (m *Manager) Resolve(ctx context.Context, player *model.Player) (cast.Handle, string, error) {
	if player.DeviceID == nil && player.DeviceName == nil {
		return nil, "", ErrNoDeviceRef
	}

	br := m.breaker(breakerKey(player))
	res, err := br.Execute(func() (resolved, error) {
		return m.resolve(ctx, player)
	})
	if err != nil {
		return nil, "", err
	}
	return res.handle, res.record.ID, nil
}

// IsBreakerOpen reports whether err is the breaker refusing without a
// network attempt.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func breakerKey(player *model.Player) string {
	if player.DeviceID != nil && *player.DeviceID != "" {
		return *player.DeviceID
	}
	return fmt.Sprintf("player:%d", player.ID)
}

func (m *Manager) breaker(key string) *gobreaker.CircuitBreaker[resolved] {
	m.mu.Lock()
	defer m.mu.Unlock()
	br, ok := m.breakers[key]
	if !ok {
		failures := m.breakerFailures
		br = gobreaker.NewCircuitBreaker[resolved](gobreaker.Settings{
			Name:        key,
			MaxRequests: 1,
			Timeout:     m.breakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Info().Str("device_id", name).
					Str("from", from.String()).Str("to", to.String()).
					Msg("connection breaker state change")
			},
		})
		m.breakers[key] = br
	}
	return br
}

func (m *Manager) resolve(ctx context.Context, player *model.Player) (resolved, error) {
	storedID := ""
	if player.DeviceID != nil {
		storedID = *player.DeviceID
	}
	storedName := ""
	if player.DeviceName != nil {
		storedName = *player.DeviceName
	}

	// Step 0: a cached handle that still answers its readiness probe.
	if storedID != "" {
		if h, ok := m.cachedAlive(storedID); ok {
			rec, _ := m.directory.Lookup(storedID)
			rec.ID = storedID
			return resolved{handle: h, record: rec}, nil
		}
	}

	// Step 1: freshest known address for the stored id.
	if storedID != "" {
		if !m.directory.FreshWithin(directoryMaxAge) {
			if _, err := m.directory.Refresh(ctx); err != nil {
				log.Warn().Err(err).Int("player_id", player.ID).Msg("directory refresh failed during resolve")
			}
		}
		if rec, ok := m.directory.Lookup(storedID); ok {
			if res, err := m.connect(ctx, rec); err == nil {
				return res, nil
			}
		}
	}

	// Step 2: name-based re-discovery. The freshly discovered id always
	// replaces the stored one: transient ids do not survive network
	// rejoins.
	if storedName != "" {
		for attempt := 0; attempt < nameRediscoveryAttempts; attempt++ {
			snapshot, err := m.directory.Refresh(ctx)
			if err != nil {
				continue
			}
			for _, rec := range snapshot {
				if !NameMatches(storedName, rec.Name) {
					continue
				}
				res, err := m.connect(ctx, rec)
				if err != nil {
					continue
				}
				if err := m.store.UpdatePlayerDevice(player.ID, rec.ID, rec.Name); err != nil {
					log.Error().Err(err).Int("player_id", player.ID).Msg("device id write-back failed")
				}
				return res, nil
			}
		}
	}

	// Step 3: one last unfiltered pass, in case the original id rejoined.
	if storedID != "" {
		if snapshot, err := m.directory.Refresh(ctx); err == nil {
			if rec, ok := snapshot[storedID]; ok {
				if res, err := m.connect(ctx, rec); err == nil {
					return res, nil
				}
			}
		}
	}

	return resolved{}, fmt.Errorf("%w: player %d (%q)", ErrDeviceNotFound, player.ID, storedName)
}

func (m *Manager) cachedAlive(deviceID string) (cast.Handle, bool) {
	m.mu.Lock()
	h, ok := m.cache[deviceID]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	if _, err := h.Status(); err != nil {
		m.evict(deviceID, h)
		return nil, false
	}
	return h, true
}

// connect dials the record and validates the handle with a readiness
// probe before caching it. Invalid handles are never cached.
func (m *Manager) connect(ctx context.Context, rec cast.DeviceRecord) (resolved, error) {
	cctx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	defer cancel()

	h, err := m.connector.Connect(cctx, rec)
	if err != nil {
		return resolved{}, fmt.Errorf("connect to %s (%s): %w", rec.ID, rec.Addr, err)
	}
	if _, err := h.Status(); err != nil {
		_ = h.Close(false)
		return resolved{}, fmt.Errorf("readiness probe on %s: %w", rec.ID, err)
	}

	m.mu.Lock()
	if old, ok := m.cache[rec.ID]; ok && old != h {
		_ = old.Close(false)
	}
	m.cache[rec.ID] = h
	m.mu.Unlock()

	return resolved{handle: h, record: rec}, nil
}

func (m *Manager) evict(deviceID string, h cast.Handle) {
	m.mu.Lock()
	if cur, ok := m.cache[deviceID]; ok && cur == h {
		delete(m.cache, deviceID)
	}
	m.mu.Unlock()
	_ = h.Close(false)
}

// Disconnect stops media and releases the cached handle for a device.
// Teardown is best-effort and never propagates errors.
func (m *Manager) Disconnect(deviceID string) {
	m.mu.Lock()
	h, ok := m.cache[deviceID]
	delete(m.cache, deviceID)
	m.mu.Unlock()
	if !ok {
		return
	}
	if err := h.Close(true); err != nil {
		log.Debug().Err(err).Str("device_id", deviceID).Msg("disconnect teardown error ignored")
	}
}

// Close releases every cached handle.
func (m *Manager) Close() {
	m.mu.Lock()
	handles := m.cache
	m.cache = make(map[string]cast.Handle)
	m.mu.Unlock()
	for id, h := range handles {
		if err := h.Close(false); err != nil {
			log.Debug().Err(err).Str("device_id", id).Msg("close teardown error ignored")
		}
	}
}
