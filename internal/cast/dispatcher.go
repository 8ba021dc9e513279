package cast

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultIdleProbeDelay = 1500 * time.Millisecond

// Dispatcher delivers media commands to devices with idempotency
// guarantees: commands to one device never interleave, an identical
// dispatch inside the debounce window is suppressed, and content the
// device already reports playing is not reloaded.
type Dispatcher struct {
	debounce       time.Duration
	idleProbeDelay time.Duration
	now            func() time.Time
	sleep          func(time.Duration)

	mu    sync.Mutex
	lanes map[string]*lane
}

// lane serializes commands to a single device and remembers the last
// dispatch for debouncing.
type lane struct {
	mu      sync.Mutex
	lastURL string
	lastAt  time.Time
}

func NewDispatcher(debounce time.Duration) *Dispatcher {
	return &Dispatcher{
		debounce:       debounce,
		idleProbeDelay: defaultIdleProbeDelay,
		now:            time.Now,
		sleep:          time.Sleep,
		lanes:          make(map[string]*lane),
	}
}

func (d *Dispatcher) lane(deviceID string) *lane {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.lanes[deviceID]
	if !ok {
		l = &lane{}
		d.lanes[deviceID] = l
	}
	return l
}

// Dispatch loads media on the device. It reports success without
// touching the transport when the same media reference was dispatched
// within the debounce window, or when the device already reports it
// playing or buffering.
func (d *Dispatcher) Dispatch(deviceID string, h Handle, media Media) error {
	l := d.lane(deviceID)
	l.mu.Lock()
	defer l.mu.Unlock()

	now := d.now()
	if l.lastURL == media.URL && now.Sub(l.lastAt) < d.debounce {
		log.Debug().Str("device_id", deviceID).Str("url", media.URL).Msg("dispatch debounced")
		return nil
	}

	if st, err := h.Status(); err == nil && sameContent(st, media) &&
		(st.State == StatePlaying || st.State == StateBuffering) {
		l.lastURL, l.lastAt = media.URL, now
		return nil
	}

	if err := h.Ready(); err != nil {
		return fmt.Errorf("receiver not ready on %s: %w", deviceID, err)
	}
	if err := h.Load(media); err != nil {
		return fmt.Errorf("load failed on %s: %w", deviceID, err)
	}
	l.lastURL, l.lastAt = media.URL, d.now()

	// Some receivers drop straight back to idle after a still image is
	// loaded. One corrective retry, then give up.
	if media.Kind == "image" {
		d.sleep(d.idleProbeDelay)
		if st, err := h.Status(); err == nil && st.State == StateIdle {
			log.Warn().Str("device_id", deviceID).Str("url", media.URL).Msg("receiver idle after image load, retrying once")
			if err := h.Ready(); err != nil {
				return fmt.Errorf("receiver not ready on image retry on %s: %w", deviceID, err)
			}
			if err := h.Load(media); err != nil {
				return fmt.Errorf("image retry load failed on %s: %w", deviceID, err)
			}
			l.lastAt = d.now()
		}
	}
	return nil
}

func sameContent(st *Status, media Media) bool {
	if st.MediaURL != "" && st.MediaURL == media.URL {
		return true
	}
	return st.MediaTitle != "" && st.MediaTitle == media.Title
}

// Stop halts playback on the device. Serialized with dispatches on the
// same lane; the lane's debounce memory is cleared so the next dispatch
// of the same media is not suppressed.
func (d *Dispatcher) Stop(deviceID string, h Handle) error {
	l := d.lane(deviceID)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastURL, l.lastAt = "", time.Time{}
	if err := h.Stop(); err != nil {
		return fmt.Errorf("stop failed on %s: %w", deviceID, err)
	}
	return nil
}

// Forget drops the debounce memory for a device, used when its
// connection is torn down.
func (d *Dispatcher) Forget(deviceID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.lanes, deviceID)
}
