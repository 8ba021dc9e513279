// Package discovery merges candidate device records from independent
// network discovery mechanisms into one deduplicated snapshot.
package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/stheno/internal/cast"
)

// Scanner is one discovery mechanism. Scan must release any sockets or
// listeners it opens before returning, on every path.
type Scanner interface {
	Source() string
	Scan(ctx context.Context, timeout time.Duration) ([]cast.DeviceRecord, error)
}

// Directory holds the latest discovery snapshot, keyed by transient
// device id. All scanners run concurrently within one bounded refresh;
// a failing scanner degrades to whatever the others found.
type Directory struct {
	scanners []Scanner
	timeout  time.Duration

	mu      sync.RWMutex
	entries map[string]cast.DeviceRecord
	takenAt time.Time
}

func New(timeout time.Duration, scanners ...Scanner) *Directory {
	return &Directory{
		scanners: scanners,
		timeout:  timeout,
		entries:  make(map[string]cast.DeviceRecord),
	}
}

// Refresh runs every scanner and replaces the snapshot. Records are
// deduplicated by device id, first seen wins, in scanner declaration
// order so the merge is deterministic. Refresh fails only when every
// scanner fails.
func (d *Directory) Refresh(ctx context.Context) (map[string]cast.DeviceRecord, error) {
	results := make([][]cast.DeviceRecord, len(d.scanners))
	errs := make([]error, len(d.scanners))

	var wg sync.WaitGroup
	for i, sc := range d.scanners {
		wg.Add(1)
		go func(i int, sc Scanner) {
			defer wg.Done()
			recs, err := sc.Scan(ctx, d.timeout)
			if err != nil {
				log.Warn().Err(err).Str("source", sc.Source()).Msg("discovery scanner failed")
				errs[i] = err
				return
			}
			results[i] = recs
		}(i, sc)
	}
	wg.Wait()

	merged := make(map[string]cast.DeviceRecord)
	failures := 0
	for i := range d.scanners {
		if errs[i] != nil {
			failures++
			continue
		}
		for _, rec := range results[i] {
			if rec.ID == "" {
				continue
			}
			if _, seen := merged[rec.ID]; !seen {
				merged[rec.ID] = rec
			}
		}
	}

	if failures == len(d.scanners) && len(d.scanners) > 0 {
		return nil, errors.Join(errs...)
	}

	d.mu.Lock()
	d.entries = merged
	d.takenAt = time.Now()
	d.mu.Unlock()

	log.Debug().Int("devices", len(merged)).Int("failed_scanners", failures).Msg("directory refreshed")
	return merged, nil
}

// Lookup returns the record for a transient device id from the latest
// snapshot.
func (d *Directory) Lookup(id string) (cast.DeviceRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.entries[id]
	return rec, ok
}

// Snapshot returns a copy of the latest entries.
func (d *Directory) Snapshot() []cast.DeviceRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]cast.DeviceRecord, 0, len(d.entries))
	for _, rec := range d.entries {
		out = append(out, rec)
	}
	return out
}

// FreshWithin reports whether the snapshot was taken within maxAge.
func (d *Directory) FreshWithin(maxAge time.Duration) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return !d.takenAt.IsZero() && time.Since(d.takenAt) <= maxAge
}
