// Package cast defines the abstract device transport the engine drives
// and the command dispatcher that serializes delivery to each device.
// The concrete wire protocol lives behind the Connector/Handle contract.
package cast

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported is returned by transports for controls the
	// underlying protocol does not expose.
	ErrUnsupported = errors.New("cast: operation not supported by transport")
)

// Player states as reported by casting receivers.
const (
	StatePlaying   = "PLAYING"
	StateBuffering = "BUFFERING"
	StatePaused    = "PAUSED"
	StateIdle      = "IDLE"
)

// DeviceRecord is one entry in the device directory: a transient device
// id plus enough addressing to connect. Source names the discovery
// mechanism that produced it.
type DeviceRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Addr   string `json:"addr"`
	Port   int    `json:"port"`
	Source string `json:"source"`
}

// Media is one dispatchable piece of content.
type Media struct {
	URL      string
	MimeType string
	Title    string
	Kind     string // video | image | audio
}

// Status is a receiver-side playback snapshot. Depending on transport,
// current content is identified by URL, by title, or both.
type Status struct {
	State       string
	MediaURL    string
	MediaTitle  string
	CurrentTime float64
	Duration    float64
}

// Handle is a live, validated connection to a single device.
type Handle interface {
	// Ready ensures the receiver application is foreground, starting it
	// if necessary with a short bounded wait.
	Ready() error
	Load(media Media) error
	Play() error
	Pause() error
	Stop() error
	SetVolume(level float64) error
	Status() (*Status, error)
	// Close releases the connection; when stopMedia is set it also
	// best-effort stops whatever is on screen first.
	Close(stopMedia bool) error
}

// Connector turns a directory record into a connected handle.
type Connector interface {
	Connect(ctx context.Context, rec DeviceRecord) (Handle, error)
}
