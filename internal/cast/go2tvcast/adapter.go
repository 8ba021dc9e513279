// Package go2tvcast adapts the go2tv cast protocol client to the
// engine's transport contract.
package go2tvcast

import (
	"context"
	"net"
	"strconv"

	"go2tv.app/go2tv/v2/castprotocol"

	"github.com/Nixie-Tech-LLC/stheno/internal/cast"
)

type Connector struct{}

var _ cast.Connector = Connector{}

func (Connector) Connect(ctx context.Context, rec cast.DeviceRecord) (cast.Handle, error) {
	addr := rec.Addr
	if rec.Port > 0 {
		addr = net.JoinHostPort(rec.Addr, strconv.Itoa(rec.Port))
	}

	client, err := castprotocol.NewCastClient(addr)
	if err != nil {
		return nil, err
	}

	// Connect launches the default media receiver; bound it by the
	// caller's context since the protocol client has no deadline knob.
	errCh := make(chan error, 1)
	go func() { errCh <- client.Connect() }()

	select {
	case <-ctx.Done():
		_ = client.Close(false)
		return nil, ctx.Err()
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
	}
	return &handle{client: client}, nil
}

type handle struct {
	client *castprotocol.CastClient
}

var _ cast.Handle = (*handle)(nil)

// Ready probes the receiver and relaunches it when the probe fails;
// Connect blocks until the receiver application is foreground.
func (h *handle) Ready() error {
	if _, err := h.client.GetStatus(); err != nil {
		return h.client.Connect()
	}
	return nil
}

func (h *handle) Load(media cast.Media) error {
	return h.client.Load(media.URL, media.MimeType, 0, 0, "", false)
}

func (h *handle) Stop() error {
	return h.client.Stop()
}

// The cast protocol client exposes no transport controls beyond
// load/stop; a paused receiver is indistinguishable from a stopped one
// at this layer.
func (h *handle) Play() error { return cast.ErrUnsupported }

func (h *handle) Pause() error { return cast.ErrUnsupported }

func (h *handle) SetVolume(level float64) error { return cast.ErrUnsupported }

func (h *handle) Status() (*cast.Status, error) {
	st, err := h.client.GetStatus()
	if err != nil {
		return nil, err
	}
	return &cast.Status{
		State:       st.PlayerState,
		MediaTitle:  st.MediaTitle,
		CurrentTime: float64(st.CurrentTime),
		Duration:    float64(st.Duration),
	}, nil
}

func (h *handle) Close(stopMedia bool) error {
	return h.client.Close(stopMedia)
}
