package discovery

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/Nixie-Tech-LLC/stheno/internal/cast"
)

const castService = "_googlecast._tcp"

// CastDNSScanner discovers Chromecast-family receivers over mDNS.
// The receiver's TXT record carries the transient device id ("id") and
// the user-facing friendly name ("fn").
type CastDNSScanner struct{}

func (CastDNSScanner) Source() string { return "castdns" }

func (CastDNSScanner) Scan(ctx context.Context, timeout time.Duration) ([]cast.DeviceRecord, error) {
	entries := make(chan *mdns.ServiceEntry, 32)

	var records []cast.DeviceRecord
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if rec, ok := recordFromEntry(entry); ok {
				records = append(records, rec)
			}
		}
	}()

	params := &mdns.QueryParam{
		Service:     castService,
		Domain:      "local",
		Timeout:     timeout,
		Entries:     entries,
		DisableIPv6: true,
	}
	err := mdns.Query(params)

	// Query has returned and released its sockets; drain the collector.
	close(entries)
	<-done

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func recordFromEntry(entry *mdns.ServiceEntry) (cast.DeviceRecord, bool) {
	if entry.AddrV4 == nil {
		return cast.DeviceRecord{}, false
	}

	var id, name string
	for _, field := range entry.InfoFields {
		switch {
		case strings.HasPrefix(field, "id="):
			id = strings.TrimPrefix(field, "id=")
		case strings.HasPrefix(field, "fn="):
			name = strings.TrimPrefix(field, "fn=")
		}
	}
	if id == "" {
		return cast.DeviceRecord{}, false
	}
	if name == "" {
		name = strings.TrimSuffix(entry.Name, "."+castService+".local.")
	}

	return cast.DeviceRecord{
		ID:     id,
		Name:   name,
		Addr:   entry.AddrV4.String(),
		Port:   entry.Port,
		Source: "castdns",
	}, true
}
