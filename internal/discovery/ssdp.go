package discovery

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alexballas/go-ssdp"

	"github.com/Nixie-Tech-LLC/stheno/internal/cast"
)

// SSDPScanner discovers devices advertising over SSDP on the local
// network. USNs carry the device uuid; the advertisement's Server
// header stands in for a friendly name until a richer source (TXT
// records from the cast scanner) supersedes the entry.
type SSDPScanner struct{}

func (SSDPScanner) Source() string { return "ssdp" }

func (SSDPScanner) Scan(ctx context.Context, timeout time.Duration) ([]cast.DeviceRecord, error) {
	waitSec := int(timeout / time.Second)
	if waitSec < 1 {
		waitSec = 1
	}

	services, err := ssdp.Search(ssdp.All, waitSec, "")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]cast.DeviceRecord, 0, len(services))
	for _, svc := range services {
		id := usnUUID(svc.USN)
		if id == "" {
			continue
		}
		addr, port := locationHost(svc.Location)
		if addr == "" {
			continue
		}
		records = append(records, cast.DeviceRecord{
			ID:     id,
			Name:   strings.TrimSpace(svc.Server),
			Addr:   addr,
			Port:   port,
			Source: "ssdp",
		})
	}
	return records, nil
}

// usnUUID extracts the device uuid from a USN like
// "uuid:abc-123::urn:dial-multiscreen-org:service:dial:1".
func usnUUID(usn string) string {
	trimmed := strings.TrimPrefix(usn, "uuid:")
	if trimmed == usn {
		return ""
	}
	if idx := strings.Index(trimmed, "::"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func locationHost(location string) (string, int) {
	parsed, err := url.Parse(location)
	if err != nil {
		return "", 0
	}
	host := parsed.Hostname()
	port := 0
	if p := parsed.Port(); p != "" {
		port, _ = strconv.Atoi(p)
	}
	return host, port
}
