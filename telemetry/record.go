// Package telemetry builds telemetry records from the sensors and decides when they are sent.
package telemetry

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Record is one telemetry sample. It is built once per cycle and not modified afterwards.
type Record struct {
	DeviceID           string    `json:"device_id"`
	IlluminanceLux     float64   `json:"illuminance_lux"`
	LuminousFluxLumens float64   `json:"luminous_flux_lumens"`
	UVIndex            float64   `json:"uv_index"`
	UVACounts          float64   `json:"uva_counts"`
	UVBCounts          float64   `json:"uvb_counts"`
	Timestamp          time.Time `json:"-"`
}

// An Uploader sends a record to a remote endpoint. Implementations enforce their own timeout.
type Uploader interface {
	Upload(ctx context.Context, record Record) error
}

// ErrLinkDown is returned by uploaders when the network link is down and nothing was sent.
var ErrLinkDown = errors.New("network link is down")

// ShouldUpload reports whether strictly more than interval has elapsed between lastUploadAt and
// now. A zero lastUploadAt is treated as infinitely old.
func ShouldUpload(now, lastUploadAt time.Time, interval time.Duration) bool {
	return now.Sub(lastUploadAt) > interval
}
