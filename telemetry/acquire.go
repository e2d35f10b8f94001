package telemetry

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.sunprobe.dev/agent/components/sensor"
)

// Acquirer reads every sensor in a fixed order and assembles a Record.
type Acquirer struct {
	DeviceID string
	Light    sensor.IlluminanceSensor
	UV       sensor.UVSensor
	Clock    clock.Clock
}

// NewAcquirer returns an Acquirer using the wall clock.
func NewAcquirer(deviceID string, light sensor.IlluminanceSensor, uv sensor.UVSensor) *Acquirer {
	return &Acquirer{DeviceID: deviceID, Light: light, UV: uv, Clock: clock.New()}
}

// Acquire reads illuminance, derives the luminous flux, then reads the UV index, UVA and UVB,
// one after another. The first failure aborts the sequence and no record is returned.
func (a *Acquirer) Acquire(ctx context.Context) (Record, error) {
	lux, err := a.Light.Illuminance(ctx)
	if err != nil {
		return Record{}, errors.Wrap(err, "reading illuminance")
	}
	lumens := a.Light.Lumens(lux)

	uvIndex, err := a.UV.UVIndex(ctx)
	if err != nil {
		return Record{}, errors.Wrap(err, "reading uv index")
	}
	uva, err := a.UV.UVA(ctx)
	if err != nil {
		return Record{}, errors.Wrap(err, "reading uva")
	}
	uvb, err := a.UV.UVB(ctx)
	if err != nil {
		return Record{}, errors.Wrap(err, "reading uvb")
	}

	now := a.Clock
	if now == nil {
		now = clock.New()
	}
	return Record{
		DeviceID:           a.DeviceID,
		IlluminanceLux:     lux,
		LuminousFluxLumens: lumens,
		UVIndex:            uvIndex,
		UVACounts:          uva,
		UVBCounts:          uvb,
		Timestamp:          now.Now(),
	}, nil
}
