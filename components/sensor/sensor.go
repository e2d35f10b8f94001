// Package sensor defines an abstract sensing device that can provide measurement readings.
package sensor

import (
	"context"

	"github.com/pkg/errors"
)

// A Sensor represents a general purpose sensors that can give arbitrary readings
// of some thing that it is sensing.
type Sensor interface {
	// Name returns the configured name of the sensor.
	Name() string
	// Readings return data specific to the type of sensor and can be of any type.
	Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error)
	// Close releases the device, putting it into its lowest power state.
	Close(ctx context.Context) error
}

// IlluminanceSensor measures ambient light.
type IlluminanceSensor interface {
	Sensor
	// Illuminance triggers a measurement and returns it in lux.
	Illuminance(ctx context.Context) (float64, error)
	// Lumens converts an illuminance in lux to luminous flux over the sensor's collection area.
	Lumens(lux float64) float64
}

// UVSensor measures ultraviolet light.
type UVSensor interface {
	Sensor
	UVA(ctx context.Context) (float64, error)
	UVB(ctx context.Context) (float64, error)
	UVIndex(ctx context.Context) (float64, error)
}

// Construction errors. A driver that returns one of these never touched or gave up on the device
// before changing its configuration.
var (
	ErrInvalidCalibration     = errors.New("calibration value out of range")
	ErrInvalidIntegrationTime = errors.New("unsupported integration time")
	ErrDeviceIdentityMismatch = errors.New("device identity mismatch")
)
