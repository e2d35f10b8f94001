package inject

import (
	"context"

	"go.sunprobe.dev/agent/components/sensor"
)

// Sensor is an injected sensor.
type Sensor struct {
	sensor.Sensor
	name         string
	ReadingsFunc func(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error)
	CloseFunc    func(ctx context.Context) error
}

// NewSensor returns a new injected sensor.
func NewSensor(name string) *Sensor {
	return &Sensor{name: name}
}

// Name returns the name of the sensor.
func (s *Sensor) Name() string {
	return s.name
}

// Readings calls the injected Readings or the real version.
func (s *Sensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	if s.ReadingsFunc == nil {
		return s.Sensor.Readings(ctx, extra)
	}
	return s.ReadingsFunc(ctx, extra)
}

// Close calls the injected Close or the real version.
func (s *Sensor) Close(ctx context.Context) error {
	if s.CloseFunc == nil {
		if s.Sensor == nil {
			return nil
		}
		return s.Sensor.Close(ctx)
	}
	return s.CloseFunc(ctx)
}

// IlluminanceSensor is an injected illuminance sensor.
type IlluminanceSensor struct {
	*Sensor
	IlluminanceFunc func(ctx context.Context) (float64, error)
	LumensFunc      func(lux float64) float64
}

// NewIlluminanceSensor returns a new injected illuminance sensor.
func NewIlluminanceSensor(name string) *IlluminanceSensor {
	return &IlluminanceSensor{Sensor: NewSensor(name)}
}

// Illuminance calls the injected Illuminance.
func (s *IlluminanceSensor) Illuminance(ctx context.Context) (float64, error) {
	return s.IlluminanceFunc(ctx)
}

// Lumens calls the injected Lumens, or returns lux unchanged.
func (s *IlluminanceSensor) Lumens(lux float64) float64 {
	if s.LumensFunc == nil {
		return lux
	}
	return s.LumensFunc(lux)
}

// UVSensor is an injected UV sensor.
type UVSensor struct {
	*Sensor
	UVAFunc     func(ctx context.Context) (float64, error)
	UVBFunc     func(ctx context.Context) (float64, error)
	UVIndexFunc func(ctx context.Context) (float64, error)
}

// NewUVSensor returns a new injected UV sensor.
func NewUVSensor(name string) *UVSensor {
	return &UVSensor{Sensor: NewSensor(name)}
}

// UVA calls the injected UVA.
func (s *UVSensor) UVA(ctx context.Context) (float64, error) {
	return s.UVAFunc(ctx)
}

// UVB calls the injected UVB.
func (s *UVSensor) UVB(ctx context.Context) (float64, error) {
	return s.UVBFunc(ctx)
}

// UVIndex calls the injected UVIndex.
func (s *UVSensor) UVIndex(ctx context.Context) (float64, error) {
	return s.UVIndexFunc(ctx)
}
