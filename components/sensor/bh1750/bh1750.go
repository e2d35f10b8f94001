// Package bh1750 implements a driver for the BH1750 ambient light sensor.
// Datasheet: https://www.mouser.com/datasheet/2/348/bh1750fvi-e-186247.pdf
package bh1750

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.sunprobe.dev/agent/components/board"
	"go.sunprobe.dev/agent/components/sensor"
	"go.sunprobe.dev/agent/logging"
)

const (
	// DefaultI2CAddr is the address with the ADDR pin pulled low.
	DefaultI2CAddr = 0x23

	// DefaultAccuracy is the typical measurement accuracy from the datasheet.
	DefaultAccuracy = 1.2
	minAccuracy     = 0.96
	maxAccuracy     = 1.44

	defaultCollectionAreaM2 = 1.0
)

// Opcodes.
const (
	cmdPowerDown  = 0b0000_0000
	cmdPowerOn    = 0b0000_0001
	cmdReset      = 0b0000_0111
	cmdContinuous = 0b0001_0000
	cmdOneShot    = 0b0010_0000
	cmdLowRes     = 0b0000_0011
)

// Typical and maximum conversion times, indexed by 2*highResolution + max.
var conversionCycleTimes = [4]time.Duration{
	16 * time.Millisecond,
	24 * time.Millisecond,
	120 * time.Millisecond,
	180 * time.Millisecond,
}

// Sensor is a BH1750 on an I2C bus.
type Sensor struct {
	name   string
	logger logging.Logger
	bus    board.I2C
	addr   byte

	mu             sync.Mutex
	highResolution bool
	continuous     bool
	accuracy       float64
	byteOrder      binary.ByteOrder
	collectionArea float64

	wait func(ctx context.Context, d time.Duration) bool
}

var _ = sensor.IlluminanceSensor(&Sensor{})

// NewSensor validates conf, powers the device on and applies the configured mode. An accuracy
// outside [0.96, 1.44] fails with sensor.ErrInvalidCalibration before any bus traffic.
func NewSensor(ctx context.Context, bus board.I2C, name string, conf *Config, logger logging.Logger) (*Sensor, error) {
	s, err := newSensor(bus, name, conf, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Power(ctx, true); err != nil {
		return nil, errors.Wrap(err, "bh1750 init: failed to power on")
	}
	if err := s.SetMode(ctx, s.continuous, s.highResolution); err != nil {
		return nil, errors.Wrap(err, "bh1750 init: failed to set mode")
	}
	return s, nil
}

func newSensor(bus board.I2C, name string, conf *Config, logger logging.Logger) (*Sensor, error) {
	s := &Sensor{
		name:           name,
		logger:         logger,
		bus:            bus,
		addr:           byte(conf.I2CAddr),
		highResolution: conf.highResolution(),
		continuous:     conf.continuous(),
		accuracy:       DefaultAccuracy,
		byteOrder:      binary.BigEndian,
		collectionArea: conf.CollectionAreaM2,
		wait:           goutils.SelectContextOrWait,
	}
	if s.addr == 0 {
		s.addr = DefaultI2CAddr
	}
	if conf.ByteOrder == byteOrderLittle {
		s.byteOrder = binary.LittleEndian
	}
	if s.collectionArea == 0 {
		s.collectionArea = defaultCollectionAreaM2
	}
	if conf.Accuracy != 0 {
		if err := s.SetMeasurementAccuracy(conf.Accuracy); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name returns the configured name.
func (s *Sensor) Name() string {
	return s.name
}

func (s *Sensor) sendCommand(ctx context.Context, cmd byte) error {
	handle, err := s.bus.OpenHandle(s.addr)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(handle.Close)
	return handle.Write(ctx, []byte{cmd})
}

// Power switches the device on or off.
func (s *Sensor) Power(ctx context.Context, on bool) error {
	if on {
		return s.sendCommand(ctx, cmdPowerOn)
	}
	return s.sendCommand(ctx, cmdPowerDown)
}

// Reset clears the data register. The device must be powered on.
func (s *Sensor) Reset(ctx context.Context) error {
	return s.sendCommand(ctx, cmdReset)
}

// SetMode selects continuous or one-shot measurement at high (1 lx) or low (4 lx) resolution.
// The state only changes once the device accepted the command.
func (s *Sensor) SetMode(ctx context.Context, continuous, highResolution bool) error {
	if err := s.sendCommand(ctx, modeCommand(continuous, highResolution)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.continuous = continuous
	s.highResolution = highResolution
	return nil
}

func modeCommand(continuous, highResolution bool) byte {
	cmd := byte(cmdOneShot)
	if continuous {
		cmd = cmdContinuous
	}
	if !highResolution {
		cmd |= cmdLowRes
	}
	return cmd
}

// Mode returns the current continuous and high resolution flags.
func (s *Sensor) Mode() (continuous, highResolution bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.continuous, s.highResolution
}

// SetMeasurementAccuracy sets the divisor applied to raw counts.
func (s *Sensor) SetMeasurementAccuracy(accuracy float64) error {
	if math.IsNaN(accuracy) || accuracy < minAccuracy || accuracy > maxAccuracy {
		return errors.Wrapf(sensor.ErrInvalidCalibration,
			"measurement accuracy %v not in [%v, %v]", accuracy, minAccuracy, maxAccuracy)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accuracy = accuracy
	return nil
}

// MeasurementAccuracy returns the divisor applied to raw counts.
func (s *Sensor) MeasurementAccuracy() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accuracy
}

// ConversionCycleTime returns how long a measurement takes in the current resolution. With
// worstCase set it returns the datasheet maximum instead of the typical time.
func (s *Sensor) ConversionCycleTime(worstCase bool) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := 0
	if s.highResolution {
		idx += 2
	}
	if worstCase {
		idx++
	}
	return conversionCycleTimes[idx]
}

// ReadMeasurement reads the data register and returns it in lux. Bus errors are returned as is.
func (s *Sensor) ReadMeasurement(ctx context.Context) (float64, error) {
	handle, err := s.bus.OpenHandle(s.addr)
	if err != nil {
		return 0, err
	}
	defer goutils.UncheckedErrorFunc(handle.Close)
	data, err := handle.Read(ctx, 2)
	if err != nil {
		return 0, err
	}
	if len(data) != 2 {
		return 0, errors.Errorf("bh1750: expected 2 bytes, got %d", len(data))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.byteOrder.Uint16(data)) / s.accuracy, nil
}

// Illuminance takes a fresh measurement. In one-shot mode the device powers down after every
// conversion, so the mode command is sent again to start one.
func (s *Sensor) Illuminance(ctx context.Context) (float64, error) {
	continuous, highResolution := s.Mode()
	if !continuous {
		if err := s.SetMode(ctx, false, highResolution); err != nil {
			return 0, err
		}
	}
	if !s.wait(ctx, s.ConversionCycleTime(true)) {
		return 0, ctx.Err()
	}
	return s.ReadMeasurement(ctx)
}

// Lumens returns the luminous flux through the collection area for an illuminance in lux. One lux
// is one lumen per square metre, so the factor is the area in m². With the default area of 1 m²
// the value equals the illuminance.
func (s *Sensor) Lumens(lux float64) float64 {
	return lux * s.collectionArea
}

// Readings returns the current illuminance and the derived luminous flux.
func (s *Sensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	lux, err := s.Illuminance(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"illuminance_lux":      lux,
		"luminous_flux_lumens": s.Lumens(lux),
	}, nil
}

// Close clears the data register and powers the device down.
func (s *Sensor) Close(ctx context.Context) error {
	if err := s.Reset(ctx); err != nil {
		return err
	}
	return s.Power(ctx, false)
}
