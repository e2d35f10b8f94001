// Package veml6075 implements a driver for the VEML6075 UVA/UVB light sensor.
// Calibration follows Vishay application note 84339 without golden-sample correction.
package veml6075

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.sunprobe.dev/agent/components/board"
	"go.sunprobe.dev/agent/components/sensor"
	"go.sunprobe.dev/agent/logging"
)

// DefaultI2CAddr is the fixed address of the VEML6075.
const DefaultI2CAddr = 0x10

// Register map.
const (
	regConf    = 0x00
	regUVA     = 0x07
	regDark    = 0x08
	regUVB     = 0x09
	regUVComp1 = 0x0A
	regUVComp2 = 0x0B
	regID      = 0x0C
)

const (
	deviceID = 0x26

	confShutdown    = 0x01
	confHighDynamic = 0x08
	confITMask      = 0b0111_0000
	confITShift     = 4

	settleTime = 100 * time.Millisecond
)

// integrationTimes maps milliseconds to the UV_IT field value.
var integrationTimes = map[int]uint16{50: 0, 100: 1, 200: 2, 400: 3, 800: 4}

// IntegrationTimes returns the supported integration times in milliseconds, ascending.
func IntegrationTimes() []int {
	out := make([]int, 0, len(integrationTimes))
	for ms := range integrationTimes {
		out = append(out, ms)
	}
	sort.Ints(out)
	return out
}

// Coefficients convert raw UV counts into compensated counts and a UV index.
type Coefficients struct {
	A           float64 `json:"uva_a" mapstructure:"uva_a"`
	B           float64 `json:"uva_b" mapstructure:"uva_b"`
	C           float64 `json:"uvb_c" mapstructure:"uvb_c"`
	D           float64 `json:"uvb_d" mapstructure:"uvb_d"`
	UVAResponse float64 `json:"uva_response" mapstructure:"uva_response"`
	UVBResponse float64 `json:"uvb_response" mapstructure:"uvb_response"`
}

// DefaultCoefficients are the open-air values from the application note.
var DefaultCoefficients = Coefficients{
	A:           2.22,
	B:           1.33,
	C:           2.95,
	D:           1.74,
	UVAResponse: 0.001461,
	UVBResponse: 0.002591,
}

// Reading is one compensated measurement.
type Reading struct {
	UVA     float64
	UVB     float64
	UVIndex float64
}

// Sensor is a VEML6075 on an I2C bus.
type Sensor struct {
	name   string
	logger logging.Logger
	bus    board.I2C
	addr   byte
	coef   Coefficients

	wait func(ctx context.Context, d time.Duration) bool
}

var _ = sensor.UVSensor(&Sensor{})

// NewSensor checks the device identity and configures it. On an identity mismatch nothing is
// written to the device.
func NewSensor(ctx context.Context, bus board.I2C, name string, conf *Config, logger logging.Logger) (*Sensor, error) {
	integrationTime := conf.IntegrationTimeMs
	if integrationTime == 0 {
		integrationTime = defaultIntegrationTimeMs
	}
	if _, ok := integrationTimes[integrationTime]; !ok {
		return nil, errors.Wrapf(sensor.ErrInvalidIntegrationTime, "%d ms", integrationTime)
	}

	s := &Sensor{
		name:   name,
		logger: logger,
		bus:    bus,
		addr:   byte(conf.I2CAddr),
		coef:   conf.coefficients(),
		wait:   goutils.SelectContextOrWait,
	}
	if s.addr == 0 {
		s.addr = DefaultI2CAddr
	}

	id, err := s.readRegister(ctx, regID)
	if err != nil {
		return nil, errors.Wrap(err, "veml6075 init: failed to read device id")
	}
	if id != deviceID {
		return nil, errors.Wrapf(sensor.ErrDeviceIdentityMismatch, "veml6075 init: id %#04x, want %#04x", id, deviceID)
	}

	if err := s.writeRegister(ctx, regConf, confShutdown); err != nil {
		return nil, errors.Wrap(err, "veml6075 init: failed to shut down")
	}
	if err := s.SetIntegrationTime(ctx, integrationTime); err != nil {
		return nil, errors.Wrap(err, "veml6075 init")
	}
	confValue, err := s.readRegister(ctx, regConf)
	if err != nil {
		return nil, errors.Wrap(err, "veml6075 init: failed to read configuration")
	}
	if conf.highDynamic() {
		confValue |= confHighDynamic
	}
	confValue &^= confShutdown
	if err := s.writeRegister(ctx, regConf, confValue); err != nil {
		return nil, errors.Wrap(err, "veml6075 init: failed to power on")
	}
	logger.Debugw("veml6075 configured", "integration_time_ms", integrationTime, "conf", confValue)
	return s, nil
}

// Name returns the configured name.
func (s *Sensor) Name() string {
	return s.name
}

// Registers are 16 bits wide and transmitted low byte first.
func (s *Sensor) readRegister(ctx context.Context, register byte) (uint16, error) {
	handle, err := s.bus.OpenHandle(s.addr)
	if err != nil {
		return 0, err
	}
	defer goutils.UncheckedErrorFunc(handle.Close)
	reg := board.I2CRegister{Handle: handle, Register: register}
	return reg.ReadWordLE(ctx)
}

func (s *Sensor) writeRegister(ctx context.Context, register byte, value uint16) error {
	handle, err := s.bus.OpenHandle(s.addr)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(handle.Close)
	reg := board.I2CRegister{Handle: handle, Register: register}
	return reg.WriteWordLE(ctx, value)
}

// IntegrationTime returns the configured integration time in milliseconds.
func (s *Sensor) IntegrationTime(ctx context.Context) (int, error) {
	confValue, err := s.readRegister(ctx, regConf)
	if err != nil {
		return 0, err
	}
	field := (confValue & confITMask) >> confITShift
	for ms, value := range integrationTimes {
		if value == field {
			return ms, nil
		}
	}
	return 0, errors.Wrapf(sensor.ErrInvalidIntegrationTime, "device reports UV_IT field %d", field)
}

// SetIntegrationTime sets the integration time in milliseconds. Only 50, 100, 200, 400 and 800
// are accepted; anything else fails without touching the device.
func (s *Sensor) SetIntegrationTime(ctx context.Context, ms int) error {
	field, ok := integrationTimes[ms]
	if !ok {
		return errors.Wrapf(sensor.ErrInvalidIntegrationTime, "%d ms", ms)
	}
	confValue, err := s.readRegister(ctx, regConf)
	if err != nil {
		return err
	}
	confValue &^= confITMask
	confValue |= field << confITShift
	return s.writeRegister(ctx, regConf, confValue)
}

// Read waits for the sensor to settle and takes one compensated measurement.
func (s *Sensor) Read(ctx context.Context) (Reading, error) {
	if !s.wait(ctx, settleTime) {
		return Reading{}, ctx.Err()
	}
	var raw [4]uint16
	for i, register := range []byte{regUVA, regUVB, regUVComp1, regUVComp2} {
		value, err := s.readRegister(ctx, register)
		if err != nil {
			return Reading{}, err
		}
		raw[i] = value
	}
	uva, uvb, comp1, comp2 := float64(raw[0]), float64(raw[1]), float64(raw[2]), float64(raw[3])

	var r Reading
	r.UVA = uva - s.coef.A*comp1 - s.coef.B*comp2
	r.UVB = uvb - s.coef.C*comp1 - s.coef.D*comp2
	r.UVIndex = (r.UVA*s.coef.UVAResponse + r.UVB*s.coef.UVBResponse) / 2
	return r, nil
}

// UVA takes a fresh reading and returns the compensated UVA counts.
func (s *Sensor) UVA(ctx context.Context) (float64, error) {
	r, err := s.Read(ctx)
	return r.UVA, err
}

// UVB takes a fresh reading and returns the compensated UVB counts.
func (s *Sensor) UVB(ctx context.Context) (float64, error) {
	r, err := s.Read(ctx)
	return r.UVB, err
}

// UVIndex takes a fresh reading and returns the UV index.
func (s *Sensor) UVIndex(ctx context.Context) (float64, error) {
	r, err := s.Read(ctx)
	return r.UVIndex, err
}

// Dark returns the raw dark current counts.
func (s *Sensor) Dark(ctx context.Context) (uint16, error) {
	return s.readRegister(ctx, regDark)
}

// Readings returns all three values from a single measurement along with the dark counts.
func (s *Sensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	r, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	dark, err := s.Dark(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dark counts")
	}
	return map[string]interface{}{
		"uva_counts":  r.UVA,
		"uvb_counts":  r.UVB,
		"uv_index":    r.UVIndex,
		"dark_counts": dark,
	}, nil
}

// Close puts the device into shutdown.
func (s *Sensor) Close(ctx context.Context) error {
	confValue, err := s.readRegister(ctx, regConf)
	if err != nil {
		return err
	}
	return s.writeRegister(ctx, regConf, confValue|confShutdown)
}
