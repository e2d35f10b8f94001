package bh1750

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.viam.com/test"

	"go.sunprobe.dev/agent/components/board"
	"go.sunprobe.dev/agent/components/board/fake"
	"go.sunprobe.dev/agent/components/sensor"
	"go.sunprobe.dev/agent/logging"
)

func setupSensor(t *testing.T, conf *Config) (*Sensor, *fake.I2CDevice, *[]time.Duration) {
	t.Helper()
	bus := fake.NewI2C()
	dev := bus.AddDevice(DefaultI2CAddr)
	s, err := NewSensor(context.Background(), bus, "light", conf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	waits := []time.Duration{}
	s.wait = func(ctx context.Context, d time.Duration) bool {
		waits = append(waits, d)
		return ctx.Err() == nil
	}
	return s, dev, &waits
}

func TestValidate(t *testing.T) {
	conf := &Config{}
	err := conf.Validate("sensors.light")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "i2c_bus")

	conf.I2CBus = "default"
	test.That(t, conf.Validate("sensors.light"), test.ShouldBeNil)

	conf.ByteOrder = "middle"
	test.That(t, conf.Validate("sensors.light"), test.ShouldNotBeNil)
	conf.ByteOrder = byteOrderLittle
	conf.I2CAddr = 0x80
	test.That(t, conf.Validate("sensors.light"), test.ShouldNotBeNil)
}

func TestNewSensor(t *testing.T) {
	s, dev, _ := setupSensor(t, &Config{I2CBus: "default"})

	test.That(t, dev.Writes(), test.ShouldResemble, [][]byte{{0x01}, {0x10}})
	continuous, highResolution := s.Mode()
	test.That(t, continuous, test.ShouldBeTrue)
	test.That(t, highResolution, test.ShouldBeTrue)
	test.That(t, s.MeasurementAccuracy(), test.ShouldEqual, DefaultAccuracy)
	test.That(t, s.Name(), test.ShouldEqual, "light")
}

func TestNewSensorRejectsAccuracy(t *testing.T) {
	for _, accuracy := range []float64{0.5, 0.95, 1.45, 3} {
		bus := fake.NewI2C()
		dev := bus.AddDevice(DefaultI2CAddr)
		_, err := NewSensor(context.Background(), bus, "light",
			&Config{I2CBus: "default", Accuracy: accuracy}, logging.NewTestLogger(t))
		test.That(t, errors.Is(err, sensor.ErrInvalidCalibration), test.ShouldBeTrue)
		test.That(t, dev.Ops, test.ShouldBeEmpty)
	}
}

func TestNewSensorMissingDevice(t *testing.T) {
	bus := fake.NewI2C()
	_, err := NewSensor(context.Background(), bus, "light", &Config{I2CBus: "default"}, logging.NewTestLogger(t))
	test.That(t, errors.Is(err, fake.ErrNoDevice), test.ShouldBeTrue)
	test.That(t, bus.Handles, test.ShouldEqual, 0)
}

func TestSetMeasurementAccuracy(t *testing.T) {
	s, _, _ := setupSensor(t, &Config{I2CBus: "default"})

	test.That(t, s.SetMeasurementAccuracy(0.96), test.ShouldBeNil)
	test.That(t, s.SetMeasurementAccuracy(1.44), test.ShouldBeNil)
	test.That(t, s.MeasurementAccuracy(), test.ShouldEqual, 1.44)

	err := s.SetMeasurementAccuracy(1.5)
	test.That(t, errors.Is(err, sensor.ErrInvalidCalibration), test.ShouldBeTrue)
	test.That(t, s.MeasurementAccuracy(), test.ShouldEqual, 1.44)
}

func TestSetMode(t *testing.T) {
	ctx := context.Background()
	s, dev, _ := setupSensor(t, &Config{I2CBus: "default"})

	for _, tc := range []struct {
		continuous, highResolution bool
		cmd                        byte
		typical, worst             time.Duration
	}{
		{true, true, 0x10, 120 * time.Millisecond, 180 * time.Millisecond},
		{true, false, 0x13, 16 * time.Millisecond, 24 * time.Millisecond},
		{false, true, 0x20, 120 * time.Millisecond, 180 * time.Millisecond},
		{false, false, 0x23, 16 * time.Millisecond, 24 * time.Millisecond},
	} {
		test.That(t, s.SetMode(ctx, tc.continuous, tc.highResolution), test.ShouldBeNil)
		writes := dev.Writes()
		test.That(t, writes[len(writes)-1], test.ShouldResemble, []byte{tc.cmd})
		continuous, highResolution := s.Mode()
		test.That(t, continuous, test.ShouldEqual, tc.continuous)
		test.That(t, highResolution, test.ShouldEqual, tc.highResolution)
		test.That(t, s.ConversionCycleTime(false), test.ShouldEqual, tc.typical)
		test.That(t, s.ConversionCycleTime(true), test.ShouldEqual, tc.worst)
	}

	dev.Err = errors.New("nack")
	err := s.SetMode(ctx, true, true)
	var transportErr *board.TransportError
	test.That(t, errors.As(err, &transportErr), test.ShouldBeTrue)
	continuous, highResolution := s.Mode()
	test.That(t, continuous, test.ShouldBeFalse)
	test.That(t, highResolution, test.ShouldBeFalse)
}

func TestReadMeasurement(t *testing.T) {
	ctx := context.Background()
	s, dev, _ := setupSensor(t, &Config{I2CBus: "default"})

	dev.ReadData = []byte{0x01, 0x2C}
	lux, err := s.ReadMeasurement(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lux, test.ShouldAlmostEqual, 250.0)

	dev.ReadData = []byte{0xFF, 0xFF}
	test.That(t, s.SetMeasurementAccuracy(0.96), test.ShouldBeNil)
	lux, err = s.ReadMeasurement(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lux, test.ShouldAlmostEqual, 65535/0.96)

	busErr := errors.New("arbitration lost")
	dev.Err = busErr
	_, err = s.ReadMeasurement(ctx)
	test.That(t, errors.Is(err, busErr), test.ShouldBeTrue)
}

func TestReadMeasurementLittleEndian(t *testing.T) {
	s, dev, _ := setupSensor(t, &Config{I2CBus: "default", ByteOrder: byteOrderLittle})
	dev.ReadData = []byte{0x2C, 0x01}
	lux, err := s.ReadMeasurement(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lux, test.ShouldAlmostEqual, 250.0)
}

func TestIlluminance(t *testing.T) {
	ctx := context.Background()
	f := false
	s, dev, waits := setupSensor(t, &Config{I2CBus: "default", Continuous: &f})
	dev.ReadData = []byte{0x01, 0x2C}
	test.That(t, dev.Writes(), test.ShouldResemble, [][]byte{{0x01}, {0x20}})

	lux, err := s.Illuminance(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, lux, test.ShouldAlmostEqual, 250.0)
	test.That(t, dev.Writes(), test.ShouldResemble, [][]byte{{0x01}, {0x20}, {0x20}})
	test.That(t, *waits, test.ShouldResemble, []time.Duration{180 * time.Millisecond})

	test.That(t, s.SetMode(ctx, true, false), test.ShouldBeNil)
	_, err = s.Illuminance(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dev.Writes(), test.ShouldHaveLength, 4)
	test.That(t, (*waits)[1], test.ShouldEqual, 24*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Illuminance(cancelled)
	test.That(t, err, test.ShouldEqual, context.Canceled)
}

func TestLumens(t *testing.T) {
	s, _, _ := setupSensor(t, &Config{I2CBus: "default"})
	test.That(t, s.Lumens(250), test.ShouldEqual, s.Lumens(250))
	test.That(t, s.Lumens(250), test.ShouldAlmostEqual, 250*defaultCollectionAreaM2)
	test.That(t, s.Lumens(0), test.ShouldEqual, 0.0)

	s, _, _ = setupSensor(t, &Config{I2CBus: "default", CollectionAreaM2: 0.5})
	test.That(t, s.Lumens(250), test.ShouldAlmostEqual, 125.0)
}

func TestReadingsAndClose(t *testing.T) {
	ctx := context.Background()
	s, dev, _ := setupSensor(t, &Config{I2CBus: "default"})
	dev.ReadData = []byte{0x01, 0x2C}

	readings, err := s.Readings(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, readings["illuminance_lux"], test.ShouldAlmostEqual, 250.0)
	test.That(t, readings["luminous_flux_lumens"], test.ShouldAlmostEqual, 250.0)

	test.That(t, s.Close(ctx), test.ShouldBeNil)
	writes := dev.Writes()
	test.That(t, writes[len(writes)-2:], test.ShouldResemble, [][]byte{{0x07}, {0x00}})
}
