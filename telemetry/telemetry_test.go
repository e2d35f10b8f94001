package telemetry_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.sunprobe.dev/agent/telemetry"
	"go.sunprobe.dev/agent/testutils/inject"
)

func TestShouldUpload(t *testing.T) {
	last := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	interval := 30 * time.Second

	test.That(t, telemetry.ShouldUpload(last.Add(29*time.Second), last, interval), test.ShouldBeFalse)
	test.That(t, telemetry.ShouldUpload(last.Add(30*time.Second), last, interval), test.ShouldBeFalse)
	test.That(t, telemetry.ShouldUpload(last.Add(31*time.Second), last, interval), test.ShouldBeTrue)
	test.That(t, telemetry.ShouldUpload(last, time.Time{}, interval), test.ShouldBeTrue)
}

func TestRecordJSON(t *testing.T) {
	record := telemetry.Record{
		DeviceID:           "probe-1",
		IlluminanceLux:     250,
		LuminousFluxLumens: 250,
		UVIndex:            1.4,
		UVACounts:          849.1,
		UVBCounts:          600.3,
		Timestamp:          time.Now(),
	}
	body, err := json.Marshal(record)
	test.That(t, err, test.ShouldBeNil)

	fields := map[string]interface{}{}
	test.That(t, json.Unmarshal(body, &fields), test.ShouldBeNil)
	test.That(t, fields, test.ShouldResemble, map[string]interface{}{
		"device_id":            "probe-1",
		"illuminance_lux":      250.0,
		"luminous_flux_lumens": 250.0,
		"uv_index":             1.4,
		"uva_counts":           849.1,
		"uvb_counts":           600.3,
	})
}

type fakeSensors struct {
	light *inject.IlluminanceSensor
	uv    *inject.UVSensor
	calls []string
}

func newFakeSensors() *fakeSensors {
	f := &fakeSensors{
		light: inject.NewIlluminanceSensor("light"),
		uv:    inject.NewUVSensor("uv"),
	}
	f.light.IlluminanceFunc = func(ctx context.Context) (float64, error) {
		f.calls = append(f.calls, "illuminance")
		return 250, nil
	}
	f.light.LumensFunc = func(lux float64) float64 {
		f.calls = append(f.calls, "lumens")
		return lux * 2
	}
	f.uv.UVIndexFunc = func(ctx context.Context) (float64, error) {
		f.calls = append(f.calls, "uv_index")
		return 1.4, nil
	}
	f.uv.UVAFunc = func(ctx context.Context) (float64, error) {
		f.calls = append(f.calls, "uva")
		return 849.1, nil
	}
	f.uv.UVBFunc = func(ctx context.Context) (float64, error) {
		f.calls = append(f.calls, "uvb")
		return 600.3, nil
	}
	return f
}

func TestAcquire(t *testing.T) {
	f := newFakeSensors()
	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	acquirer := telemetry.NewAcquirer("probe-1", f.light, f.uv)
	acquirer.Clock = mockClock

	record, err := acquirer.Acquire(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.calls, test.ShouldResemble, []string{"illuminance", "lumens", "uv_index", "uva", "uvb"})
	test.That(t, record, test.ShouldResemble, telemetry.Record{
		DeviceID:           "probe-1",
		IlluminanceLux:     250,
		LuminousFluxLumens: 500,
		UVIndex:            1.4,
		UVACounts:          849.1,
		UVBCounts:          600.3,
		Timestamp:          mockClock.Now(),
	})
}

func TestAcquireAbortsOnFailure(t *testing.T) {
	busErr := errors.New("i2c read at address 0x10 register 0x07: timeout")

	f := newFakeSensors()
	f.uv.UVAFunc = func(ctx context.Context) (float64, error) {
		f.calls = append(f.calls, "uva")
		return 0, busErr
	}
	acquirer := telemetry.NewAcquirer("probe-1", f.light, f.uv)

	record, err := acquirer.Acquire(context.Background())
	test.That(t, errors.Is(err, busErr), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldStartWith, "reading uva")
	test.That(t, record, test.ShouldResemble, telemetry.Record{})
	test.That(t, f.calls, test.ShouldResemble, []string{"illuminance", "lumens", "uv_index", "uva"})

	f = newFakeSensors()
	f.light.IlluminanceFunc = func(ctx context.Context) (float64, error) {
		f.calls = append(f.calls, "illuminance")
		return 0, busErr
	}
	acquirer = telemetry.NewAcquirer("probe-1", f.light, f.uv)
	_, err = acquirer.Acquire(context.Background())
	test.That(t, err.Error(), test.ShouldStartWith, "reading illuminance")
	test.That(t, f.calls, test.ShouldResemble, []string{"illuminance"})
}
