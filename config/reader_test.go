package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.sunprobe.dev/agent/components/board"
	"go.sunprobe.dev/agent/components/sensor"
	"go.sunprobe.dev/agent/components/sensor/veml6075"
	"go.sunprobe.dev/agent/dutycycle"
	"go.sunprobe.dev/agent/testutils"
)

func noEnv(string) (string, bool) {
	return "", false
}

func envFrom(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	return testutils.WriteTempFile(t, "sunprobe.json", contents)
}

func TestRead(t *testing.T) {
	t.Setenv("TEST_SUNPROBE_TOKEN", "s3cret")
	path := writeConfig(t, `{
		"device_id": "roof-1",
		"upload": {
			"enabled": true,
			"api_url": "https://api.example.com",
			"api_path": "/v1/readings",
			"api_token": "${TEST_SUNPROBE_TOKEN}",
			"timeout": "5s"
		},
		"cycle": {"upload_interval": "1m", "sleep_interval": "2s", "sleep_mode": "deep", "upload_on_boot": false},
		"board": {"model": "fake", "i2cs": [{"name": "i2c1", "bus": "1"}]},
		"sensors": {
			"bh1750": {"high_resolution": false, "measurement_accuracy": 1.2},
			"veml6075": {"integration_time_ms": 200}
		}
	}`)

	conf, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, conf.DeviceID, test.ShouldEqual, "roof-1")
	test.That(t, conf.Upload.APIToken, test.ShouldEqual, "s3cret")
	test.That(t, conf.Upload.Timeout, test.ShouldEqual, 5*time.Second)
	test.That(t, conf.Upload.Transport, test.ShouldEqual, TransportHTTP)
	test.That(t, conf.UploadActive(), test.ShouldBeTrue)
	test.That(t, conf.Board.Model, test.ShouldEqual, board.ModelFake)
	test.That(t, conf.Sensors.BH1750.I2CBus, test.ShouldEqual, "i2c1")
	test.That(t, conf.Sensors.VEML6075.I2CBus, test.ShouldEqual, "i2c1")
	test.That(t, *conf.Sensors.BH1750.HighResolution, test.ShouldBeFalse)
	test.That(t, conf.Sensors.VEML6075.IntegrationTimeMs, test.ShouldEqual, 200)

	test.That(t, conf.DutyCycle(), test.ShouldResemble, dutycycle.Config{
		UploadInterval: time.Minute,
		SleepInterval:  2 * time.Second,
		SleepMode:      dutycycle.SleepModeDeep,
	})
}

func TestReadErrors(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to read config file")

	_, err = Read(writeConfig(t, `{"device_id": `))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "failed to decode config from json")

	_, err = Read(writeConfig(t, `{"board": {"model": "fake"}, "colour": "blue"}`))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "colour")
}

func TestReadNull(t *testing.T) {
	t.Setenv("SUNPROBE_DEVICE_ID", "roof-2")
	t.Setenv("SUNPROBE_BOARD", "fake")
	conf, err := Read(writeConfig(t, `null`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.DeviceID, test.ShouldEqual, "roof-2")
	test.That(t, conf.Board.Model, test.ShouldEqual, board.ModelFake)

	conf, err = FromMap(nil, envFrom(map[string]string{"SUNPROBE_DEBUG": "true"}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Debug, test.ShouldBeTrue)
}

func TestPartialCoefficients(t *testing.T) {
	conf, err := FromMap(map[string]interface{}{
		"sensors": map[string]interface{}{
			"veml6075": map[string]interface{}{
				"coefficients": map[string]interface{}{"uva_a": 2.0},
			},
		},
	}, noEnv)
	test.That(t, err, test.ShouldBeNil)
	want := veml6075.DefaultCoefficients
	want.A = 2.0
	test.That(t, *conf.Sensors.VEML6075.Coefficients, test.ShouldResemble, want)

	// Defaults are copied, never shared.
	test.That(t, veml6075.DefaultCoefficients.A, test.ShouldEqual, 2.22)

	_, err = FromMap(map[string]interface{}{
		"sensors": map[string]interface{}{
			"veml6075": map[string]interface{}{
				"coefficients": map[string]interface{}{"uvb_response": 0},
			},
		},
	}, noEnv)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "uvb_response")
}

func TestDefaults(t *testing.T) {
	conf, err := FromMap(map[string]interface{}{}, noEnv)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.DeviceID, test.ShouldEqual, "sunprobe")
	test.That(t, conf.Board.Model, test.ShouldEqual, board.ModelLinux)
	test.That(t, conf.Cycle.SleepMode, test.ShouldEqual, "pause")
	test.That(t, conf.Sensors.BH1750.I2CBus, test.ShouldEqual, DefaultBus)
	test.That(t, conf.UploadActive(), test.ShouldBeFalse)

	dc := conf.DutyCycle()
	test.That(t, dc.UploadOnBoot, test.ShouldBeTrue)
	test.That(t, dc.Debug, test.ShouldBeFalse)
}

func TestEnvironmentOverrides(t *testing.T) {
	raw := map[string]interface{}{
		"device_id": "from-file",
		"upload":    map[string]interface{}{"api_url": "https://file.example.com"},
	}
	conf, err := FromMap(raw, envFrom(map[string]string{
		"SUNPROBE_UPLOAD_API":      "yes",
		"SUNPROBE_API_URL":         "https://env.example.com",
		"SUNPROBE_API_TOKEN":       "abc",
		"SUNPROBE_AP_NAME":         "greenhouse",
		"SUNPROBE_AP_PASS":         "hunter2",
		"SUNPROBE_DEBUG":           "1",
		"SUNPROBE_UPLOAD_INTERVAL": "45s",
		"SUNPROBE_UPLOAD_ON_BOOT":  "no",
		"SUNPROBE_BOARD":           "fake",
	}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.DeviceID, test.ShouldEqual, "from-file")
	test.That(t, conf.Upload.Enabled, test.ShouldBeTrue)
	test.That(t, conf.Upload.APIURL, test.ShouldEqual, "https://env.example.com")
	test.That(t, conf.WiFi, test.ShouldResemble, WiFi{SSID: "greenhouse", Password: "hunter2"})
	test.That(t, conf.Debug, test.ShouldBeTrue)
	test.That(t, conf.Cycle.UploadInterval, test.ShouldEqual, 45*time.Second)
	test.That(t, *conf.Cycle.UploadOnBoot, test.ShouldBeFalse)
	test.That(t, conf.Board.Model, test.ShouldEqual, board.ModelFake)
	test.That(t, conf.UploadActive(), test.ShouldBeTrue)
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"true", "TRUE", "yes", "YES", "1", " true "} {
		test.That(t, IsTruthy(v), test.ShouldBeTrue)
	}
	for _, v := range []string{"", "0", "false", "no", "on", "enabled"} {
		test.That(t, IsTruthy(v), test.ShouldBeFalse)
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  map[string]interface{}
		msg  string
	}{
		{"empty device id", map[string]interface{}{"device_id": ""}, "device_id"},
		{"transport", map[string]interface{}{"upload": map[string]interface{}{"transport": "carrier-pigeon"}}, "unknown transport"},
		{"sleep mode", map[string]interface{}{"cycle": map[string]interface{}{"sleep_mode": "hibernate"}}, "sleep_mode"},
		{"negative interval", map[string]interface{}{"cycle": map[string]interface{}{"cooldown": "-1s"}}, "cooldown"},
		{"board model", map[string]interface{}{"board": map[string]interface{}{"model": "esp32"}}, "unknown board model"},
		{"bus name", map[string]interface{}{
			"board": map[string]interface{}{"i2cs": []interface{}{map[string]interface{}{"bus": "1"}}},
		}, "name"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromMap(tc.raw, noEnv)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.msg)
		})
	}

	_, err := FromMap(map[string]interface{}{
		"sensors": map[string]interface{}{"veml6075": map[string]interface{}{"integration_time_ms": 300}},
	}, noEnv)
	test.That(t, errors.Is(err, sensor.ErrInvalidIntegrationTime), test.ShouldBeTrue)
}

func TestHasCredentials(t *testing.T) {
	u := Upload{Transport: TransportHTTP, APIURL: "https://api.example.com"}
	test.That(t, u.HasCredentials(), test.ShouldBeFalse)
	u.APIToken = "t"
	test.That(t, u.HasCredentials(), test.ShouldBeTrue)

	u = Upload{Transport: TransportMQTT, MQTTBroker: "tcp://broker:1883"}
	test.That(t, u.HasCredentials(), test.ShouldBeFalse)
	u.MQTTTopic = "sunprobe"
	test.That(t, u.HasCredentials(), test.ShouldBeTrue)
}
