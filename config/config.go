// Package config defines the agent configuration and reads it from a JSON file and the
// environment.
package config

import (
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.sunprobe.dev/agent/components/board"
	"go.sunprobe.dev/agent/components/sensor/bh1750"
	"go.sunprobe.dev/agent/components/sensor/veml6075"
	"go.sunprobe.dev/agent/dutycycle"
)

// Upload transports.
const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// DefaultBus is the I2C bus name used when a sensor does not name one.
const DefaultBus = "default"

// Config describes the whole agent.
type Config struct {
	DeviceID    string `json:"device_id" mapstructure:"device_id"`
	Debug       bool   `json:"debug,omitempty" mapstructure:"debug"`
	LogFile     string `json:"log_file,omitempty" mapstructure:"log_file"`
	MetricsAddr string `json:"metrics_addr,omitempty" mapstructure:"metrics_addr"`

	Upload  Upload       `json:"upload" mapstructure:"upload"`
	WiFi    WiFi         `json:"wifi" mapstructure:"wifi"`
	Cycle   Cycle        `json:"cycle" mapstructure:"cycle"`
	Board   board.Config `json:"board" mapstructure:"board"`
	Sensors Sensors      `json:"sensors" mapstructure:"sensors"`

	// ConfigFilePath is where the config was read from, if anywhere.
	ConfigFilePath string `json:"-" mapstructure:"-"`
}

// Upload selects and configures the upload transport.
type Upload struct {
	Enabled   bool          `json:"enabled" mapstructure:"enabled"`
	Transport string        `json:"transport,omitempty" mapstructure:"transport"`
	Timeout   time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`

	APIURL   string `json:"api_url,omitempty" mapstructure:"api_url"`
	APIPath  string `json:"api_path,omitempty" mapstructure:"api_path"`
	APIToken string `json:"api_token,omitempty" mapstructure:"api_token"`

	MQTTBroker   string `json:"mqtt_broker,omitempty" mapstructure:"mqtt_broker"`
	MQTTTopic    string `json:"mqtt_topic,omitempty" mapstructure:"mqtt_topic"`
	MQTTUsername string `json:"mqtt_username,omitempty" mapstructure:"mqtt_username"`
	MQTTPassword string `json:"mqtt_password,omitempty" mapstructure:"mqtt_password"`
}

// HasCredentials reports whether the selected transport has everything it needs to connect.
func (u *Upload) HasCredentials() bool {
	if u.Transport == TransportMQTT {
		return u.MQTTBroker != "" && u.MQTTTopic != ""
	}
	return u.APIURL != "" && u.APIToken != ""
}

// WiFi is the access point joined at boot.
type WiFi struct {
	SSID     string `json:"ssid,omitempty" mapstructure:"ssid"`
	Password string `json:"password,omitempty" mapstructure:"password"`
}

// Cycle configures the duty cycle.
type Cycle struct {
	UploadInterval time.Duration `json:"upload_interval,omitempty" mapstructure:"upload_interval"`
	SleepInterval  time.Duration `json:"sleep_interval,omitempty" mapstructure:"sleep_interval"`
	Cooldown       time.Duration `json:"cooldown,omitempty" mapstructure:"cooldown"`
	SleepMode      string        `json:"sleep_mode,omitempty" mapstructure:"sleep_mode"`
	// UploadOnBoot defaults to true so that a board waking from deep sleep still uploads.
	UploadOnBoot *bool `json:"upload_on_boot,omitempty" mapstructure:"upload_on_boot"`
}

// Sensors holds one section per driver.
type Sensors struct {
	BH1750   bh1750.Config   `json:"bh1750" mapstructure:"bh1750"`
	VEML6075 veml6075.Config `json:"veml6075" mapstructure:"veml6075"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	// Decoding fills in only the keys present, so a partial coefficients block keeps the rest.
	coef := veml6075.DefaultCoefficients
	return &Config{
		DeviceID: "sunprobe",
		Upload: Upload{
			Transport: TransportHTTP,
		},
		Board:   board.Config{Model: board.ModelLinux},
		Sensors: Sensors{VEML6075: veml6075.Config{Coefficients: &coef}},
	}
}

// applyDefaults fills unset fields after decoding.
func (conf *Config) applyDefaults() {
	if conf.Upload.Transport == "" {
		conf.Upload.Transport = TransportHTTP
	}
	if conf.Board.Model == "" {
		conf.Board.Model = board.ModelLinux
	}
	if conf.Cycle.SleepMode == "" {
		conf.Cycle.SleepMode = string(dutycycle.SleepModePause)
	}
	if conf.Sensors.BH1750.I2CBus == "" {
		conf.Sensors.BH1750.I2CBus = conf.defaultBus()
	}
	if conf.Sensors.VEML6075.I2CBus == "" {
		conf.Sensors.VEML6075.I2CBus = conf.defaultBus()
	}
}

func (conf *Config) defaultBus() string {
	if len(conf.Board.I2Cs) > 0 {
		return conf.Board.I2Cs[0].Name
	}
	return DefaultBus
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate() error {
	if conf.DeviceID == "" {
		return utils.NewConfigValidationFieldRequiredError("", "device_id")
	}
	switch conf.Upload.Transport {
	case TransportHTTP, TransportMQTT:
	default:
		return errors.Errorf("upload: unknown transport %q", conf.Upload.Transport)
	}
	if conf.Upload.Timeout < 0 {
		return errors.New("upload: timeout must not be negative")
	}
	switch dutycycle.SleepMode(conf.Cycle.SleepMode) {
	case dutycycle.SleepModePause, dutycycle.SleepModeDeep:
	default:
		return errors.Errorf("cycle: sleep_mode must be %q or %q", dutycycle.SleepModePause, dutycycle.SleepModeDeep)
	}
	for name, d := range map[string]time.Duration{
		"upload_interval": conf.Cycle.UploadInterval,
		"sleep_interval":  conf.Cycle.SleepInterval,
		"cooldown":        conf.Cycle.Cooldown,
	} {
		if d < 0 {
			return errors.Errorf("cycle: %s must not be negative", name)
		}
	}
	if err := conf.Board.Validate("board"); err != nil {
		return err
	}
	if err := conf.Sensors.BH1750.Validate("sensors.bh1750"); err != nil {
		return err
	}
	return conf.Sensors.VEML6075.Validate("sensors.veml6075")
}

// DutyCycle returns the controller configuration.
func (conf *Config) DutyCycle() dutycycle.Config {
	return dutycycle.Config{
		UploadInterval: conf.Cycle.UploadInterval,
		SleepInterval:  conf.Cycle.SleepInterval,
		Cooldown:       conf.Cycle.Cooldown,
		SleepMode:      dutycycle.SleepMode(conf.Cycle.SleepMode),
		UploadOnBoot:   conf.Cycle.UploadOnBoot == nil || *conf.Cycle.UploadOnBoot,
		Debug:          conf.Debug,
	}
}

// UploadActive reports whether records should be uploaded at all.
func (conf *Config) UploadActive() bool {
	return conf.Upload.Enabled && conf.Upload.HasCredentials()
}
