package board

import (
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// I2CConfig enumerates a specific, shareable I2C bus.
type I2CConfig struct {
	Name string `json:"name" mapstructure:"name"`
	Bus  string `json:"bus" mapstructure:"bus"`
}

// Validate ensures all parts of the config are valid.
func (config *I2CConfig) Validate(path string) error {
	if config.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if config.Bus == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "bus")
	}
	return nil
}

// Board models.
const (
	ModelLinux = "linux"
	ModelFake  = "fake"
)

// A Config describes the configuration of a board and all of its connected parts.
type Config struct {
	Model string      `json:"model" mapstructure:"model"`
	I2Cs  []I2CConfig `json:"i2cs,omitempty" mapstructure:"i2cs"`
	// LEDPin is the periph.io name of the status LED GPIO, e.g. "GPIO17". Empty disables the LED.
	LEDPin string `json:"led_pin,omitempty" mapstructure:"led_pin"`
	// RTC is the sysfs wake alarm used before powering off.
	RTC         string   `json:"rtc,omitempty" mapstructure:"rtc"`
	PoweroffCmd []string `json:"poweroff_cmd,omitempty" mapstructure:"poweroff_cmd"`
	WiFiIface   string   `json:"wifi_interface,omitempty" mapstructure:"wifi_interface"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	switch config.Model {
	case ModelLinux, ModelFake:
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "model")
	default:
		return errors.Errorf("%s: unknown board model %q", path, config.Model)
	}
	for idx, conf := range config.I2Cs {
		if err := conf.Validate(fmt.Sprintf("%s.%s.%d", path, "i2cs", idx)); err != nil {
			return err
		}
	}
	return nil
}
