package veml6075

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.sunprobe.dev/agent/components/sensor"
)

const defaultIntegrationTimeMs = 100

// Config is used for converting config attributes.
type Config struct {
	I2CBus            string        `json:"i2c_bus" mapstructure:"i2c_bus"`
	I2CAddr           int           `json:"i2c_addr,omitempty" mapstructure:"i2c_addr"`
	IntegrationTimeMs int           `json:"integration_time_ms,omitempty" mapstructure:"integration_time_ms"`
	HighDynamic       *bool         `json:"high_dynamic,omitempty" mapstructure:"high_dynamic"`
	Coefficients      *Coefficients `json:"coefficients,omitempty" mapstructure:"coefficients"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.I2CBus == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "i2c_bus")
	}
	if conf.I2CAddr < 0 || conf.I2CAddr > 0x7f {
		return errors.Errorf("%s: i2c_addr %#x is not a 7-bit address", path, conf.I2CAddr)
	}
	if conf.IntegrationTimeMs != 0 {
		if _, ok := integrationTimes[conf.IntegrationTimeMs]; !ok {
			return errors.Wrapf(sensor.ErrInvalidIntegrationTime, "%s: %d ms, supported %v",
				path, conf.IntegrationTimeMs, IntegrationTimes())
		}
	}
	if c := conf.Coefficients; c != nil && (c.UVAResponse <= 0 || c.UVBResponse <= 0) {
		return errors.Errorf("%s: coefficients uva_response and uvb_response must be positive", path)
	}
	return nil
}

func (conf *Config) highDynamic() bool {
	return conf.HighDynamic == nil || *conf.HighDynamic
}

func (conf *Config) coefficients() Coefficients {
	if conf.Coefficients == nil {
		return DefaultCoefficients
	}
	return *conf.Coefficients
}
