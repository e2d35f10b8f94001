package bh1750

import (
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

const (
	byteOrderBig    = "big"
	byteOrderLittle = "little"
)

// Config is used for converting config attributes.
type Config struct {
	I2CBus  string `json:"i2c_bus" mapstructure:"i2c_bus"`
	I2CAddr int    `json:"i2c_addr,omitempty" mapstructure:"i2c_addr"`

	// Both default to true.
	HighResolution *bool `json:"high_resolution,omitempty" mapstructure:"high_resolution"`
	Continuous     *bool `json:"continuous,omitempty" mapstructure:"continuous"`

	Accuracy         float64 `json:"measurement_accuracy,omitempty" mapstructure:"measurement_accuracy"`
	ByteOrder        string  `json:"byte_order,omitempty" mapstructure:"byte_order"`
	CollectionAreaM2 float64 `json:"collection_area_m2,omitempty" mapstructure:"collection_area_m2"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.I2CBus == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "i2c_bus")
	}
	if conf.I2CAddr < 0 || conf.I2CAddr > 0x7f {
		return errors.Errorf("%s: i2c_addr %#x is not a 7-bit address", path, conf.I2CAddr)
	}
	switch conf.ByteOrder {
	case "", byteOrderBig, byteOrderLittle:
	default:
		return errors.Errorf("%s: byte_order must be %q or %q", path, byteOrderBig, byteOrderLittle)
	}
	if conf.CollectionAreaM2 < 0 {
		return errors.Errorf("%s: collection_area_m2 must be positive", path)
	}
	return nil
}

func (conf *Config) highResolution() bool {
	return conf.HighResolution == nil || *conf.HighResolution
}

func (conf *Config) continuous() bool {
	return conf.Continuous == nil || *conf.Continuous
}
