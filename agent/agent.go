// Package agent assembles a running telemetry agent from its configuration: the board, both
// sensor drivers, the upload transport and the duty-cycle controller.
package agent

import (
	"context"
	"io"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"go.sunprobe.dev/agent/components/board"
	"go.sunprobe.dev/agent/components/board/fake"
	"go.sunprobe.dev/agent/components/board/genericlinux"
	"go.sunprobe.dev/agent/components/sensor/bh1750"
	"go.sunprobe.dev/agent/components/sensor/veml6075"
	"go.sunprobe.dev/agent/config"
	"go.sunprobe.dev/agent/dutycycle"
	"go.sunprobe.dev/agent/logging"
	"go.sunprobe.dev/agent/telemetry"
	"go.sunprobe.dev/agent/telemetry/httpupload"
	"go.sunprobe.dev/agent/telemetry/mqttupload"
)

// NewBoard returns the board named by conf.Model. The fake board carries simulated sensors on
// every configured bus.
func NewBoard(ctx context.Context, conf board.Config, logger logging.Logger) (board.Board, error) {
	switch conf.Model {
	case board.ModelFake:
		b := fake.NewBoard(conf, logger)
		for _, bus := range b.I2Cs {
			fake.Simulate(bus)
		}
		return b, nil
	case board.ModelLinux, "":
		b, err := genericlinux.NewBoard(ctx, conf, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, errors.Errorf("unknown board model %q", conf.Model)
	}
}

// An Agent owns everything built from one configuration.
type Agent struct {
	Board      board.Board
	Light      *bh1750.Sensor
	UV         *veml6075.Sensor
	Uploader   telemetry.Uploader
	Controller *dutycycle.Controller

	logger logging.Logger
}

// Options carries the collaborators New would otherwise create itself.
type Options struct {
	// Board replaces the board described by the config. The agent closes it.
	Board board.Board
	// Registerer receives the controller metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	Clock      clock.Clock
}

// New builds an agent from conf. On error everything built so far is closed.
func New(ctx context.Context, conf *config.Config, opts Options, logger logging.Logger) (a *Agent, err error) {
	a = &Agent{Board: opts.Board, logger: logger}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, a.Close(ctx))
			a = nil
		}
	}()

	if a.Board == nil {
		if a.Board, err = NewBoard(ctx, conf.Board, logger.Sublogger("board")); err != nil {
			return a, err
		}
	}

	if conf.UploadActive() && conf.WiFi.SSID != "" {
		if associator, ok := a.Board.(board.Associator); ok {
			if err := associator.Associate(ctx, conf.WiFi.SSID, conf.WiFi.Password); err != nil {
				// Uploads fail fast with a down link; measuring continues.
				logger.Warnw("failed to join Wi-Fi network", "ssid", conf.WiFi.SSID, "error", err)
			}
		}
	}

	lightBus, ok := a.Board.I2CByName(conf.Sensors.BH1750.I2CBus)
	if !ok {
		return a, errors.Errorf("no i2c bus named %q for bh1750", conf.Sensors.BH1750.I2CBus)
	}
	if a.Light, err = bh1750.NewSensor(ctx, lightBus, "bh1750", &conf.Sensors.BH1750, logger.Sublogger("bh1750")); err != nil {
		return a, errors.Wrap(err, "failed to set up bh1750")
	}

	uvBus, ok := a.Board.I2CByName(conf.Sensors.VEML6075.I2CBus)
	if !ok {
		return a, errors.Errorf("no i2c bus named %q for veml6075", conf.Sensors.VEML6075.I2CBus)
	}
	if a.UV, err = veml6075.NewSensor(ctx, uvBus, "veml6075", &conf.Sensors.VEML6075, logger.Sublogger("veml6075")); err != nil {
		return a, errors.Wrap(err, "failed to set up veml6075")
	}

	if conf.UploadActive() {
		if a.Uploader, err = newUploader(conf, a.Board, logger.Sublogger("upload")); err != nil {
			return a, err
		}
	} else if conf.Upload.Enabled {
		logger.Warnw("upload enabled without credentials, records will not be sent", "transport", conf.Upload.Transport)
	}

	var metrics *dutycycle.Metrics
	if opts.Registerer != nil {
		if metrics, err = dutycycle.NewMetrics(opts.Registerer); err != nil {
			return a, errors.Wrap(err, "failed to register metrics")
		}
	}

	acquirer := telemetry.NewAcquirer(conf.DeviceID, a.Light, a.UV)
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	acquirer.Clock = clk
	a.Controller = dutycycle.NewController(
		conf.DutyCycle(), a.Board, acquirer, a.Uploader, clk, metrics, logger.Sublogger("dutycycle"))
	return a, nil
}

func newUploader(conf *config.Config, b board.Board, logger logging.Logger) (telemetry.Uploader, error) {
	if conf.Upload.Transport == config.TransportMQTT {
		u, err := mqttupload.NewUploader(mqttupload.Config{
			Broker:   conf.Upload.MQTTBroker,
			Topic:    conf.Upload.MQTTTopic,
			ClientID: conf.DeviceID,
			Username: conf.Upload.MQTTUsername,
			Password: conf.Upload.MQTTPassword,
			Timeout:  conf.Upload.Timeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return u, nil
	}
	u, err := httpupload.NewUploader(httpupload.Config{
		URL:     conf.Upload.APIURL,
		Path:    conf.Upload.APIPath,
		Token:   conf.Upload.APIToken,
		Timeout: conf.Upload.Timeout,
	}, b, logger)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Run runs the duty cycle until ctx is done or the board went into deep sleep.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Infow("starting duty cycle", "light", a.Light.Name(), "uv", a.UV.Name(), "upload", a.Uploader != nil)
	return a.Controller.Run(ctx)
}

// Close powers the sensors down, disconnects the transport and releases the board.
func (a *Agent) Close(ctx context.Context) error {
	var err error
	if a.Light != nil {
		err = multierr.Combine(err, a.Light.Close(ctx))
	}
	if a.UV != nil {
		err = multierr.Combine(err, a.UV.Close(ctx))
	}
	if closer, ok := a.Uploader.(io.Closer); ok {
		err = multierr.Combine(err, closer.Close())
	}
	if a.Board != nil {
		err = multierr.Combine(err, a.Board.Close(ctx))
	}
	return err
}
