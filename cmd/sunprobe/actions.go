package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"go.sunprobe.dev/agent/agent"
	"go.sunprobe.dev/agent/components/board"
	"go.sunprobe.dev/agent/components/sensor"
	"go.sunprobe.dev/agent/config"
	"go.sunprobe.dev/agent/logging"
)

const (
	defaultReadInterval = time.Second
	logFileMaxSizeMB    = 10
	logFileMaxBackups   = 3
	metricsShutdownWait = 5 * time.Second
)

// loadConfig reads the configuration and applies the global flags on top of it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	conf, err := config.Read(c.String(flagConfig))
	if err != nil {
		return nil, err
	}
	if c.Bool(flagDebug) {
		conf.Debug = true
	}
	if model := c.String(flagBoard); model != "" {
		conf.Board.Model = model
		if err := conf.Board.Validate("board"); err != nil {
			return nil, err
		}
	}
	return conf, nil
}

// newLogger returns the agent logger and a function releasing its file appender, if any.
func newLogger(conf *config.Config) (logging.Logger, func()) {
	var logger logging.Logger
	if conf.Debug {
		logger = logging.NewDebugLogger("sunprobe")
	} else {
		logger = logging.NewLogger("sunprobe")
	}
	if conf.LogFile == "" {
		return logger, func() {}
	}
	appender := logging.NewFileAppender(conf.LogFile, logFileMaxSizeMB, logFileMaxBackups)
	logger.AddAppender(appender)
	return logger, func() {
		goutils.UncheckedError(logger.Sync())
		goutils.UncheckedError(appender.Close())
	}
}

// RunAction is the corresponding Action for 'run'.
func RunAction(c *cli.Context) (err error) {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(conf)
	defer closeLog()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := agent.New(c.Context, conf, agent.Options{Registerer: reg}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(context.Background()); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if conf.MetricsAddr != "" {
		stop := serveMetrics(conf.MetricsAddr, reg, logger)
		defer stop()
	}
	return a.Run(c.Context)
}

func serveMetrics(addr string, reg *prometheus.Registry, logger logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	goutils.PanicCapturingGo(func() {
		logger.Infow("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("metrics server failed", "error", err)
		}
	})
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownWait)
		defer cancel()
		goutils.UncheckedError(srv.Shutdown(ctx))
	}
}

// ReadAction is the corresponding Action for 'read'. Uploads are never made.
func ReadAction(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	conf.Upload.Enabled = false
	logger, closeLog := newLogger(conf)
	defer closeLog()

	a, err := agent.New(c.Context, conf, agent.Options{}, logger)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(func() error { return a.Close(context.Background()) })

	count := c.Int(flagCount)
	sensors := []sensor.Sensor{a.Light, a.UV}
	enc := json.NewEncoder(c.App.Writer)
	for i := 0; count <= 0 || i < count; i++ {
		if i > 0 && !goutils.SelectContextOrWait(c.Context, c.Duration(flagInterval)) {
			return nil
		}
		for _, s := range sensors {
			readings, err := s.Readings(c.Context, nil)
			if err != nil {
				if c.Context.Err() != nil {
					return nil
				}
				return errors.Wrapf(err, "failed to read %s", s.Name())
			}
			if err := enc.Encode(lo.Assign(map[string]interface{}{"sensor": s.Name()}, readings)); err != nil {
				return err
			}
		}
	}
	return nil
}

// ScanAction is the corresponding Action for 'scan'.
func ScanAction(c *cli.Context) error {
	conf, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, closeLog := newLogger(conf)
	defer closeLog()

	b, err := agent.NewBoard(c.Context, conf.Board, logger)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(func() error { return b.Close(context.Background()) })

	name := c.String(flagBus)
	if name == "" {
		name = conf.Sensors.BH1750.I2CBus
	}
	bus, ok := b.I2CByName(name)
	if !ok {
		return errors.Errorf("no i2c bus named %q", name)
	}
	found, err := board.Scan(c.Context, bus)
	if err != nil {
		return err
	}
	for _, addr := range found {
		fmt.Fprintf(c.App.Writer, "0x%02x\n", addr)
	}
	if len(found) == 0 {
		logger.Infow("no devices answered", "bus", name)
	}
	return nil
}
