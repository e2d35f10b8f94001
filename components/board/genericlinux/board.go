// Package genericlinux implements a Linux-based board on top of periph.io. It exposes the
// kernel's I2C character devices, drives an optional status LED GPIO, reads link status from the
// network interfaces and powers the machine down behind an RTC wake alarm for deep sleep.
package genericlinux

import (
	"context"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/net"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"go.sunprobe.dev/agent/components/board"
	"go.sunprobe.dev/agent/logging"
)

const (
	defaultRTC      = "/sys/class/rtc/rtc0/wakealarm"
	defaultI2CName  = "default"
	defaultLinkName = "wlan0"
)

var defaultPoweroffCmd = []string{"systemctl", "poweroff"}

var (
	_ = board.Board(&Board{})
	_ = board.Associator(&Board{})
)

// Board is a periph.io-backed Linux board.
type Board struct {
	mu     sync.Mutex
	i2cs   map[string]*i2cBus
	led    gpio.PinOut
	logger logging.Logger

	rtc         string
	poweroffCmd []string
	wifiIface   string

	// Overridden in tests.
	interfaces func(ctx context.Context) (net.InterfaceStatList, error)
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewBoard initializes periph.io, opens every configured I2C bus and claims the LED pin.
// With no I2C buses configured the host's default bus is opened under the name "default".
func NewBoard(ctx context.Context, conf board.Config, logger logging.Logger) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph host drivers")
	}

	b := &Board{
		i2cs:        map[string]*i2cBus{},
		logger:      logger,
		rtc:         conf.RTC,
		poweroffCmd: conf.PoweroffCmd,
		wifiIface:   conf.WiFiIface,
		interfaces:  net.InterfacesWithContext,
		runCommand:  runCommand,
	}
	if b.rtc == "" {
		b.rtc = defaultRTC
	}
	if len(b.poweroffCmd) == 0 {
		b.poweroffCmd = defaultPoweroffCmd
	}
	if b.wifiIface == "" {
		b.wifiIface = defaultLinkName
	}

	i2cConfs := conf.I2Cs
	if len(i2cConfs) == 0 {
		i2cConfs = []board.I2CConfig{{Name: defaultI2CName}}
	}
	for _, i2cConf := range i2cConfs {
		bus, err := i2creg.Open(i2cConf.Bus)
		if err != nil {
			return nil, multierr.Combine(
				errors.Wrapf(err, "failed to open I2C bus %q", i2cConf.Bus),
				b.Close(ctx))
		}
		b.i2cs[i2cConf.Name] = newI2cBus(i2cConf.Name, bus)
	}

	if conf.LEDPin != "" {
		pin := gpioreg.ByName(conf.LEDPin)
		if pin == nil {
			return nil, multierr.Combine(
				errors.Errorf("no GPIO pin named %q for the status LED", conf.LEDPin),
				b.Close(ctx))
		}
		b.led = pin
	}
	return b, nil
}

// I2CByName returns the named I2C bus.
func (b *Board) I2CByName(name string) (board.I2C, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bus, ok := b.i2cs[name]
	if !ok {
		return nil, false
	}
	return bus, true
}

// LightOn drives the status LED high.
func (b *Board) LightOn(ctx context.Context) {
	b.setLED(gpio.High)
}

// LightOff drives the status LED low.
func (b *Board) LightOff(ctx context.Context) {
	b.setLED(gpio.Low)
}

func (b *Board) setLED(level gpio.Level) {
	if b.led == nil {
		return
	}
	if err := b.led.Out(level); err != nil {
		b.logger.Debugw("failed to set status LED", "level", level.String(), "error", err)
	}
}

// Close closes every I2C bus and switches the LED off.
func (b *Board) Close(ctx context.Context) error {
	b.LightOff(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for name, bus := range b.i2cs {
		err = multierr.Combine(err, errors.Wrapf(bus.bus.Close(), "closing I2C bus %q", name))
	}
	b.i2cs = map[string]*i2cBus{}
	return err
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	//nolint:gosec
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
