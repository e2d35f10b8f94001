package genericlinux

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/net"
	"go.viam.com/test"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"go.sunprobe.dev/agent/components/board"
	"go.sunprobe.dev/agent/logging"
)

type commandCall struct {
	name string
	args []string
}

func newTestBoard(t *testing.T, playback *i2ctest.Playback) (*Board, *[]commandCall) {
	t.Helper()
	calls := []commandCall{}
	b := &Board{
		i2cs:        map[string]*i2cBus{"main": newI2cBus("main", playback)},
		logger:      logging.NewTestLogger(t),
		rtc:         filepath.Join(t.TempDir(), "wakealarm"),
		poweroffCmd: []string{"poweroff", "-f"},
		wifiIface:   "wlan0",
		interfaces: func(ctx context.Context) (net.InterfaceStatList, error) {
			return nil, nil
		},
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			calls = append(calls, commandCall{name, args})
			return nil, nil
		},
	}
	return b, &calls
}

func TestI2CHandle(t *testing.T) {
	ctx := context.Background()
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x23, W: []byte{0x01}},
			{Addr: 0x23, R: []byte{0x01, 0x2c}},
			{Addr: 0x10, W: []byte{0x0c}, R: []byte{0x26, 0x00}},
			{Addr: 0x10, W: []byte{0x00, 0x10, 0x00}},
			{Addr: 0x10, W: []byte{0x00}, R: []byte{0x11}},
			{Addr: 0x10, W: []byte{0x00, 0x11}},
		},
		DontPanic: true,
	}
	b, _ := newTestBoard(t, playback)

	bus, ok := b.I2CByName("main")
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = b.I2CByName("other")
	test.That(t, ok, test.ShouldBeFalse)

	handle, err := bus.OpenHandle(0x23)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, handle.Write(ctx, []byte{0x01}), test.ShouldBeNil)
	data, err := handle.Read(ctx, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldResemble, []byte{0x01, 0x2c})
	test.That(t, handle.Close(), test.ShouldBeNil)

	handle, err = bus.OpenHandle(0x10)
	test.That(t, err, test.ShouldBeNil)
	data, err = handle.ReadBlockData(ctx, 0x0c, 2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, data, test.ShouldResemble, []byte{0x26, 0x00})
	test.That(t, handle.WriteBlockData(ctx, 0x00, []byte{0x10, 0x00}), test.ShouldBeNil)
	value, err := handle.ReadByteData(ctx, 0x00)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, value, test.ShouldEqual, byte(0x11))
	test.That(t, handle.WriteByteData(ctx, 0x00, 0x11), test.ShouldBeNil)
	test.That(t, handle.Close(), test.ShouldBeNil)
	// A second close must not unlock the bus twice.
	test.That(t, handle.Close(), test.ShouldBeNil)

	test.That(t, playback.Close(), test.ShouldBeNil)
}

func TestI2CHandleTransportError(t *testing.T) {
	ctx := context.Background()
	playback := &i2ctest.Playback{DontPanic: true}
	b, _ := newTestBoard(t, playback)
	bus, _ := b.I2CByName("main")

	handle, err := bus.OpenHandle(0x10)
	test.That(t, err, test.ShouldBeNil)
	defer handle.Close()

	_, err = handle.ReadBlockData(ctx, 0x07, 2)
	var transportErr *board.TransportError
	test.That(t, errors.As(err, &transportErr), test.ShouldBeTrue)
	test.That(t, transportErr.Addr, test.ShouldEqual, byte(0x10))
	test.That(t, transportErr.Register, test.ShouldEqual, 0x07)
	test.That(t, transportErr.Op, test.ShouldEqual, "read block")

	err = handle.Write(ctx, []byte{0x01})
	test.That(t, errors.As(err, &transportErr), test.ShouldBeTrue)
	test.That(t, transportErr.Register, test.ShouldEqual, board.NoRegister)
	test.That(t, err.Error(), test.ShouldContainSubstring, "i2c write at address 0x10")
}

func TestStatusLED(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBoard(t, &i2ctest.Playback{DontPanic: true})

	// No LED configured is a no-op.
	b.LightOn(ctx)

	pin := &gpiotest.Pin{N: "GPIO17", Num: 17}
	b.led = pin
	b.LightOn(ctx)
	test.That(t, pin.Read(), test.ShouldEqual, gpio.High)
	b.LightOff(ctx)
	test.That(t, pin.Read(), test.ShouldEqual, gpio.Low)

	b.LightOn(ctx)
	test.That(t, b.Close(ctx), test.ShouldBeNil)
	test.That(t, pin.Read(), test.ShouldEqual, gpio.Low)
	_, ok := b.I2CByName("main")
	test.That(t, ok, test.ShouldBeFalse)
}

func TestConnected(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBoard(t, &i2ctest.Playback{DontPanic: true})
	test.That(t, b.Connected(ctx), test.ShouldBeFalse)

	ifaces := net.InterfaceStatList{
		{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: net.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
		{Name: "wlan0", Flags: []string{"up", "broadcast"}},
	}
	b.interfaces = func(ctx context.Context) (net.InterfaceStatList, error) {
		return ifaces, nil
	}
	test.That(t, b.Connected(ctx), test.ShouldBeFalse)

	ifaces[1].Addrs = net.InterfaceAddrList{{Addr: "192.168.1.20/24"}}
	test.That(t, b.Connected(ctx), test.ShouldBeTrue)

	ifaces[1].Flags = []string{"broadcast"}
	test.That(t, b.Connected(ctx), test.ShouldBeFalse)

	b.interfaces = func(ctx context.Context) (net.InterfaceStatList, error) {
		return nil, errors.New("netlink unavailable")
	}
	test.That(t, b.Connected(ctx), test.ShouldBeFalse)
}

func TestAssociate(t *testing.T) {
	ctx := context.Background()
	b, calls := newTestBoard(t, &i2ctest.Playback{DontPanic: true})

	test.That(t, b.Associate(ctx, "", ""), test.ShouldNotBeNil)

	test.That(t, b.Associate(ctx, "field-ap", "hunter2"), test.ShouldBeNil)
	test.That(t, *calls, test.ShouldHaveLength, 1)
	test.That(t, (*calls)[0].name, test.ShouldEqual, "nmcli")
	test.That(t, (*calls)[0].args, test.ShouldResemble,
		[]string{"device", "wifi", "connect", "field-ap", "password", "hunter2", "ifname", "wlan0"})

	b.runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("Error: No network with SSID 'field-ap' found."), errors.New("exit status 10")
	}
	err := b.Associate(ctx, "field-ap", "hunter2")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "No network with SSID")
}

func TestSleep(t *testing.T) {
	b, _ := newTestBoard(t, &i2ctest.Playback{DontPanic: true})

	test.That(t, b.Sleep(context.Background(), time.Millisecond), test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	test.That(t, b.Sleep(ctx, time.Hour), test.ShouldEqual, context.Canceled)
}

func TestDeepSleep(t *testing.T) {
	ctx := context.Background()
	b, calls := newTestBoard(t, &i2ctest.Playback{DontPanic: true})

	test.That(t, b.DeepSleep(ctx, 1500*time.Millisecond), test.ShouldBeNil)
	alarm, err := os.ReadFile(b.rtc)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(alarm), test.ShouldEqual, "+2")
	test.That(t, *calls, test.ShouldResemble, []commandCall{{"poweroff", []string{"-f"}}})

	b.runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("permission denied\n"), errors.New("exit status 1")
	}
	err = b.DeepSleep(ctx, time.Minute)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "poweroff -f")

	b.rtc = filepath.Join(t.TempDir(), "missing", "wakealarm")
	test.That(t, b.DeepSleep(ctx, time.Minute), test.ShouldNotBeNil)
}
