// Package fake implements a fake board with register-level I2C devices held in memory.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"go.sunprobe.dev/agent/components/board"
	"go.sunprobe.dev/agent/logging"
)

// SimulatedBusName is the name of the bus created by NewSimulatedBoard.
const SimulatedBusName = "default"

var (
	_ = board.Board(&Board{})
	_ = board.Associator(&Board{})
)

// A Board provides dummy data from fake parts in order to implement a Board.
type Board struct {
	mu     sync.Mutex
	I2Cs   map[string]*I2C
	logger logging.Logger

	LightIsOn   bool
	LightToggle int
	Link        bool
	Sleeps      []time.Duration
	DeepSleeps  []time.Duration
	SleepErr    error
	CloseCount  int
	Associated  []string
}

// NewBoard returns a new fake board with one empty I2C bus per configured bus and a network link
// that reports as up.
func NewBoard(conf board.Config, logger logging.Logger) *Board {
	b := &Board{
		I2Cs:   map[string]*I2C{},
		logger: logger,
		Link:   true,
	}
	for _, c := range conf.I2Cs {
		b.I2Cs[c.Name] = NewI2C()
	}
	if len(b.I2Cs) == 0 {
		b.I2Cs[SimulatedBusName] = NewI2C()
	}
	return b
}

// NewSimulatedBoard returns a board whose default bus carries a simulated BH1750 and VEML6075.
func NewSimulatedBoard(logger logging.Logger) *Board {
	b := NewBoard(board.Config{}, logger)
	Simulate(b.I2Cs[SimulatedBusName])
	return b
}

// Simulate places a BH1750 at 0x23 and a VEML6075 at 0x10 on bus, both answering with plausible
// daylight values.
func Simulate(bus *I2C) {
	light := bus.AddDevice(0x23)
	light.ReadData = []byte{0x75, 0x30}

	uv := bus.AddDevice(0x10)
	uv.SetWordLE(0x00, 0x0001)
	uv.SetWordLE(0x07, 0x0820)
	uv.SetWordLE(0x09, 0x0610)
	uv.SetWordLE(0x0A, 0x0040)
	uv.SetWordLE(0x0B, 0x0020)
	uv.SetWordLE(0x0C, 0x0026)
}

// I2CByName returns the named fake bus.
func (b *Board) I2CByName(name string) (board.I2C, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bus, ok := b.I2Cs[name]
	if !ok {
		return nil, false
	}
	return bus, true
}

// LightOn records the LED as on.
func (b *Board) LightOn(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.LightIsOn {
		b.LightToggle++
	}
	b.LightIsOn = true
}

// LightOff records the LED as off.
func (b *Board) LightOff(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.LightIsOn {
		b.LightToggle++
	}
	b.LightIsOn = false
}

// Sleep records the duration and returns immediately unless ctx is already done.
func (b *Board) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Sleeps = append(b.Sleeps, d)
	return b.SleepErr
}

// DeepSleep records the duration and returns immediately.
func (b *Board) DeepSleep(ctx context.Context, d time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.DeepSleeps = append(b.DeepSleeps, d)
	if b.logger != nil {
		b.logger.Infow("pretending to enter deep sleep", "wake_after", d)
	}
	return b.SleepErr
}

// Connected returns the Link field.
func (b *Board) Connected(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Link
}

// Associate records the access point and brings the link up.
func (b *Board) Associate(ctx context.Context, ssid, password string) error {
	if ssid == "" {
		return errors.New("no ssid given")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Associated = append(b.Associated, ssid)
	b.Link = true
	return nil
}

// Close counts closes.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CloseCount++
	if b.CloseCount > 1 {
		return errors.New("fake board closed twice")
	}
	return nil
}
