package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"go.sunprobe.dev/agent/components/board"
)

// ErrNoDevice is the error wrapped by a TransportError when nothing answers at an address.
var ErrNoDevice = errors.New("no device acknowledged")

// I2C is an in-memory bus of fake devices keyed by address.
type I2C struct {
	mu        sync.Mutex
	Devices   map[byte]*I2CDevice
	OpenCount int
	Handles   int
}

// NewI2C returns an empty bus.
func NewI2C() *I2C {
	return &I2C{Devices: map[byte]*I2CDevice{}}
}

// AddDevice attaches a new device at addr and returns it.
func (bus *I2C) AddDevice(addr byte) *I2CDevice {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	dev := &I2CDevice{Registers: map[byte][]byte{}}
	bus.Devices[addr] = dev
	return dev
}

// OpenHandle returns a handle to addr. Operations on an address with no device fail.
func (bus *I2C) OpenHandle(addr byte) (board.I2CHandle, error) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.OpenCount++
	bus.Handles++
	return &i2cHandle{bus: bus, addr: addr}, nil
}

// Op is one recorded bus transaction.
type Op struct {
	Kind     string
	Register int
	Data     []byte
}

// I2CDevice is a fake register-level device. Raw writes are recorded, raw reads return ReadData,
// and register reads and writes go through Registers.
type I2CDevice struct {
	mu        sync.Mutex
	Registers map[byte][]byte
	ReadData  []byte
	Ops       []Op
	// Err, when set, fails every operation.
	Err error
}

// SetWordLE stores a 16-bit value low byte first.
func (dev *I2CDevice) SetWordLE(register byte, value uint16) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.Registers[register] = []byte{byte(value), byte(value >> 8)}
}

// WordLE returns the 16-bit value of register, stored low byte first.
func (dev *I2CDevice) WordLE(register byte) uint16 {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	data := dev.Registers[register]
	var value uint16
	if len(data) > 0 {
		value = uint16(data[0])
	}
	if len(data) > 1 {
		value |= uint16(data[1]) << 8
	}
	return value
}

// Writes returns the payload of every raw write in order.
func (dev *I2CDevice) Writes() [][]byte {
	return dev.opsOfKind("write")
}

// BlockWrites returns the payload of every register block write in order.
func (dev *I2CDevice) BlockWrites() [][]byte {
	return dev.opsOfKind("write block")
}

// Reads returns how many operations of any read kind were performed.
func (dev *I2CDevice) Reads() int {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	count := 0
	for _, op := range dev.Ops {
		switch op.Kind {
		case "read", "read byte", "read block":
			count++
		}
	}
	return count
}

func (dev *I2CDevice) opsOfKind(kind string) [][]byte {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	var out [][]byte
	for _, op := range dev.Ops {
		if op.Kind == kind {
			out = append(out, op.Data)
		}
	}
	return out
}

type i2cHandle struct {
	bus    *I2C
	addr   byte
	closed bool
}

func (h *i2cHandle) device(op string, register int) (*I2CDevice, error) {
	h.bus.mu.Lock()
	dev, ok := h.bus.Devices[h.addr]
	h.bus.mu.Unlock()
	if !ok {
		return nil, board.NewTransportError(op, h.addr, register, ErrNoDevice)
	}
	if dev.Err != nil {
		return nil, board.NewTransportError(op, h.addr, register, dev.Err)
	}
	return dev, nil
}

func (h *i2cHandle) record(dev *I2CDevice, op string, register int, data []byte) {
	dev.Ops = append(dev.Ops, Op{Kind: op, Register: register, Data: append([]byte(nil), data...)})
}

func (h *i2cHandle) Write(ctx context.Context, tx []byte) error {
	dev, err := h.device("write", board.NoRegister)
	if err != nil {
		return err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	h.record(dev, "write", board.NoRegister, tx)
	return nil
}

func (h *i2cHandle) Read(ctx context.Context, count int) ([]byte, error) {
	dev, err := h.device("read", board.NoRegister)
	if err != nil {
		return nil, err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	out := make([]byte, count)
	copy(out, dev.ReadData)
	h.record(dev, "read", board.NoRegister, out)
	return out, nil
}

func (h *i2cHandle) ReadByteData(ctx context.Context, register byte) (byte, error) {
	data, err := h.readRegister("read byte", register, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (h *i2cHandle) WriteByteData(ctx context.Context, register, data byte) error {
	return h.writeRegister("write byte", register, []byte{data})
}

func (h *i2cHandle) ReadBlockData(ctx context.Context, register byte, numBytes uint8) ([]byte, error) {
	return h.readRegister("read block", register, int(numBytes))
}

func (h *i2cHandle) WriteBlockData(ctx context.Context, register byte, data []byte) error {
	return h.writeRegister("write block", register, data)
}

func (h *i2cHandle) readRegister(op string, register byte, count int) ([]byte, error) {
	dev, err := h.device(op, int(register))
	if err != nil {
		return nil, err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	out := make([]byte, count)
	copy(out, dev.Registers[register])
	h.record(dev, op, int(register), out)
	return out, nil
}

func (h *i2cHandle) writeRegister(op string, register byte, data []byte) error {
	dev, err := h.device(op, int(register))
	if err != nil {
		return err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	stored := append([]byte(nil), data...)
	dev.Registers[register] = stored
	h.record(dev, op, int(register), stored)
	return nil
}

func (h *i2cHandle) Close() error {
	if h.closed {
		return errors.New("handle already closed")
	}
	h.closed = true
	h.bus.mu.Lock()
	defer h.bus.mu.Unlock()
	h.bus.Handles--
	return nil
}
