package genericlinux

import (
	"context"
	"sync"

	"periph.io/x/conn/v3/i2c"

	"go.sunprobe.dev/agent/components/board"
)

type i2cBus struct {
	name string
	bus  i2c.BusCloser
	mu   sync.Mutex
}

func newI2cBus(name string, bus i2c.BusCloser) *i2cBus {
	return &i2cBus{name: name, bus: bus}
}

// OpenHandle locks the bus until the returned handle is closed.
func (bus *i2cBus) OpenHandle(addr byte) (board.I2CHandle, error) {
	bus.mu.Lock()
	return &i2cHandle{
		dev:    &i2c.Dev{Bus: bus.bus, Addr: uint16(addr)},
		addr:   addr,
		parent: bus,
	}, nil
}

type i2cHandle struct {
	dev    *i2c.Dev
	addr   byte
	parent *i2cBus
	closed bool
}

func (h *i2cHandle) wrap(op string, register int, err error) error {
	if err == nil {
		return nil
	}
	return board.NewTransportError(op, h.addr, register, err)
}

func (h *i2cHandle) Write(ctx context.Context, tx []byte) error {
	_, err := h.dev.Write(tx)
	return h.wrap("write", board.NoRegister, err)
}

func (h *i2cHandle) Read(ctx context.Context, count int) ([]byte, error) {
	buffer := make([]byte, count)
	if err := h.dev.Tx(nil, buffer); err != nil {
		return nil, h.wrap("read", board.NoRegister, err)
	}
	return buffer, nil
}

func (h *i2cHandle) ReadByteData(ctx context.Context, register byte) (byte, error) {
	buffer := make([]byte, 1)
	if err := h.dev.Tx([]byte{register}, buffer); err != nil {
		return 0, h.wrap("read byte", int(register), err)
	}
	return buffer[0], nil
}

func (h *i2cHandle) WriteByteData(ctx context.Context, register, data byte) error {
	_, err := h.dev.Write([]byte{register, data})
	return h.wrap("write byte", int(register), err)
}

func (h *i2cHandle) ReadBlockData(ctx context.Context, register byte, numBytes uint8) ([]byte, error) {
	buffer := make([]byte, numBytes)
	if err := h.dev.Tx([]byte{register}, buffer); err != nil {
		return nil, h.wrap("read block", int(register), err)
	}
	return buffer, nil
}

// On devices that use registers, writing the register address followed by the payload in one
// transaction is a block write.
func (h *i2cHandle) WriteBlockData(ctx context.Context, register byte, data []byte) error {
	rawData := make([]byte, len(data)+1)
	rawData[0] = register
	copy(rawData[1:], data)
	_, err := h.dev.Write(rawData)
	return h.wrap("write block", int(register), err)
}

func (h *i2cHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.parent.mu.Unlock()
	return nil
}
