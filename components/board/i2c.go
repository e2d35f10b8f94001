package board

import (
	"context"
	"fmt"
)

// I2C represents a shareable I2C bus on the board.
type I2C interface {
	// OpenHandle locks returns a handle interface that MUST be closed when done.
	// you cannot have 2 open for the same addr
	OpenHandle(addr byte) (I2CHandle, error)
}

// I2CHandle is similar to an io handle. It MUST be closed to release the bus.
type I2CHandle interface {
	Write(ctx context.Context, tx []byte) error
	Read(ctx context.Context, count int) ([]byte, error)

	ReadByteData(ctx context.Context, register byte) (byte, error)
	WriteByteData(ctx context.Context, register, data byte) error

	ReadBlockData(ctx context.Context, register byte, numBytes uint8) ([]byte, error)
	WriteBlockData(ctx context.Context, register byte, data []byte) error

	// Close closes the handle and releases the lock on the bus.
	Close() error
}

// An I2CRegister is a lightweight wrapper around a handle for a particular register.
type I2CRegister struct {
	Handle   I2CHandle
	Register byte
}

// ReadByteData reads a byte from the I2C channel register.
func (reg *I2CRegister) ReadByteData(ctx context.Context) (byte, error) {
	return reg.Handle.ReadByteData(ctx, reg.Register)
}

// WriteByteData writes a byte to the I2C channel register.
func (reg *I2CRegister) WriteByteData(ctx context.Context, data byte) error {
	return reg.Handle.WriteByteData(ctx, reg.Register, data)
}

// ReadWordLE reads a 16-bit register transmitted low byte first.
func (reg *I2CRegister) ReadWordLE(ctx context.Context) (uint16, error) {
	buf, err := reg.Handle.ReadBlockData(ctx, reg.Register, 2)
	if err != nil {
		return 0, err
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}

// WriteWordLE writes a 16-bit register low byte first.
func (reg *I2CRegister) WriteWordLE(ctx context.Context, value uint16) error {
	return reg.Handle.WriteBlockData(ctx, reg.Register, []byte{byte(value), byte(value >> 8)})
}

// NoRegister marks a TransportError raised by a raw read or write that did not address a register.
const NoRegister = -1

// TransportError is returned by hardware I2C implementations when a bus transaction fails.
type TransportError struct {
	Op       string
	Addr     byte
	Register int
	Err      error
}

// NewTransportError wraps err as a failure of op against the device at addr.
func NewTransportError(op string, addr byte, register int, err error) *TransportError {
	return &TransportError{Op: op, Addr: addr, Register: register, Err: err}
}

func (e *TransportError) Error() string {
	if e.Register == NoRegister {
		return fmt.Sprintf("i2c %s at address %#02x: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("i2c %s at address %#02x register %#02x: %v", e.Op, e.Addr, e.Register, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
