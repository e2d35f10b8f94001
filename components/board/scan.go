package board

import (
	"context"

	"github.com/pkg/errors"
)

// Valid 7-bit addresses outside the reserved ranges.
const (
	firstScanAddr = 0x03
	lastScanAddr  = 0x77
)

// Scan probes every non-reserved address on bus with a one byte read and returns the addresses
// that answered.
func Scan(ctx context.Context, bus I2C) ([]byte, error) {
	var found []byte
	for addr := byte(firstScanAddr); addr <= lastScanAddr; addr++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		handle, err := bus.OpenHandle(addr)
		if err != nil {
			return found, errors.Wrapf(err, "failed to open handle for %#02x", addr)
		}
		_, readErr := handle.Read(ctx, 1)
		if err := handle.Close(); err != nil {
			return found, err
		}
		if readErr == nil {
			found = append(found, addr)
		}
	}
	return found, nil
}
