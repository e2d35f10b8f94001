package testutils

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
)

var waitDur = 5 * time.Second

// WaitSuccessfulDial waits for a TCP listener to accept on address.
func WaitSuccessfulDial(address string) error {
	ctx, cancel := context.WithTimeout(context.Background(), waitDur)
	defer cancel()
	lastErr := errors.New("timed out dialing")
	var dialer net.Dialer
	for {
		select {
		case <-ctx.Done():
			return errors.Wrapf(lastErr, "dialing %s", address)
		case <-time.After(10 * time.Millisecond):
		}
		var conn net.Conn
		conn, lastErr = dialer.DialContext(ctx, "tcp", address)
		if lastErr == nil {
			return conn.Close()
		}
	}
}
