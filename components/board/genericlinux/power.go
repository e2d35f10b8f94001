package genericlinux

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// Sleep blocks for d or until ctx is done.
func (b *Board) Sleep(ctx context.Context, d time.Duration) error {
	if !goutils.SelectContextOrWait(ctx, d) {
		return ctx.Err()
	}
	return nil
}

// DeepSleep programs the RTC to wake the machine after d and then runs the poweroff command.
// Wake alarms have one second resolution, so d is rounded up to a whole second.
func (b *Board) DeepSleep(ctx context.Context, d time.Duration) error {
	seconds := int64((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	// The kernel refuses to overwrite an armed alarm, so it is cleared first.
	if err := os.WriteFile(b.rtc, []byte("0"), 0o600); err != nil {
		return errors.Wrapf(err, "failed to clear wake alarm %s", b.rtc)
	}
	if err := os.WriteFile(b.rtc, []byte(fmt.Sprintf("+%d", seconds)), 0o600); err != nil {
		return errors.Wrapf(err, "failed to arm wake alarm %s", b.rtc)
	}
	b.logger.Infow("entering deep sleep", "wake_after", time.Duration(seconds)*time.Second)

	out, err := b.runCommand(ctx, b.poweroffCmd[0], b.poweroffCmd[1:]...)
	if err != nil {
		return errors.Wrapf(err, "poweroff command %q failed: %s",
			strings.Join(b.poweroffCmd, " "), strings.TrimSpace(string(out)))
	}
	return nil
}
