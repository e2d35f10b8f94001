package inject

import (
	"context"
	"time"

	"go.sunprobe.dev/agent/components/board"
)

// Board is an injected board.
type Board struct {
	board.Board
	I2CByNameFunc func(name string) (board.I2C, bool)
	LightOnFunc   func(ctx context.Context)
	LightOffFunc  func(ctx context.Context)
	SleepFunc     func(ctx context.Context, d time.Duration) error
	DeepSleepFunc func(ctx context.Context, d time.Duration) error
	ConnectedFunc func(ctx context.Context) bool
	CloseFunc     func(ctx context.Context) error
}

// I2CByName calls the injected I2CByName or the real version.
func (b *Board) I2CByName(name string) (board.I2C, bool) {
	if b.I2CByNameFunc == nil {
		return b.Board.I2CByName(name)
	}
	return b.I2CByNameFunc(name)
}

// LightOn calls the injected LightOn or the real version.
func (b *Board) LightOn(ctx context.Context) {
	if b.LightOnFunc == nil {
		b.Board.LightOn(ctx)
		return
	}
	b.LightOnFunc(ctx)
}

// LightOff calls the injected LightOff or the real version.
func (b *Board) LightOff(ctx context.Context) {
	if b.LightOffFunc == nil {
		b.Board.LightOff(ctx)
		return
	}
	b.LightOffFunc(ctx)
}

// Sleep calls the injected Sleep or the real version.
func (b *Board) Sleep(ctx context.Context, d time.Duration) error {
	if b.SleepFunc == nil {
		return b.Board.Sleep(ctx, d)
	}
	return b.SleepFunc(ctx, d)
}

// DeepSleep calls the injected DeepSleep or the real version.
func (b *Board) DeepSleep(ctx context.Context, d time.Duration) error {
	if b.DeepSleepFunc == nil {
		return b.Board.DeepSleep(ctx, d)
	}
	return b.DeepSleepFunc(ctx, d)
}

// Connected calls the injected Connected or the real version.
func (b *Board) Connected(ctx context.Context) bool {
	if b.ConnectedFunc == nil {
		return b.Board.Connected(ctx)
	}
	return b.ConnectedFunc(ctx)
}

// Close calls the injected Close or the real version.
func (b *Board) Close(ctx context.Context) error {
	if b.CloseFunc == nil {
		if b.Board == nil {
			return nil
		}
		return b.Board.Close(ctx)
	}
	return b.CloseFunc(ctx)
}
