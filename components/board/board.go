// Package board defines the interfaces that let a telemetry agent talk to the hardware it runs on:
// a register-level I2C transport and the platform controller (status LED, sleep, network link).
package board

import (
	"context"
	"time"
)

// A Board represents the physical platform the agent runs on.
//
// LightOn, LightOff and Connected do not return errors. Implementations that can fail log the
// failure themselves and carry on; a missing LED must never stop a measurement cycle.
type Board interface {
	// I2CByName returns an I2C bus by name.
	I2CByName(name string) (I2C, bool)

	// LightOn switches the status LED on.
	LightOn(ctx context.Context)

	// LightOff switches the status LED off.
	LightOff(ctx context.Context)

	// Sleep pauses the calling goroutine for d while leaving the platform powered.
	Sleep(ctx context.Context, d time.Duration) error

	// DeepSleep arranges for the platform to wake up after d and powers it down. The process
	// should exit once DeepSleep returns without error.
	DeepSleep(ctx context.Context, d time.Duration) error

	// Connected reports whether the network link is up.
	Connected(ctx context.Context) bool

	// Close releases every resource held by the board.
	Close(ctx context.Context) error
}

// An Associator is a Board that can join a wireless network.
type Associator interface {
	Associate(ctx context.Context, ssid, password string) error
}
