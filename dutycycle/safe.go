package dutycycle

import (
	"github.com/pkg/errors"
)

// safeRun runs fn and turns a panic into an error.
func safeRun(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}
