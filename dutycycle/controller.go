// Package dutycycle implements the measurement loop of the agent: acquire a record, upload it when
// the upload interval has passed, then sleep until the next cycle.
package dutycycle

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.sunprobe.dev/agent/components/board"
	"go.sunprobe.dev/agent/logging"
	"go.sunprobe.dev/agent/telemetry"
)

// Defaults for Config.
const (
	DefaultUploadInterval = 30 * time.Second
	DefaultSleepInterval  = time.Second
	DefaultCooldown       = time.Second
)

// Config configures a Controller.
type Config struct {
	UploadInterval time.Duration
	SleepInterval  time.Duration
	// Cooldown replaces SleepInterval after a failed acquisition or upload.
	Cooldown  time.Duration
	SleepMode SleepMode
	// UploadOnBoot makes the first successful acquisition upload immediately. Otherwise the
	// first upload waits one UploadInterval from construction.
	UploadOnBoot bool
	// Debug enables logging of cycle failures.
	Debug bool
}

// An Acquirer produces one telemetry record.
type Acquirer interface {
	Acquire(ctx context.Context) (telemetry.Record, error)
}

// Controller owns the duty cycle state. It is driven from a single goroutine.
type Controller struct {
	conf     Config
	board    board.Board
	acquirer Acquirer
	uploader telemetry.Uploader
	clock    clock.Clock
	metrics  *Metrics
	logger   logging.Logger

	mu           sync.Mutex
	state        State
	lastUploadAt time.Time
	deepSlept    bool
}

// NewController returns a controller in the idle state. uploader may be nil to never upload and
// metrics may be nil to skip instrumentation.
func NewController(
	conf Config,
	b board.Board,
	acquirer Acquirer,
	uploader telemetry.Uploader,
	clk clock.Clock,
	metrics *Metrics,
	logger logging.Logger,
) *Controller {
	if conf.UploadInterval <= 0 {
		conf.UploadInterval = DefaultUploadInterval
	}
	if conf.SleepInterval <= 0 {
		conf.SleepInterval = DefaultSleepInterval
	}
	if conf.Cooldown <= 0 {
		conf.Cooldown = DefaultCooldown
	}
	if conf.SleepMode == "" {
		conf.SleepMode = SleepModePause
	}
	if clk == nil {
		clk = clock.New()
	}
	c := &Controller{
		conf:     conf,
		board:    b,
		acquirer: acquirer,
		uploader: uploader,
		clock:    clk,
		metrics:  metrics,
		logger:   logger,
	}
	if !conf.UploadOnBoot {
		c.lastUploadAt = clk.Now()
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastUploadAt returns when the last upload was attempted.
func (c *Controller) LastUploadAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUploadAt
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Controller) debugFailure(msg string, err error) {
	if c.conf.Debug {
		c.logger.Debugw(msg, "error", err)
	}
}

// RunCycle runs one Idle, Acquiring, (Uploading,) Sleeping pass and returns to Idle. Acquisition
// and upload failures, panics included, are absorbed and followed by the cooldown sleep. A failed
// acquisition skips the upload. Only a failure to sleep is returned.
func (c *Controller) RunCycle(ctx context.Context) error {
	c.setState(StateAcquiring)
	c.board.LightOn(ctx)

	sleepFor := c.conf.SleepInterval
	var record telemetry.Record
	start := c.clock.Now()
	err := safeRun(func() error {
		var err error
		record, err = c.acquirer.Acquire(ctx)
		return err
	})
	if c.metrics != nil {
		c.metrics.cycles.WithLabelValues(result(err)).Inc()
	}
	if err != nil {
		c.debugFailure("acquisition failed", err)
		sleepFor = c.conf.Cooldown
	} else {
		if c.metrics != nil {
			c.metrics.acquisition.Observe(c.clock.Since(start).Seconds())
		}
		if err := c.maybeUpload(ctx, record); err != nil {
			sleepFor = c.conf.Cooldown
		}
	}

	c.setState(StateSleeping)
	c.board.LightOff(ctx)
	err = c.sleep(ctx, sleepFor)
	c.setState(StateIdle)
	return err
}

func (c *Controller) maybeUpload(ctx context.Context, record telemetry.Record) error {
	if c.uploader == nil {
		return nil
	}
	now := c.clock.Now()
	if !telemetry.ShouldUpload(now, c.LastUploadAt(), c.conf.UploadInterval) {
		return nil
	}

	c.setState(StateUploading)
	err := safeRun(func() error {
		return c.uploader.Upload(ctx, record)
	})

	// The upload is fire-and-forget: a failed attempt still waits a full interval.
	c.mu.Lock()
	c.lastUploadAt = now
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.uploads.WithLabelValues(result(err)).Inc()
		if err == nil {
			c.metrics.lastUpload.Set(float64(now.Unix()))
		}
	}
	if err != nil {
		c.debugFailure("upload failed", err)
		return err
	}
	c.logger.Infow("uploaded record", "lux", record.IlluminanceLux, "uv_index", record.UVIndex)
	return nil
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if c.conf.SleepMode == SleepModeDeep {
		err := c.board.DeepSleep(ctx, d)
		if err == nil {
			c.mu.Lock()
			c.deepSlept = true
			c.mu.Unlock()
			return nil
		}
		c.logger.Warnw("deep sleep failed, pausing instead", "error", err)
	}
	return c.board.Sleep(ctx, d)
}

// DeepSlept reports whether the board has been sent into deep sleep.
func (c *Controller) DeepSlept() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deepSlept
}

// Run repeats cycles until ctx is done or the board entered deep sleep. Cancellation is a clean
// shutdown and returns nil.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.RunCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if c.DeepSlept() {
			return nil
		}
	}
}
