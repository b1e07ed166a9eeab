package inhibit

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelepuginivan/statusbar/internal/broadcast"
	"github.com/shelepuginivan/statusbar/internal/log"
	"github.com/shelepuginivan/statusbar/internal/metrics"
)

// ErrStopped is returned by [Controller.Send] once the controller has
// exited.
var ErrStopped = errors.New("inhibit: controller stopped")

// DefaultDurations are cycled through when none are configured.
var DefaultDurations = []time.Duration{
	30 * time.Minute,
	time.Hour,
	2 * time.Hour,
	Indefinite,
}

const (
	defaultTick       = time.Second
	defaultQueueSize  = 8
	defaultBufferSize = 16
	inhibitReason     = "Idle inhibited from the status bar"
)

// ControllerConfig configures a [Controller]. Zero values select defaults.
type ControllerConfig struct {
	// Durations to cycle through. Zero or negative values mean Indefinite.
	Durations []time.Duration

	// Tick is the interval of remaining-time updates while active.
	Tick time.Duration

	Logger *zerolog.Logger
	Now    func() time.Time
}

// Controller is the inhibit state machine. Commands are consumed by a single
// goroutine started with [Controller.Run]; state changes are broadcast to
// subscribers.
type Controller struct {
	inhibitor Inhibitor
	durations []time.Duration
	tick      time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	commands chan Command
	states   *broadcast.Hub[State]
	done     chan struct{}

	// owned by Run
	selected int
	active   bool
	deadline time.Time
}

// NewController returns a controller driving inhibitor.
func NewController(inhibitor Inhibitor, cfg ControllerConfig) *Controller {
	durations := make([]time.Duration, 0, len(cfg.Durations))
	for _, d := range cfg.Durations {
		if d <= 0 {
			d = Indefinite
		}
		durations = append(durations, d)
	}

	if len(durations) == 0 {
		durations = append(durations, DefaultDurations...)
	}

	c := &Controller{
		inhibitor: inhibitor,
		durations: durations,
		tick:      cfg.Tick,
		now:       cfg.Now,
		commands:  make(chan Command, defaultQueueSize),
		states:    broadcast.New[State]("inhibit", defaultBufferSize),
		done:      make(chan struct{}),
	}

	if c.tick <= 0 {
		c.tick = defaultTick
	}

	if c.now == nil {
		c.now = time.Now
	}

	if cfg.Logger != nil {
		c.logger = *cfg.Logger
	} else {
		c.logger = log.WithComponent("inhibit")
	}

	return c
}

// Subscribe returns a subscription to state changes. Subscribe before Run to
// receive the initial state.
func (c *Controller) Subscribe() *broadcast.Subscription[State] {
	return c.states.Subscribe()
}

// Send queues cmd for the controller.
func (c *Controller) Send(ctx context.Context, cmd Command) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}

	select {
	case c.commands <- cmd:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Run processes commands until ctx is cancelled. An active inhibition is
// released on return and all state subscriptions are closed.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)
	defer c.states.Close()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	c.logger.Debug().Int("durations", len(c.durations)).Msg("Inhibit controller started")
	c.publish()

	for {
		select {
		case <-ctx.Done():
			if c.active {
				c.release()
			}
			return

		case cmd := <-c.commands:
			c.handle(ctx, cmd)
			c.publish()

		case <-ticker.C:
			if !c.active {
				continue
			}

			if c.expired() {
				c.logger.Info().Msg("Idle inhibition expired")
				c.release()
			}
			c.publish()
		}
	}
}

func (c *Controller) handle(ctx context.Context, cmd Command) {
	switch cmd {
	case Toggle:
		if c.active {
			c.release()
			return
		}

		if err := c.inhibitor.Inhibit(ctx, inhibitReason); err != nil {
			c.logger.Error().Err(err).Msg("Failed to inhibit idle")
			return
		}

		c.active = true
		c.deadline = c.now().Add(c.selectedDuration())
		c.logger.Info().Str("duration", FormatDuration(c.selectedDuration())).Msg("Idle inhibited")

	case Cycle:
		c.selected = (c.selected + 1) % len(c.durations)
		if c.active {
			c.deadline = c.now().Add(c.selectedDuration())
		}
	}
}

func (c *Controller) release() {
	if err := c.inhibitor.Release(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to release idle inhibitor")
	}

	c.active = false
	c.logger.Info().Msg("Idle inhibition released")
}

func (c *Controller) selectedDuration() time.Duration {
	return c.durations[c.selected]
}

func (c *Controller) expired() bool {
	if c.selectedDuration() == Indefinite {
		return false
	}

	return !c.now().Before(c.deadline)
}

// state must only be called from Run.
func (c *Controller) state() State {
	if !c.active {
		return State{Duration: c.selectedDuration()}
	}

	if c.selectedDuration() == Indefinite {
		return State{Active: true, Duration: Indefinite}
	}

	return State{Active: true, Duration: c.deadline.Sub(c.now())}
}

func (c *Controller) publish() {
	s := c.state()

	if s.Active {
		metrics.InhibitActive.Set(1)
	} else {
		metrics.InhibitActive.Set(0)
	}

	c.states.Publish(s)
}
