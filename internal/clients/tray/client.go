// Package tray wraps the system tray host so that any number of consumers in
// the process can follow the tray.
//
// The tray host sends the menu path and menu tree of an item only once, to
// whoever is reading its event stream at that moment. Client reads that
// stream on its own, remembers the menu bootstrap state of every item, and
// replays it to each new subscriber before handing out the live tail.
package tray

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelepuginivan/statusbar/internal/broadcast"
	"github.com/shelepuginivan/statusbar/internal/log"
	"github.com/shelepuginivan/statusbar/internal/metrics"
	"github.com/shelepuginivan/statusbar/systray"
)

// DefaultBufferSize is the number of events a subscriber may fall behind
// before it starts losing the oldest ones.
const DefaultBufferSize = 16

// Upstream is the tray host the client wraps. *systray.Client implements it.
type Upstream interface {
	Events() <-chan systray.Event
	Items() []*systray.Item
	Activate(ctx context.Context, req systray.ActivateRequest) error
}

// DialFunc opens a new upstream connection.
type DialFunc func(ctx context.Context) (Upstream, error)

// Config configures [Connect] and [New]. Zero values select defaults.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	BufferSize  int

	// Logger defaults to the global logger with component "tray".
	Logger *zerolog.Logger

	// Sleep overrides the wait between connection attempts.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (cfg Config) logger() zerolog.Logger {
	if cfg.Logger != nil {
		return *cfg.Logger
	}

	return log.WithComponent("tray")
}

// Subscription receives tray events of one consumer.
type Subscription = broadcast.Subscription[systray.Event]

// Client relays tray events to any number of subscribers.
type Client struct {
	upstream Upstream
	hub      *broadcast.Hub[systray.Event]
	menus    *menuCache
	logger   zerolog.Logger
	done     chan struct{}
}

// Connect dials the upstream with exponential backoff and returns a client
// wrapping it.
func Connect(ctx context.Context, dial DialFunc, cfg Config) (*Client, error) {
	upstream, err := Retry(ctx, Backoff{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		Logger:      cfg.logger(),
		Sleep:       cfg.Sleep,
	}, dial)
	if err != nil {
		return nil, err
	}

	return New(upstream, cfg), nil
}

// New wraps an established upstream and starts consuming its events. The
// client must be the only reader of upstream.Events().
func New(upstream Upstream, cfg Config) *Client {
	size := cfg.BufferSize
	if size < 1 {
		size = DefaultBufferSize
	}

	c := &Client{
		upstream: upstream,
		hub:      broadcast.New[systray.Event]("tray", size),
		menus:    newMenuCache(),
		logger:   cfg.logger(),
		done:     make(chan struct{}),
	}

	go c.drain()

	return c
}

// Subscribe returns a new event subscription. The cached menu path and menu
// tree of every known item are queued on it before it is returned, so they
// are the first events it yields. They are published to the hub, so existing
// subscribers see them again as well.
func (c *Client) Subscribe() *Subscription {
	sub := c.hub.Subscribe()

	replayed := 0
	for _, entry := range c.menus.snapshot() {
		c.hub.Publish(systray.NewMenuConnectEvent(entry.Address, entry.Path))
		replayed++

		if entry.Menu != nil {
			c.hub.Publish(systray.NewMenuEvent(entry.Address, entry.Menu))
			replayed++
		}
	}

	metrics.TrayReplayedEvents.Add(float64(replayed))
	metrics.TraySubscribers.Set(float64(c.hub.Len()))

	return sub
}

// Items returns the items currently known to the upstream.
func (c *Client) Items() []*systray.Item {
	return c.upstream.Items()
}

// Activate forwards a user interaction to the upstream.
func (c *Client) Activate(ctx context.Context, req systray.ActivateRequest) error {
	return c.upstream.Activate(ctx, req)
}

// Done is closed once the upstream event stream has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close closes the upstream if it can be closed and waits for the event
// stream to end.
func (c *Client) Close() error {
	closer, ok := c.upstream.(io.Closer)
	if !ok {
		return nil
	}

	err := closer.Close()
	<-c.done

	return err
}

// drain is the only reader of the upstream stream. It keeps the menu cache
// current and republishes every event unchanged.
func (c *Client) drain() {
	defer close(c.done)
	defer c.hub.Close()

	for ev := range c.upstream.Events() {
		c.record(ev)

		metrics.TrayEvents.WithLabelValues(ev.Name()).Inc()
		metrics.TraySubscribers.Set(float64(c.hub.Publish(ev)))
	}

	metrics.TraySubscribers.Set(0)
	c.logger.Warn().Msg("Tray event stream closed")
}

// record mirrors menu bootstrap events into the cache.
func (c *Client) record(ev systray.Event) {
	if ev.Type != systray.EventUpdate || ev.Update == nil {
		return
	}

	switch ev.Update.Type {
	case systray.UpdateMenuConnect:
		c.menus.announce(ev.Address, ev.Update.MenuPath)
		metrics.TrayCachedMenus.Set(float64(c.menus.len()))
	case systray.UpdateMenu:
		if !c.menus.setMenu(ev.Address, ev.Update.Menu) {
			c.logger.Debug().Str("address", ev.Address).Msg("Menu received before its path, not cached")
		}
	}
}
