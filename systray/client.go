package systray

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// menuTimeout bounds the D-Bus calls made while hydrating item menus.
const menuTimeout = 5 * time.Second

// Options configures [Connect] and [NewClient].
type Options struct {
	// HostID is used to build the host name on the bus. Defaults to the PID.
	HostID any

	// EmbeddedWatcher runs a [Watcher] in this process when no other watcher
	// owns org.kde.StatusNotifierWatcher.
	EmbeddedWatcher bool
}

// Client is a system tray host which reports changes as a stream of [Event].
//
// The menu path and menu tree of an item are fetched once, when the item is
// first seen, and are only delivered to the reader of [Client.Events] at that
// moment. Consumers that attach later must keep their own copy.
type Client struct {
	conn    *dbus.Conn
	host    *Host
	watcher *Watcher

	events chan Event
	wake   chan struct{}
	done   chan struct{}

	mu     sync.Mutex
	queue  []Event
	closed bool
	menus  map[string]*Menu

	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// Connect opens the session bus and returns a listening [Client]. The client
// is closed automatically when the bus connection is lost.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect: failed to connect to session bus: %w", err)
	}

	client, err := NewClient(conn, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}

	go func() {
		select {
		case <-conn.Context().Done():
			client.Close()
		case <-client.done:
		}
	}()

	return client, nil
}

// NewClient registers a host on conn and starts reporting events. Close
// closes conn.
func NewClient(conn *dbus.Conn, opts Options) (*Client, error) {
	if opts.HostID == nil {
		opts.HostID = os.Getpid()
	}

	c := &Client{
		conn:   conn,
		events: make(chan Event, 64),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		menus:  make(map[string]*Menu),
	}

	if opts.EmbeddedWatcher {
		if err := c.ensureWatcher(); err != nil {
			return nil, err
		}
	}

	go c.pump()

	c.host = NewHost(conn, opts.HostID)
	c.host.OnRegistered(c.handleRegistered)
	c.host.OnUnregistered(c.handleUnregistered)

	if err := c.host.Listen(); err != nil {
		c.shutdown()
		if c.watcher != nil {
			c.watcher.Close()
		}
		return nil, fmt.Errorf("connect: %w", err)
	}

	return c, nil
}

// Events returns the stream of tray events. The channel is closed when the
// client is closed.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Items returns the currently registered items.
func (c *Client) Items() []*Item {
	return c.host.Items()
}

// Activate performs a user interaction with an item.
func (c *Client) Activate(ctx context.Context, req ActivateRequest) error {
	item, ok := c.host.Item(req.Address)
	if !ok {
		return fmt.Errorf("activate %s: %w", req.Address, ErrUnknownItem)
	}

	switch req.Type {
	case ActivateDefault:
		return item.Activate(ctx, req.X, req.Y)
	case ActivateSecondary:
		return item.SecondaryActivate(ctx, req.X, req.Y)
	case ActivateMenuItem:
		menu, release, err := c.menuFor(item, req.MenuPath)
		if err != nil {
			return fmt.Errorf("activate %s: %w", req.Address, err)
		}
		defer release()

		return menu.Clicked(ctx, req.SubmenuID)
	default:
		return fmt.Errorf("activate %s: unknown request type %d", req.Address, req.Type)
	}
}

// Close unregisters the host, stops the embedded watcher if any, and closes
// the bus connection and the event stream.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		var errs []error

		c.shutdown()

		if err := c.host.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close host: %w", err))
		}

		if c.watcher != nil {
			if err := c.watcher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close watcher: %w", err))
			}
		}

		c.mu.Lock()
		for address, menu := range c.menus {
			menu.Close()
			delete(c.menus, address)
		}
		c.mu.Unlock()

		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}

		c.wg.Wait()
		c.closeErr = errors.Join(errs...)
	})

	return c.closeErr
}

// shutdown stops event delivery.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.queue = nil
	close(c.done)
}

func (c *Client) ensureWatcher() error {
	var hasOwner bool

	err := c.conn.BusObject().Call(
		"org.freedesktop.DBus.NameHasOwner", 0, StatusNotifierWatcherInterface,
	).Store(&hasOwner)
	if err != nil {
		return fmt.Errorf("connect: failed to query watcher owner: %w", err)
	}

	if hasOwner {
		return nil
	}

	watcher := NewWatcher(c.conn)
	if err := watcher.Listen(); err != nil {
		return fmt.Errorf("connect: failed to start watcher: %w", err)
	}

	c.watcher = watcher

	return nil
}

// emit queues ev for delivery. It never blocks, so host and item callbacks
// are not held up by a slow reader.
func (c *Client) emit(ev Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, ev)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// pump moves queued events to the events channel in order.
func (c *Client) pump() {
	defer close(c.events)

	for {
		c.mu.Lock()
		queue := c.queue
		c.queue = nil
		c.mu.Unlock()

		for _, ev := range queue {
			select {
			case c.events <- ev:
			case <-c.done:
				return
			}
		}

		select {
		case <-c.wake:
		case <-c.done:
			return
		}
	}
}

func (c *Client) handleRegistered(item *Item) {
	address := item.Address()

	item.OnUpdate(func(update UpdateType) {
		c.emit(Event{
			Type:    EventUpdate,
			Address: address,
			Update:  item.updateEvent(update),
		})
	})

	c.emit(Event{Type: EventAdd, Address: address, Item: item})

	if item.MenuPath == "" {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		c.hydrate(item)
	}()
}

func (c *Client) handleUnregistered(item *Item) {
	address := item.Address()

	c.mu.Lock()
	if menu, ok := c.menus[address]; ok {
		menu.Close()
		delete(c.menus, address)
	}
	c.mu.Unlock()

	c.emit(Event{Type: EventRemove, Address: address})
}

// hydrate announces the menu path of item, then fetches and sends its menu
// tree and subscribes to menu changes.
func (c *Client) hydrate(item *Item) {
	address := item.Address()

	c.emit(NewMenuConnectEvent(address, item.MenuPath))

	menu, err := NewMenu(c.conn, address, item.MenuPath)
	if err != nil {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		menu.Close()
		return
	}
	if previous, ok := c.menus[address]; ok {
		previous.Close()
	}
	c.menus[address] = menu
	c.mu.Unlock()

	menu.OnLayoutUpdate(func(int32) {
		c.sendLayout(address, menu)
	})

	menu.OnPropertiesUpdate(func(updated []*UpdatedProperties, removed []*RemovedProperties) {
		c.emit(Event{
			Type:    EventUpdate,
			Address: address,
			Update: &UpdateEvent{
				Type:              UpdateMenuDiff,
				UpdatedProperties: updated,
				RemovedProperties: removed,
			},
		})
	})

	c.sendLayout(address, menu)
}

func (c *Client) sendLayout(address string, menu *Menu) {
	ctx, cancel := context.WithTimeout(context.Background(), menuTimeout)
	defer cancel()

	root, err := menu.Root(ctx)
	if err != nil {
		return
	}

	c.emit(NewMenuEvent(address, root))
}

// menuFor returns the menu of item at path, opening a temporary one when the
// client does not track it. The returned function releases the menu.
func (c *Client) menuFor(item *Item, path string) (*Menu, func(), error) {
	if path == "" {
		path = item.MenuPath
	}

	if path == "" {
		return nil, nil, fmt.Errorf("item has no menu")
	}

	c.mu.Lock()
	menu, ok := c.menus[item.Address()]
	c.mu.Unlock()

	if ok && menu.Path() == path {
		return menu, func() {}, nil
	}

	menu, err := NewMenu(c.conn, item.Address(), path)
	if err != nil {
		return nil, nil, err
	}

	return menu, func() { menu.Close() }, nil
}
