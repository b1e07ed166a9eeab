package systray

import (
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

// Host implements [StatusNotifierHost]. It keeps track of StatusNotifierItem
// instances via [StatusNotifierWatcher].
//
// [StatusNotifierHost]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/StatusNotifierHost/
// [StatusNotifierWatcher]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/StatusNotifierWatcher/
type Host struct {
	name           string
	closed         bool
	conn           *dbus.Conn
	items          map[string]*Item
	signals        chan *dbus.Signal
	mu             sync.RWMutex
	onRegistered   func(item *Item)
	onUnregistered func(item *Item)
}

// NewHost returns a new [Host].
//
// Parameter id is used as a unique identifier for host name, such as PID.
func NewHost(conn *dbus.Conn, id any) *Host {
	return &Host{
		name:           fmt.Sprintf("org.kde.StatusNotifierHost-%v", id),
		conn:           conn,
		items:          make(map[string]*Item),
		signals:        make(chan *dbus.Signal, 64),
		onRegistered:   func(*Item) {},
		onUnregistered: func(*Item) {},
	}
}

// Name returns name of the host service.
func (h *Host) Name() string {
	return h.name
}

// Listen requests name of the host on D-Bus, registers the host in the
// watcher, subscribes to signals, and queries items that are already
// registered.
//
// Callbacks run with the host lock held and must not call back into the
// host. They should be set before Listen is called.
func (h *Host) Listen() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrClosed
	}

	reply, err := h.conn.RequestName(h.name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("listen: failed to request name %s: %w", h.name, err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("listen: name %s already taken", h.name)
	}

	call := h.conn.Object(
		StatusNotifierWatcherInterface,
		StatusNotifierWatcherPath,
	).Call(StatusNotifierWatcherInterface+".RegisterStatusNotifierHost", 0, h.name)
	if call.Err != nil {
		return fmt.Errorf("listen: failed to register host: %w", call.Err)
	}

	if err := h.subscribe(); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	h.getInitialItems()

	return nil
}

// Close releases name of the host from D-Bus, unsubscribes from signals, and
// closes all items. Host cannot be reused after Close was called.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	var errs []error

	if _, err := h.conn.ReleaseName(h.name); err != nil {
		errs = append(errs, err)
	}

	for _, member := range []string{"StatusNotifierItemRegistered", "StatusNotifierItemUnregistered"} {
		if err := h.conn.RemoveMatchSignal(
			dbus.WithMatchInterface(StatusNotifierWatcherInterface),
			dbus.WithMatchMember(member),
		); err != nil {
			errs = append(errs, err)
		}
	}

	h.conn.RemoveSignal(h.signals)
	close(h.signals)

	for _, item := range h.items {
		item.close()
	}

	h.onRegistered = func(*Item) {}
	h.onUnregistered = func(*Item) {}
	h.closed = true

	return errors.Join(errs...)
}

// Items returns currently registered items.
func (h *Host) Items() []*Item {
	h.mu.RLock()
	defer h.mu.RUnlock()

	items := make([]*Item, 0, len(h.items))
	for _, item := range h.items {
		items = append(items, item)
	}

	return items
}

// Item returns the registered item with the given address.
func (h *Host) Item(address string) (*Item, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	item, ok := h.items[address]
	return item, ok
}

// OnRegistered sets callback that runs whenever a new item is registered.
func (h *Host) OnRegistered(callback func(*Item)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.onRegistered = callback
}

// OnUnregistered sets callback that runs whenever an item is unregistered.
func (h *Host) OnUnregistered(callback func(*Item)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.onUnregistered = callback
}

// getInitialItems retrieves items that are already registered.
func (h *Host) getInitialItems() {
	watcherObj := h.conn.Object(StatusNotifierWatcherInterface, StatusNotifierWatcherPath)

	property, err := watcherObj.GetProperty(StatusNotifierWatcherInterface + ".RegisteredStatusNotifierItems")
	if err != nil {
		return
	}

	registeredItems, ok := property.Value().([]string)
	if !ok {
		return
	}

	for _, itemName := range registeredItems {
		uniqueName, objectPath, err := uniqueNameAndPathFromItemName(itemName)
		if err != nil {
			continue
		}

		h.register(uniqueName, objectPath)
	}
}

// subscribe subscribes to signals
//   - org.kde.StatusNotifierWatcher.StatusNotifierItemRegistered
//   - org.kde.StatusNotifierWatcher.StatusNotifierItemUnregistered
func (h *Host) subscribe() error {
	for _, member := range []string{"StatusNotifierItemRegistered", "StatusNotifierItemUnregistered"} {
		if err := h.conn.AddMatchSignal(
			dbus.WithMatchInterface(StatusNotifierWatcherInterface),
			dbus.WithMatchMember(member),
		); err != nil {
			return err
		}
	}

	h.conn.Signal(h.signals)

	go func() {
		for signal := range h.signals {
			switch signal.Name {
			case StatusNotifierWatcherInterface + ".StatusNotifierItemRegistered":
				h.handleRegisteredSignal(signal)
			case StatusNotifierWatcherInterface + ".StatusNotifierItemUnregistered":
				h.handleUnregisteredSignal(signal)
			}
		}
	}()

	return nil
}

// register resolves the item and runs the registered callback. Must be called
// with h.mu held.
func (h *Host) register(uniqueName, objectPath string) {
	if _, exists := h.items[uniqueName]; exists {
		return
	}

	item, err := NewItemWithObjectPath(h.conn, uniqueName, objectPath)
	if err != nil {
		return
	}

	h.items[uniqueName] = item
	h.onRegistered(item)
}

func (h *Host) handleRegisteredSignal(signal *dbus.Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	uniqueName, objectPath, err := uniqueNameAndPathFromDBusSignal(signal)
	if err != nil {
		return
	}

	h.register(uniqueName, objectPath)
}

func (h *Host) handleUnregisteredSignal(signal *dbus.Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	uniqueName, _, err := uniqueNameAndPathFromDBusSignal(signal)
	if err != nil {
		return
	}

	item, exists := h.items[uniqueName]
	if !exists {
		return
	}

	h.onUnregistered(item)
	item.close()
	delete(h.items, uniqueName)
}
