package systray

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

const (
	StatusNotifierWatcherInterface = "org.kde.StatusNotifierWatcher"
	StatusNotifierWatcherPath      = "/StatusNotifierWatcher"
)

// nameOwnerChanged matches owner changes of every bus name. The watcher needs
// all of them because items and hosts may register from any connection.
var nameOwnerChanged = []dbus.MatchOption{
	dbus.WithMatchInterface("org.freedesktop.DBus"),
	dbus.WithMatchSender("org.freedesktop.DBus"),
	dbus.WithMatchMember("NameOwnerChanged"),
}

// registry maps registered names to the unique name of the connection that
// owns them. Registration order is preserved.
type registry struct {
	names  []string
	owners map[string]string
}

func newRegistry() *registry {
	return &registry{owners: make(map[string]string)}
}

// add reports false if name is already registered.
func (r *registry) add(name, owner string) bool {
	if _, ok := r.owners[name]; ok {
		return false
	}

	r.names = append(r.names, name)
	r.owners[name] = owner
	return true
}

// dropOwner removes every name owned by owner, or named owner, and returns
// the removed names.
func (r *registry) dropOwner(owner string) []string {
	var removed []string

	r.names = slices.DeleteFunc(r.names, func(name string) bool {
		if name != owner && r.owners[name] != owner {
			return false
		}

		delete(r.owners, name)
		removed = append(removed, name)
		return true
	})

	return removed
}

func (r *registry) list() []string {
	return slices.Clone(r.names)
}

// Watcher implements [StatusNotifierWatcher]. Only one watcher may own the
// name on a session bus. [Client] runs one when no other watcher is present.
//
// [StatusNotifierWatcher]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/StatusNotifierWatcher/
type Watcher struct {
	conn    *dbus.Conn
	props   *prop.Properties
	signals chan *dbus.Signal

	mu     sync.Mutex
	closed bool
	hosts  *registry
	items  *registry
}

// NewWatcher returns a new [Watcher] on conn.
func NewWatcher(conn *dbus.Conn) *Watcher {
	return &Watcher{
		conn:    conn,
		signals: make(chan *dbus.Signal, 64),
		hosts:   newRegistry(),
		items:   newRegistry(),
	}
}

// Listen requests the watcher name, exports the watcher object and its
// properties, and starts tracking owners of registered names.
func (w *Watcher) Listen() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	reply, err := w.conn.RequestName(StatusNotifierWatcherInterface, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("listen: failed to request name %s: %w", StatusNotifierWatcherInterface, err)
	}

	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("listen: name %s already taken", StatusNotifierWatcherInterface)
	}

	if err := w.conn.Export(w, StatusNotifierWatcherPath, StatusNotifierWatcherInterface); err != nil {
		return fmt.Errorf("listen: failed to export %s: %w", StatusNotifierWatcherInterface, err)
	}

	w.props, err = prop.Export(w.conn, StatusNotifierWatcherPath, prop.Map{
		StatusNotifierWatcherInterface: {
			"RegisteredStatusNotifierItems":  {Value: []string{}, Emit: prop.EmitTrue},
			"IsStatusNotifierHostRegistered": {Value: false, Emit: prop.EmitTrue},
			"ProtocolVersion":                {Value: int32(0), Emit: prop.EmitConst},
		},
	})
	if err != nil {
		return fmt.Errorf("listen: failed to export properties: %w", err)
	}

	if err := w.conn.AddMatchSignal(nameOwnerChanged...); err != nil {
		return fmt.Errorf("listen: failed to watch name owners: %w", err)
	}

	w.conn.Signal(w.signals)
	go w.watchOwners()

	return nil
}

// Close releases the watcher name and stops tracking registered names.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	w.conn.RemoveMatchSignal(nameOwnerChanged...)
	w.conn.RemoveSignal(w.signals)
	close(w.signals)

	if _, err := w.conn.ReleaseName(StatusNotifierWatcherInterface); err != nil {
		return fmt.Errorf("close: failed to release name %s: %w", StatusNotifierWatcherInterface, err)
	}

	return nil
}

// RegisterStatusNotifierItem is the D-Bus method called by items. Name is
// either a bus name or an object path on the sender's connection.
func (w *Watcher) RegisterStatusNotifierItem(name string, sender dbus.Sender) *dbus.Error {
	w.mu.Lock()
	defer w.mu.Unlock()

	identifier := itemIdentifier(name, sender)
	if !w.items.add(identifier, string(sender)) {
		return nil
	}

	w.conn.Emit(StatusNotifierWatcherPath, StatusNotifierWatcherInterface+".StatusNotifierItemRegistered", identifier)
	w.updateProperties()

	return nil
}

// RegisterStatusNotifierHost is the D-Bus method called by hosts.
func (w *Watcher) RegisterStatusNotifierHost(name string, sender dbus.Sender) *dbus.Error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.hosts.add(name, string(sender)) {
		return nil
	}

	w.conn.Emit(StatusNotifierWatcherPath, StatusNotifierWatcherInterface+".StatusNotifierHostRegistered", name)
	w.updateProperties()

	return nil
}

func (w *Watcher) watchOwners() {
	for signal := range w.signals {
		if signal.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(signal.Body) < 3 {
			continue
		}

		name, ok := signal.Body[0].(string)
		if !ok {
			continue
		}

		// A non-empty new owner means the name moved, not vanished.
		if newOwner, ok := signal.Body[2].(string); !ok || newOwner != "" {
			continue
		}

		w.forget(name)
	}
}

// forget unregisters everything registered by, or under, a vanished name.
func (w *Watcher) forget(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	hosts := w.hosts.dropOwner(name)
	items := w.items.dropOwner(name)

	for _, host := range hosts {
		w.conn.Emit(StatusNotifierWatcherPath, StatusNotifierWatcherInterface+".StatusNotifierHostUnregistered", host)
	}

	for _, item := range items {
		w.conn.Emit(StatusNotifierWatcherPath, StatusNotifierWatcherInterface+".StatusNotifierItemUnregistered", item)
	}

	if len(hosts) > 0 || len(items) > 0 {
		w.updateProperties()
	}
}

// updateProperties must be called with w.mu held.
func (w *Watcher) updateProperties() {
	if w.props == nil {
		return
	}

	w.props.SetMust(StatusNotifierWatcherInterface, "RegisteredStatusNotifierItems", w.items.list())
	w.props.SetMust(StatusNotifierWatcherInterface, "IsStatusNotifierHostRegistered", len(w.hosts.names) > 0)
}

// itemIdentifier returns the "<name>/<objectPath>" form under which an item
// is announced.
func itemIdentifier(name string, sender dbus.Sender) string {
	if strings.HasPrefix(name, "/") {
		return string(sender) + name
	}

	return name + StatusNotifierItemPath
}
