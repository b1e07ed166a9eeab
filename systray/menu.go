package systray

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

const MenuInterface = "com.canonical.dbusmenu"

// menuSignals are the com.canonical.dbusmenu signals the menu subscribes to.
var menuSignals = []string{
	"ItemsPropertiesUpdated",
	"LayoutUpdated",
	"ItemActivationRequested",
}

// UpdatedProperties represents updated properties of a specific layout node.
type UpdatedProperties struct {
	// ID of the layout node.
	NodeID int32

	// Updated properties.
	Properties map[string]any
}

// RemovedProperties represents removed properties of a specific layout node.
type RemovedProperties struct {
	// ID of the layout node.
	NodeID int32

	// Removed properties.
	Properties []string
}

// nodeEntries walks an array of (i, value) structs, the shape of both
// arguments of com.canonical.dbusmenu.ItemsPropertiesUpdated. Malformed
// entries are skipped.
func nodeEntries(data any, fn func(id int32, value any)) error {
	entries, ok := data.([][]any)
	if !ok {
		return fmt.Errorf("invalid argument format")
	}

	for _, entry := range entries {
		if len(entry) != 2 {
			continue
		}

		if id, ok := entry[0].(int32); ok {
			fn(id, entry[1])
		}
	}

	return nil
}

// getUpdatedProperties parses the first argument of ItemsPropertiesUpdated.
func getUpdatedProperties(data any) ([]*UpdatedProperties, error) {
	var updated []*UpdatedProperties

	err := nodeEntries(data, func(id int32, value any) {
		props, ok := value.(map[string]dbus.Variant)
		if !ok {
			return
		}

		up := &UpdatedProperties{NodeID: id, Properties: make(map[string]any, len(props))}
		for key, prop := range props {
			up.Properties[key] = prop.Value()
		}

		updated = append(updated, up)
	})

	return updated, err
}

// getRemovedProperties parses the second argument of ItemsPropertiesUpdated.
func getRemovedProperties(data any) ([]*RemovedProperties, error) {
	var removed []*RemovedProperties

	err := nodeEntries(data, func(id int32, value any) {
		if props, ok := value.([]string); ok {
			removed = append(removed, &RemovedProperties{NodeID: id, Properties: props})
		}
	})

	return removed, err
}

// Menu is a menu associated with [Item]. It implements the
// com.canonical.dbusmenu interface.
type Menu struct {
	uniqueName         string
	path               string
	conn               *dbus.Conn
	signals            chan *dbus.Signal
	object             dbus.BusObject
	onLayoutUpdate     func(int32)
	onPropertiesUpdate func([]*UpdatedProperties, []*RemovedProperties)
	onActivate         func(int32)

	// Version of the com.canonical.dbusmenu interface.
	Version uint32

	// Status of the application, whether it requires attention. Possible values
	// are "normal" (for most cases) and "notice" (a higher priority to be shown).
	Status string
}

// NewMenu retrieves menu of item with specified name and path.
func NewMenu(conn *dbus.Conn, name, path string) (*Menu, error) {
	obj := conn.Object(name, dbus.ObjectPath(path))

	// Check whether properties can be retrieved.
	call := obj.Call(getProperty, noAutoStart, MenuInterface, "Version")
	if call.Err != nil {
		return nil, fmt.Errorf("failed to retrieve menu: %w", call.Err)
	}

	menu := Menu{
		uniqueName:         name,
		path:               path,
		conn:               conn,
		signals:            make(chan *dbus.Signal, 16),
		object:             obj,
		onLayoutUpdate:     func(int32) {},
		onPropertiesUpdate: func([]*UpdatedProperties, []*RemovedProperties) {},
		onActivate:         func(int32) {},
	}

	version, err := obj.GetProperty(MenuInterface + ".Version")
	if err == nil {
		version.Store(&menu.Version)
	}

	status, err := obj.GetProperty(MenuInterface + ".Status")
	if err == nil {
		status.Store(&menu.Status)
	}

	if err := menu.subscribe(); err != nil {
		return nil, fmt.Errorf("menu: %w", err)
	}

	return &menu, nil
}

// Path returns the D-Bus object path of the menu.
func (m *Menu) Path() string {
	return m.path
}

// GetLayout provides the layout and properties that are attached to the
// entries that are in the layout.
//
// parentID is the ID of the parent node for the returned layout. Use 0 to
// retrieve layout from root.
//
// recursionDepth is the number of recursion levels to use. Special cases are:
//   - -1: deliver all items (without recursion limit).
//   - 0: disable recursion (children slice will be empty).
//
// propertyNames is the list of properties associated with layout nodes.
// Special case is empty slice (or nil): all properties are returned.
func (m *Menu) GetLayout(ctx context.Context, parentID int32, recursionDepth int32, propertyNames []string) (uint32, *LayoutNode, error) {
	if propertyNames == nil {
		propertyNames = []string{}
	}

	call := m.object.CallWithContext(
		ctx,
		MenuInterface+".GetLayout",
		noAutoStart,
		parentID, recursionDepth, propertyNames,
	)

	if call.Err != nil {
		return 0, nil, call.Err
	}

	if len(call.Body) != 2 {
		return 0, nil, fmt.Errorf("layout: invalid response body format")
	}

	revision, ok := call.Body[0].(uint32)
	if !ok {
		return 0, nil, fmt.Errorf("layout: invalid revision type")
	}

	menu, err := NewLayoutNode(call.Body[1])
	if err != nil {
		return revision, nil, fmt.Errorf("layout: %w", err)
	}

	return revision, menu, nil
}

// Root returns the complete menu tree.
func (m *Menu) Root(ctx context.Context) (*LayoutNode, error) {
	_, root, err := m.GetLayout(ctx, 0, -1, nil)
	return root, err
}

// Clicked tells the application that the layout node with the given ID was
// clicked.
func (m *Menu) Clicked(ctx context.Context, id int32) error {
	return m.Event(ctx, id, "clicked", int32(0), uint32(time.Now().Unix()))
}

// Hovered tells the application that the layout node with the given ID was
// hovered.
func (m *Menu) Hovered(ctx context.Context, id int32) error {
	return m.Event(ctx, id, "hovered", int32(0), uint32(time.Now().Unix()))
}

// Event tells the application that an arbitrary event happened to layout node
// with the given ID.
//
// Possible values for eventID are "clicked" and "hovered". Vendor-specific
// events can be sent by prefixing eventID with "x-<vendor>-".
func (m *Menu) Event(ctx context.Context, targetID int32, eventID string, data any, timestamp uint32) error {
	return m.object.CallWithContext(
		ctx,
		MenuInterface+".Event",
		noAutoStart,
		targetID,
		eventID,
		dbus.MakeVariant(data),
		timestamp,
	).Err
}

// AboutToShow tells the application that target layout node is about to be
// shown by the applet. It reports whether the layout should be refreshed.
func (m *Menu) AboutToShow(ctx context.Context, id int32) (bool, error) {
	call := m.object.CallWithContext(
		ctx,
		MenuInterface+".AboutToShow",
		noAutoStart,
		id,
	)

	if call.Err != nil {
		return false, fmt.Errorf("about to show: %w", call.Err)
	}

	if len(call.Body) != 1 {
		return false, fmt.Errorf("about to show: invalid response format")
	}

	needUpdate, ok := call.Body[0].(bool)
	if !ok {
		return false, fmt.Errorf("about to show: invalid response format")
	}

	return needUpdate, nil
}

// OnLayoutUpdate registers callback that runs whenever menu layout is updated.
//
// Parameter id of the callback is ID of the parent node for the nodes that
// have changed. If it is zero, the entire layout is updated.
func (m *Menu) OnLayoutUpdate(callback func(id int32)) {
	m.onLayoutUpdate = callback
}

// OnPropertiesUpdate registers callback that runs whenever properties of
// layout nodes are updated.
func (m *Menu) OnPropertiesUpdate(callback func(updated []*UpdatedProperties, removed []*RemovedProperties)) {
	m.onPropertiesUpdate = callback
}

// OnActivate registers a callback that runs whenever application requests to
// open the menu.
func (m *Menu) OnActivate(callback func(id int32)) {
	m.onActivate = callback
}

// Close unsubscribes from menu update signals.
func (m *Menu) Close() error {
	for _, member := range menuSignals {
		if err := m.conn.RemoveMatchSignal(
			dbus.WithMatchInterface(MenuInterface),
			dbus.WithMatchMember(member),
			dbus.WithMatchSender(m.uniqueName),
		); err != nil {
			return err
		}
	}

	m.conn.RemoveSignal(m.signals)
	close(m.signals)

	return nil
}

func (m *Menu) subscribe() error {
	for _, member := range menuSignals {
		if err := m.conn.AddMatchSignal(
			dbus.WithMatchInterface(MenuInterface),
			dbus.WithMatchMember(member),
			dbus.WithMatchSender(m.uniqueName),
		); err != nil {
			return err
		}
	}

	m.conn.Signal(m.signals)

	go func() {
		for signal := range m.signals {
			if signal.Sender == m.uniqueName && string(signal.Path) == m.path {
				m.dispatch(signal)
			}
		}
	}()

	return nil
}

// dispatch runs the callback matching a dbusmenu signal. Signals with an
// unexpected body are ignored.
func (m *Menu) dispatch(signal *dbus.Signal) {
	if len(signal.Body) != 2 {
		return
	}

	switch signal.Name {
	case MenuInterface + ".ItemsPropertiesUpdated":
		updated, err := getUpdatedProperties(signal.Body[0])
		if err != nil {
			return
		}

		removed, err := getRemovedProperties(signal.Body[1])
		if err != nil {
			return
		}

		m.onPropertiesUpdate(updated, removed)

	case MenuInterface + ".LayoutUpdated":
		// LayoutUpdated(u revision, i parent)
		if parent, ok := signal.Body[1].(int32); ok {
			m.onLayoutUpdate(parent)
		}

	case MenuInterface + ".ItemActivationRequested":
		// ItemActivationRequested(i id, u timestamp)
		if id, ok := signal.Body[0].(int32); ok {
			m.onActivate(id)
		}
	}
}
