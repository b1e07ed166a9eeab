package systray

// EventType is the kind of change carried by an [Event].
type EventType int

const (
	// EventAdd is sent when an item is registered in the host.
	EventAdd EventType = iota

	// EventUpdate is sent when a property or the menu of an item changes.
	EventUpdate

	// EventRemove is sent when an item is unregistered.
	EventRemove
)

func (t EventType) String() string {
	switch t {
	case EventAdd:
		return "add"
	case EventUpdate:
		return "update"
	case EventRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// UpdateType is the kind of change carried by an [UpdateEvent].
type UpdateType int

const (
	// UpdateMenuConnect announces the dbusmenu object path of the item.
	UpdateMenuConnect UpdateType = iota

	// UpdateMenu carries the full menu tree of the item.
	UpdateMenu

	// UpdateMenuDiff carries property changes of individual menu entries.
	UpdateMenuDiff

	UpdateTitle
	UpdateTooltip
	UpdateStatus
	UpdateIcon
	UpdateOverlayIcon
	UpdateAttentionIcon
)

func (t UpdateType) String() string {
	switch t {
	case UpdateMenuConnect:
		return "menu_connect"
	case UpdateMenu:
		return "menu"
	case UpdateMenuDiff:
		return "menu_diff"
	case UpdateTitle:
		return "title"
	case UpdateTooltip:
		return "tooltip"
	case UpdateStatus:
		return "status"
	case UpdateIcon:
		return "icon"
	case UpdateOverlayIcon:
		return "overlay_icon"
	case UpdateAttentionIcon:
		return "attention_icon"
	default:
		return "unknown"
	}
}

// Event is a change of the tray state. Events are immutable once sent.
type Event struct {
	Type EventType

	// Address is the unique D-Bus name of the item the event belongs to.
	Address string

	// Item is set for EventAdd.
	Item *Item

	// Update is set for EventUpdate.
	Update *UpdateEvent
}

// UpdateEvent describes a single change of an item. Only the fields relevant
// to Type are set.
type UpdateEvent struct {
	Type UpdateType

	MenuPath string
	Menu     *LayoutNode

	UpdatedProperties []*UpdatedProperties
	RemovedProperties []*RemovedProperties

	Title   string
	Tooltip string
	Status  ItemStatus

	IconName   string
	IconPixmap IconSet
}

// Name returns a short name of the event suitable for logs and metric labels,
// e.g. "add" or "update.menu".
func (e Event) Name() string {
	if e.Type == EventUpdate && e.Update != nil {
		return e.Type.String() + "." + e.Update.Type.String()
	}

	return e.Type.String()
}

// NewMenuConnectEvent returns an event announcing the menu path of an item.
func NewMenuConnectEvent(address, path string) Event {
	return Event{
		Type:    EventUpdate,
		Address: address,
		Update:  &UpdateEvent{Type: UpdateMenuConnect, MenuPath: path},
	}
}

// NewMenuEvent returns an event carrying the menu tree of an item.
func NewMenuEvent(address string, menu *LayoutNode) Event {
	return Event{
		Type:    EventUpdate,
		Address: address,
		Update:  &UpdateEvent{Type: UpdateMenu, Menu: menu},
	}
}
