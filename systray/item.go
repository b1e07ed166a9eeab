package systray

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	StatusNotifierItemInterface = "org.kde.StatusNotifierItem"
	StatusNotifierItemPath      = "/StatusNotifierItem"
)

type ItemCategory string

// StatusNotifierItem categories.
const (
	// The item describes the status of a generic application, for instance the
	// current state of a media player.
	ItemCategoryApplicationStatus ItemCategory = "ApplicationStatus"

	// The item describes the status of communication oriented applications,
	// like an instant messenger or an email client.
	ItemCategoryCommunications ItemCategory = "Communications"

	// The item describes services of the system not seen as a stand alone
	// application by the user.
	ItemCategorySystemServices ItemCategory = "SystemServices"

	// The item describes the state and control of a particular hardware.
	ItemCategoryHardware ItemCategory = "Hardware"
)

type ItemStatus string

// StatusNotifierItem statuses.
const (
	// The item doesn't convey important information to the user and is likely
	// to be hidden.
	ItemStatusPassive ItemStatus = "Passive"

	// The item is active and should be shown.
	ItemStatusActive ItemStatus = "Active"

	// The item carries really important information for the user and
	// visualizations should emphasize it.
	ItemStatusNeedsAttention ItemStatus = "NeedsAttention"
)

const getProperty = "org.freedesktop.DBus.Properties.Get"

// Items are never activated by the bus.
const noAutoStart = dbus.FlagNoAutoStart

// itemSignals are the StatusNotifierItem signals the item subscribes to.
var itemSignals = map[string]UpdateType{
	"NewTitle":         UpdateTitle,
	"NewToolTip":       UpdateTooltip,
	"NewStatus":        UpdateStatus,
	"NewIcon":          UpdateIcon,
	"NewOverlayIcon":   UpdateOverlayIcon,
	"NewAttentionIcon": UpdateAttentionIcon,
}

// Item represents system tray item and implements [StatusNotifierItem].
//
// Fields are refreshed from the item's own signal goroutine. Consumers that
// need a consistent view should rely on the [Event] stream of [Client].
//
// [StatusNotifierItem]: https://www.freedesktop.org/wiki/Specifications/StatusNotifierItem/StatusNotifierItem/
type Item struct {
	conn       *dbus.Conn
	signals    chan *dbus.Signal
	object     dbus.BusObject
	uniqueName string
	objectPath string
	onUpdate   func(UpdateType)

	// Unique identifier for the application, such as the application name.
	ID string

	// Name that describes the application, can be more descriptive than ID.
	Title string

	// Extra information that can be visualized by a tooltip.
	Tooltip string

	Category ItemCategory
	Status   ItemStatus

	// Windowing-system dependent identifier.
	WindowID uint32

	// [Freedesktop-compliant] icon name. Visualizations should prefer this
	// field over IconPixmap if both are available.
	//
	// [Freedesktop-compliant]: https://specifications.freedesktop.org/icon-naming-spec/latest/
	IconName   string
	IconPixmap IconSet

	OverlayIconName   string
	OverlayIconPixmap IconSet

	AttentionIconName   string
	AttentionIconPixmap IconSet
	AttentionMovieName  string

	// Whether the item only supports context menu.
	IsMenu bool

	// D-Bus path to an object which implements the com.canonical.dbusmenu
	// interface. Empty if the item has no menu.
	MenuPath string
}

// NewItem returns new [Item] from its unique D-Bus name.
func NewItem(conn *dbus.Conn, uniqueName string) (*Item, error) {
	return NewItemWithObjectPath(conn, uniqueName, StatusNotifierItemPath)
}

// NewItemWithObjectPath returns new [Item] from its unique D-Bus name and
// allows to specify path of the D-Bus object.
func NewItemWithObjectPath(conn *dbus.Conn, uniqueName string, objectPath string) (*Item, error) {
	obj := conn.Object(uniqueName, dbus.ObjectPath(objectPath))

	// Check whether properties can be retrieved.
	call := obj.Call(getProperty, noAutoStart, StatusNotifierItemInterface, "Title")
	if call.Err != nil {
		return nil, fmt.Errorf("failed to resolve item: %w", call.Err)
	}

	item := Item{
		conn:       conn,
		signals:    make(chan *dbus.Signal, 128),
		object:     obj,
		uniqueName: uniqueName,
		objectPath: objectPath,
		onUpdate:   func(UpdateType) {},
	}

	id, err := obj.GetProperty(StatusNotifierItemInterface + ".Id")
	if err == nil {
		id.Store(&item.ID)
	}

	category, err := obj.GetProperty(StatusNotifierItemInterface + ".Category")
	if err == nil {
		item.Category = parseCategory(category.String())
	}

	windowID, err := obj.GetProperty(StatusNotifierItemInterface + ".WindowId")
	if err == nil {
		windowID.Store(&item.WindowID)
	}

	isMenu, err := obj.GetProperty(StatusNotifierItemInterface + ".ItemIsMenu")
	if err == nil {
		isMenu.Store(&item.IsMenu)
	}

	menu, err := obj.GetProperty(StatusNotifierItemInterface + ".Menu")
	if err == nil {
		var path dbus.ObjectPath
		if menu.Store(&path) == nil && path != "/" {
			item.MenuPath = string(path)
		}
	}

	item.updateTitle()
	item.updateTooltip()
	item.updateStatus()
	item.updateIcon()
	item.updateOverlayIcon()
	item.updateAttentionIcon()

	item.subscribe()

	return &item, nil
}

// Address returns the unique D-Bus name of the item. It identifies the item in
// [Event] and [ActivateRequest].
func (item *Item) Address() string {
	return item.uniqueName
}

// ObjectPath returns the D-Bus object path of the item.
func (item *Item) ObjectPath() string {
	return item.objectPath
}

// OnUpdate registers callback that runs whenever item properties are
// updated. The callback receives the kind of update and runs after the
// corresponding fields were refreshed.
func (item *Item) OnUpdate(callback func(UpdateType)) {
	item.onUpdate = callback
}

// Menu returns [Menu] object associated with item.
func (item *Item) Menu() (*Menu, error) {
	if item.MenuPath == "" {
		return nil, fmt.Errorf("menu: item %s has no menu", item.uniqueName)
	}

	return NewMenu(item.conn, item.uniqueName, item.MenuPath)
}

// ContextMenu asks the status notifier item to show a context menu at the
// given screen coordinates.
func (item *Item) ContextMenu(ctx context.Context, x, y int) error {
	return item.call(ctx, "ContextMenu", int32(x), int32(y))
}

// Activate asks the status notifier item for activation, typically as a
// consequence of a left click. The x and y parameters are a placement hint.
func (item *Item) Activate(ctx context.Context, x, y int) error {
	return item.call(ctx, "Activate", int32(x), int32(y))
}

// SecondaryActivate is a secondary and less important form of activation,
// typically a middle click.
func (item *Item) SecondaryActivate(ctx context.Context, x, y int) error {
	return item.call(ctx, "SecondaryActivate", int32(x), int32(y))
}

// Scroll emits a scroll event on the item. Valid orientations are
// "horizontal" and "vertical".
func (item *Item) Scroll(ctx context.Context, delta int, orientation string) error {
	return item.call(ctx, "Scroll", int32(delta), orientation)
}

func (item *Item) call(ctx context.Context, method string, args ...any) error {
	return item.object.CallWithContext(
		ctx,
		StatusNotifierItemInterface+"."+method,
		noAutoStart,
		args...,
	).Err
}

// close removes signal handlers associated with this item.
//
// This method must be called when item is being unregistered from the system tray.
func (item *Item) close() {
	for member := range itemSignals {
		item.conn.RemoveMatchSignal(
			dbus.WithMatchInterface(StatusNotifierItemInterface),
			dbus.WithMatchMember(member),
			dbus.WithMatchSender(item.uniqueName),
		)
	}

	item.conn.RemoveSignal(item.signals)
	close(item.signals)
}

func (item *Item) subscribe() {
	for member := range itemSignals {
		item.conn.AddMatchSignal(
			dbus.WithMatchInterface(StatusNotifierItemInterface),
			dbus.WithMatchMember(member),
			dbus.WithMatchSender(item.uniqueName),
		)
	}

	item.conn.Signal(item.signals)

	go func() {
		for signal := range item.signals {
			if signal.Sender != item.uniqueName {
				continue
			}

			if update, ok := item.handleSignal(signal); ok {
				item.onUpdate(update)
			}
		}
	}()
}

func (item *Item) handleSignal(signal *dbus.Signal) (UpdateType, bool) {
	member, ok := strings.CutPrefix(signal.Name, StatusNotifierItemInterface+".")
	if !ok {
		return 0, false
	}

	update, ok := itemSignals[member]
	if !ok {
		return 0, false
	}

	switch update {
	case UpdateTitle:
		item.updateTitle()
	case UpdateTooltip:
		item.updateTooltip()
	case UpdateStatus:
		item.updateStatus()
	case UpdateIcon:
		item.updateIcon()
	case UpdateOverlayIcon:
		item.updateOverlayIcon()
	case UpdateAttentionIcon:
		item.updateAttentionIcon()
	}

	return update, true
}

// updateEvent returns an [UpdateEvent] with current values of the fields
// affected by update.
func (item *Item) updateEvent(update UpdateType) *UpdateEvent {
	ev := &UpdateEvent{Type: update}

	switch update {
	case UpdateTitle:
		ev.Title = item.Title
	case UpdateTooltip:
		ev.Tooltip = item.Tooltip
	case UpdateStatus:
		ev.Status = item.Status
	case UpdateIcon:
		ev.IconName = item.IconName
		ev.IconPixmap = item.IconPixmap
	case UpdateOverlayIcon:
		ev.IconName = item.OverlayIconName
		ev.IconPixmap = item.OverlayIconPixmap
	case UpdateAttentionIcon:
		ev.IconName = item.AttentionIconName
		ev.IconPixmap = item.AttentionIconPixmap
	}

	return ev
}

func (item *Item) updateTitle() {
	title, err := item.object.GetProperty(StatusNotifierItemInterface + ".Title")
	if err == nil {
		title.Store(&item.Title)
	}
}

func (item *Item) updateTooltip() {
	tooltip, err := item.object.GetProperty(StatusNotifierItemInterface + ".ToolTip")
	if err == nil {
		item.Tooltip = parseTooltip(tooltip.Value())
	}
}

func (item *Item) updateStatus() {
	status, err := item.object.GetProperty(StatusNotifierItemInterface + ".Status")
	if err == nil {
		item.Status = parseStatus(status.String())
	}
}

func (item *Item) updateIcon() {
	item.IconName, item.IconPixmap = item.iconProperties("IconName", "IconPixmap")
}

func (item *Item) updateOverlayIcon() {
	item.OverlayIconName, item.OverlayIconPixmap = item.iconProperties("OverlayIconName", "OverlayIconPixmap")
}

func (item *Item) updateAttentionIcon() {
	item.AttentionIconName, item.AttentionIconPixmap = item.iconProperties("AttentionIconName", "AttentionIconPixmap")

	attentionMovieName, err := item.object.GetProperty(StatusNotifierItemInterface + ".AttentionMovieName")
	if err == nil {
		attentionMovieName.Store(&item.AttentionMovieName)
	}
}

func (item *Item) iconProperties(nameProperty, pixmapProperty string) (string, IconSet) {
	var name string

	iconName, err := item.object.GetProperty(StatusNotifierItemInterface + "." + nameProperty)
	if err == nil {
		iconName.Store(&name)
	}

	iconPixmap, err := item.object.GetProperty(StatusNotifierItemInterface + "." + pixmapProperty)
	if err != nil {
		return name, nil
	}

	set, err := NewIconSetFromDBusProperty(iconPixmap.Value())
	if err != nil {
		return name, nil
	}

	return name, set
}

// parseTooltip extracts the text of a (sa(iiay)ss) tooltip:
//
//	[<icon-name>, <icon>, <title>, <description>]
func parseTooltip(value any) string {
	fields, ok := value.([]any)
	if !ok || len(fields) < 3 {
		return ""
	}

	title, _ := fields[2].(string)
	return title
}

func parseCategory(category string) ItemCategory {
	switch category {
	case "Communications":
		return ItemCategoryCommunications
	case "SystemServices":
		return ItemCategorySystemServices
	case "Hardware":
		return ItemCategoryHardware
	default:
		return ItemCategoryApplicationStatus
	}
}

func parseStatus(status string) ItemStatus {
	switch status {
	case "Passive":
		return ItemStatusPassive
	case "NeedsAttention":
		return ItemStatusNeedsAttention
	default:
		return ItemStatusActive
	}
}

// uniqueNameAndPathFromDBusSignal retrieves unique name of the StatusNotifierItem
// service from D-Bus signal.
func uniqueNameAndPathFromDBusSignal(signal *dbus.Signal) (string, string, error) {
	if len(signal.Body) < 1 {
		return "", "", fmt.Errorf("signal body is empty")
	}

	itemName, ok := signal.Body[0].(string)
	if !ok {
		return "", "", fmt.Errorf("invalid format of signal body")
	}

	return uniqueNameAndPathFromItemName(itemName)
}

// uniqueNameAndPathFromItemName returns unique name and object path of the
// StatusNotifierItem service from its item name. The returned object path
// starts with /.
//
// Format of item name is "<uniqueName>/<objectPath>",
// e.g. ":1.185/StatusNotifierItem".
func uniqueNameAndPathFromItemName(itemName string) (string, string, error) {
	if itemName == "" || strings.HasPrefix(itemName, "/") {
		return "", "", fmt.Errorf("invalid item name %q", itemName)
	}

	uniqueName, objectPath, ok := strings.Cut(itemName, "/")
	if !ok {
		return uniqueName, StatusNotifierItemPath, nil
	}

	return uniqueName, "/" + objectPath, nil
}
