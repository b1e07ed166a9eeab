package systray

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetUpdatedProperties tests parsing of ItemsPropertiesUpdated arguments
func TestGetUpdatedProperties(t *testing.T) {
	data := [][]any{
		{int32(3), map[string]dbus.Variant{"label": dbus.MakeVariant("Quit")}},
		{int32(4)},
		{"5", map[string]dbus.Variant{}},
	}

	updated, err := getUpdatedProperties(data)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, int32(3), updated[0].NodeID)
	assert.Equal(t, "Quit", updated[0].Properties["label"])

	_, err = getUpdatedProperties("invalid")
	assert.Error(t, err)
}

// TestGetRemovedProperties tests parsing of removed property lists
func TestGetRemovedProperties(t *testing.T) {
	data := [][]any{
		{int32(3), []string{"icon-name", "toggle-state"}},
		{int32(4), "label"},
	}

	removed, err := getRemovedProperties(data)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, int32(3), removed[0].NodeID)
	assert.Equal(t, []string{"icon-name", "toggle-state"}, removed[0].Properties)
}

// TestEventName tests log and metric names of events
func TestEventName(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{name: "add", event: Event{Type: EventAdd}, want: "add"},
		{name: "remove", event: Event{Type: EventRemove}, want: "remove"},
		{name: "menu connect", event: NewMenuConnectEvent(":1.1", "/MenuBar"), want: "update.menu_connect"},
		{name: "menu", event: NewMenuEvent(":1.1", &LayoutNode{}), want: "update.menu"},
		{name: "update without payload", event: Event{Type: EventUpdate}, want: "update"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Name())
		})
	}
}

// TestMenuDispatch tests routing of dbusmenu signals to callbacks
func TestMenuDispatch(t *testing.T) {
	var (
		layoutParent int32 = -1
		activated    int32 = -1
		updates      int
	)

	m := &Menu{
		onLayoutUpdate: func(id int32) { layoutParent = id },
		onActivate:     func(id int32) { activated = id },
		onPropertiesUpdate: func(updated []*UpdatedProperties, removed []*RemovedProperties) {
			updates += len(updated) + len(removed)
		},
	}

	m.dispatch(&dbus.Signal{Name: MenuInterface + ".LayoutUpdated", Body: []any{uint32(7), int32(2)}})
	m.dispatch(&dbus.Signal{Name: MenuInterface + ".ItemActivationRequested", Body: []any{int32(5), uint32(0)}})
	m.dispatch(&dbus.Signal{Name: MenuInterface + ".ItemsPropertiesUpdated", Body: []any{
		[][]any{{int32(1), map[string]dbus.Variant{"enabled": dbus.MakeVariant(false)}}},
		[][]any{{int32(1), []string{"label"}}},
	}})
	m.dispatch(&dbus.Signal{Name: MenuInterface + ".LayoutUpdated", Body: []any{uint32(8)}})

	assert.Equal(t, int32(2), layoutParent)
	assert.Equal(t, int32(5), activated)
	assert.Equal(t, 2, updates)
}
