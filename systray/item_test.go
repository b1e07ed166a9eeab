package systray

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUniqueNameAndPathFromItemName tests splitting of watcher item names
func TestUniqueNameAndPathFromItemName(t *testing.T) {
	tests := []struct {
		name     string
		itemName string
		wantName string
		wantPath string
		wantErr  bool
	}{
		{
			name:     "unique name with path",
			itemName: ":1.185/StatusNotifierItem",
			wantName: ":1.185",
			wantPath: "/StatusNotifierItem",
		},
		{
			name:     "nested path",
			itemName: ":1.42/org/ayatana/NotificationItem/nm_applet",
			wantName: ":1.42",
			wantPath: "/org/ayatana/NotificationItem/nm_applet",
		},
		{
			name:     "name without path",
			itemName: "org.kde.StatusNotifierItem-1234-1",
			wantName: "org.kde.StatusNotifierItem-1234-1",
			wantPath: StatusNotifierItemPath,
		},
		{
			name:     "empty",
			itemName: "",
			wantErr:  true,
		},
		{
			name:     "path only",
			itemName: "/StatusNotifierItem",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uniqueName, path, err := uniqueNameAndPathFromItemName(tt.itemName)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantName, uniqueName)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

// TestUniqueNameAndPathFromDBusSignal tests signal body validation
func TestUniqueNameAndPathFromDBusSignal(t *testing.T) {
	_, _, err := uniqueNameAndPathFromDBusSignal(&dbus.Signal{})
	assert.Error(t, err)

	_, _, err = uniqueNameAndPathFromDBusSignal(&dbus.Signal{Body: []any{int32(1)}})
	assert.Error(t, err)

	name, path, err := uniqueNameAndPathFromDBusSignal(&dbus.Signal{Body: []any{":1.7/StatusNotifierItem"}})
	require.NoError(t, err)
	assert.Equal(t, ":1.7", name)
	assert.Equal(t, "/StatusNotifierItem", path)
}

// TestNoAutoStart tests the flag used for item and menu calls
func TestNoAutoStart(t *testing.T) {
	assert.Equal(t, dbus.FlagNoAutoStart, noAutoStart)
	assert.NotZero(t, noAutoStart&(dbus.FlagNoAutoStart|dbus.FlagNoReplyExpected))
}

// TestParseTooltip tests tooltip text extraction
func TestParseTooltip(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "full tooltip", value: []any{"icon", [][]any{}, "Title", "Description"}, want: "Title"},
		{name: "too short", value: []any{"icon"}, want: ""},
		{name: "wrong type", value: "Title", want: ""},
		{name: "non-string title", value: []any{"icon", nil, int32(1)}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseTooltip(tt.value))
		})
	}
}

// TestParseStatusAndCategory tests enum mapping with defaults
func TestParseStatusAndCategory(t *testing.T) {
	assert.Equal(t, ItemStatusPassive, parseStatus("Passive"))
	assert.Equal(t, ItemStatusNeedsAttention, parseStatus("NeedsAttention"))
	assert.Equal(t, ItemStatusActive, parseStatus("Active"))
	assert.Equal(t, ItemStatusActive, parseStatus("bogus"))

	assert.Equal(t, ItemCategoryHardware, parseCategory("Hardware"))
	assert.Equal(t, ItemCategoryCommunications, parseCategory("Communications"))
	assert.Equal(t, ItemCategorySystemServices, parseCategory("SystemServices"))
	assert.Equal(t, ItemCategoryApplicationStatus, parseCategory(""))
}

// TestItemUpdateEvent tests that update events carry the refreshed fields
func TestItemUpdateEvent(t *testing.T) {
	item := &Item{
		Title:             "Player",
		Status:            ItemStatusNeedsAttention,
		IconName:          "media-playback-start",
		AttentionIconName: "dialog-warning",
	}

	assert.Equal(t, "Player", item.updateEvent(UpdateTitle).Title)
	assert.Equal(t, ItemStatusNeedsAttention, item.updateEvent(UpdateStatus).Status)
	assert.Equal(t, "media-playback-start", item.updateEvent(UpdateIcon).IconName)
	assert.Equal(t, "dialog-warning", item.updateEvent(UpdateAttentionIcon).IconName)
}
