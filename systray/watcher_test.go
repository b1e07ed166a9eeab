package systray

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

// TestItemIdentifier tests the name under which registered items are announced
func TestItemIdentifier(t *testing.T) {
	tests := []struct {
		name   string
		arg    string
		sender dbus.Sender
		want   string
	}{
		{
			name:   "object path",
			arg:    "/org/ayatana/NotificationItem/nm_applet",
			sender: ":1.42",
			want:   ":1.42/org/ayatana/NotificationItem/nm_applet",
		},
		{
			name:   "bus name",
			arg:    "org.kde.StatusNotifierItem-1234-1",
			sender: ":1.42",
			want:   "org.kde.StatusNotifierItem-1234-1/StatusNotifierItem",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, itemIdentifier(tt.arg, tt.sender))
		})
	}
}

// TestRegistry tests name registration and removal by owner
func TestRegistry(t *testing.T) {
	r := newRegistry()

	assert.True(t, r.add(":1.1/StatusNotifierItem", ":1.1"))
	assert.True(t, r.add(":1.10/StatusNotifierItem", ":1.10"))
	assert.True(t, r.add("org.kde.StatusNotifierItem-7-1/StatusNotifierItem", ":1.1"))
	assert.False(t, r.add(":1.1/StatusNotifierItem", ":1.1"))

	assert.Equal(t, []string{
		":1.1/StatusNotifierItem",
		":1.10/StatusNotifierItem",
		"org.kde.StatusNotifierItem-7-1/StatusNotifierItem",
	}, r.list())

	assert.Equal(t, []string{
		":1.1/StatusNotifierItem",
		"org.kde.StatusNotifierItem-7-1/StatusNotifierItem",
	}, r.dropOwner(":1.1"))
	assert.Equal(t, []string{":1.10/StatusNotifierItem"}, r.list())

	assert.Empty(t, r.dropOwner(":1.1"))
}

// TestRegistryDropByName tests removal of a host by its well-known name
func TestRegistryDropByName(t *testing.T) {
	r := newRegistry()

	r.add("org.kde.StatusNotifierHost-100", ":1.3")
	r.add("org.kde.StatusNotifierHost-200", ":1.4")

	assert.Equal(t, []string{"org.kde.StatusNotifierHost-100"}, r.dropOwner("org.kde.StatusNotifierHost-100"))
	assert.Equal(t, []string{"org.kde.StatusNotifierHost-200"}, r.list())
}
