package tray

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelepuginivan/statusbar/systray"
)

// TestMenuCache tests path-then-tree caching
func TestMenuCache(t *testing.T) {
	tree := &systray.LayoutNode{ID: 0}

	t.Run("tree without path is not stored", func(t *testing.T) {
		c := newMenuCache()

		assert.False(t, c.setMenu(":1.5", tree))
		assert.Empty(t, c.snapshot())
		assert.Equal(t, 0, c.len())
	})

	t.Run("path then tree", func(t *testing.T) {
		c := newMenuCache()

		c.announce(":1.5", "/MenuBar")
		assert.True(t, c.setMenu(":1.5", tree))

		entries := c.snapshot()
		require.Len(t, entries, 1)
		assert.Equal(t, CachedMenuEntry{Address: ":1.5", Path: "/MenuBar", Menu: tree}, entries[0])
	})

	t.Run("re-announce resets tree", func(t *testing.T) {
		c := newMenuCache()

		c.announce(":1.5", "/MenuBar")
		c.setMenu(":1.5", tree)
		c.announce(":1.5", "/NO_DBUSMENU")

		entries := c.snapshot()
		require.Len(t, entries, 1)
		assert.Equal(t, "/NO_DBUSMENU", entries[0].Path)
		assert.Nil(t, entries[0].Menu)
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		c := newMenuCache()

		c.announce(":1.5", "/MenuBar")
		entries := c.snapshot()
		c.setMenu(":1.5", tree)

		assert.Nil(t, entries[0].Menu)
	})
}
