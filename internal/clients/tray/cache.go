package tray

import (
	"sync"

	"github.com/shelepuginivan/statusbar/systray"
)

// CachedMenuEntry is the menu bootstrap state of one tray item.
type CachedMenuEntry struct {
	Address string
	Path    string

	// Menu is nil until the menu tree of Path has been received.
	Menu *systray.LayoutNode
}

// menuCache maps item addresses to their menu bootstrap state. A menu is
// never stored without a path.
type menuCache struct {
	mu      sync.Mutex
	entries map[string]*CachedMenuEntry
}

func newMenuCache() *menuCache {
	return &menuCache{entries: make(map[string]*CachedMenuEntry)}
}

// announce records the menu path of address and forgets any menu cached
// under a previous announcement.
func (c *menuCache) announce(address, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[address] = &CachedMenuEntry{Address: address, Path: path}
}

// setMenu stores the menu of an announced address. It reports false and
// stores nothing when the path of address is unknown.
func (c *menuCache) setMenu(address string, menu *systray.LayoutNode) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[address]
	if !ok {
		return false
	}

	entry.Menu = menu
	return true
}

// snapshot returns copies of all entries.
func (c *menuCache) snapshot() []CachedMenuEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]CachedMenuEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, *entry)
	}

	return entries
}

func (c *menuCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}
