package systray

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// LayoutNode is a single entry of a com.canonical.dbusmenu layout. The root
// node (ID 0) of a layout is the menu tree of the item.
type LayoutNode struct {
	ID         int32
	Properties map[string]any
	Children   []*LayoutNode
}

// NewLayoutNode parses a (ia{sv}av) structure returned by
// com.canonical.dbusmenu.GetLayout. Children that cannot be parsed are
// skipped.
func NewLayoutNode(data any) (*LayoutNode, error) {
	arr, ok := data.([]any)
	if !ok || len(arr) != 3 {
		return nil, fmt.Errorf("menu node: invalid format")
	}

	id, ok := arr[0].(int32)
	if !ok {
		return nil, fmt.Errorf("menu node: invalid id")
	}

	props, ok := arr[1].(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("menu node: invalid props")
	}

	children, ok := arr[2].([]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("menu node: invalid children")
	}

	root := &LayoutNode{
		ID:         id,
		Properties: make(map[string]any, len(props)),
		Children:   make([]*LayoutNode, 0, len(children)),
	}

	for key, value := range props {
		root.Properties[key] = value.Value()
	}

	for _, child := range children {
		childNode, err := NewLayoutNode(child.Value())
		if err != nil {
			continue
		}

		root.Children = append(root.Children, childNode)
	}

	return root, nil
}

// Label returns the "label" property of the node, or an empty string.
func (n *LayoutNode) Label() string {
	label, _ := n.Properties["label"].(string)
	return label
}

// Visible reports whether the node should be shown. Nodes are visible unless
// the "visible" property is explicitly false.
func (n *LayoutNode) Visible() bool {
	visible, ok := n.Properties["visible"].(bool)
	return !ok || visible
}

// Find returns the node with the given ID from the subtree rooted at n.
func (n *LayoutNode) Find(id int32) (*LayoutNode, bool) {
	if n.ID == id {
		return n, true
	}

	for _, child := range n.Children {
		if node, ok := child.Find(id); ok {
			return node, true
		}
	}

	return nil, false
}
