package browsetree

import (
	"github.com/darkhz/avrctl/avrcp"
)

// UnknownCount is the expected child count of a node whose listing size
// has not been reported by the peer yet.
const UnknownCount = -1

// Node is a single element of the browse tree.
type Node struct {
	id     string
	parent *Node

	item  avrcp.Item
	scope avrcp.Scope

	children []*Node
	expected int
	cached   bool

	uidCounter uint16
}

func newNode(id string, item avrcp.Item, scope avrcp.Scope) *Node {
	return &Node{
		id:       id,
		item:     item,
		scope:    scope,
		expected: UnknownCount,
	}
}

// ID returns the locally generated identifier of the node.
func (n *Node) ID() string {
	return n.id
}

// Title returns the display name of the node.
func (n *Node) Title() string {
	return n.item.Name
}

// Item returns the listing entry the node was created from.
func (n *Node) Item() avrcp.Item {
	return n.item
}

// Scope returns the browsing scope of the node.
func (n *Node) Scope() avrcp.Scope {
	return n.scope
}

// UID returns the peer assigned identifier of the node.
func (n *Node) UID() uint64 {
	return n.item.UID
}

// UIDCounter returns the uid counter that was current when the node was listed.
func (n *Node) UIDCounter() uint16 {
	return n.uidCounter
}

// PlayerID returns the player identifier of a player node.
func (n *Node) PlayerID() int {
	return n.item.PlayerID
}

// Parent returns the parent of the node, or nil for the pseudo nodes.
func (n *Node) Parent() *Node {
	return n.parent
}

// IsPlayer reports whether the node is a media player.
func (n *Node) IsPlayer() bool {
	return n.item.Kind == avrcp.ItemPlayer
}

// Browsable reports whether the node can be listed.
func (n *Node) Browsable() bool {
	return n.item.Browsable
}

// Playable reports whether the node can be played.
func (n *Node) Playable() bool {
	return n.item.Playable
}

// Cached reports whether the node's listing is complete.
func (n *Node) Cached() bool {
	return n.cached
}

// Expected returns the number of children the peer reported, or [UnknownCount].
func (n *Node) Expected() int {
	return n.expected
}

// ChildCount returns the number of fetched children.
func (n *Node) ChildCount() int {
	return len(n.children)
}

// Children returns the fetched children of the node.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// isDescendantOf reports whether the node lies strictly below ancestor.
func (n *Node) isDescendantOf(ancestor *Node) bool {
	for p := n.parent; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}

	return false
}

// fetchLimit returns the number of children a listing of this node is bounded by.
func (n *Node) fetchLimit() int {
	if n.expected == UnknownCount {
		return avrcp.DefaultFolderSize
	}

	return n.expected
}
