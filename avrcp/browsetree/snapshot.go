package browsetree

import "github.com/darkhz/avrctl/avrcp"

// NodeInfo is an immutable snapshot of a node, safe to hand to other goroutines.
type NodeInfo struct {
	ID       string
	ParentID string
	Title    string

	Scope    avrcp.Scope
	Kind     avrcp.ItemKind
	UID      uint64
	PlayerID int
	Track    avrcp.Track

	IsPlayer  bool
	Browsable bool
	Playable  bool
	Cached    bool

	Expected int

	// Children holds one level of child snapshots. The children of
	// these snapshots are never filled in.
	Children []NodeInfo
}

// Snapshot returns a snapshot of n along with its direct children.
func (t *Tree) Snapshot(n *Node) NodeInfo {
	info := snapshot(n)

	info.Children = make([]NodeInfo, 0, len(n.children))
	for _, child := range n.children {
		info.Children = append(info.Children, snapshot(child))
	}

	return info
}

func snapshot(n *Node) NodeInfo {
	info := NodeInfo{
		ID:        n.id,
		Title:     n.item.Name,
		Scope:     n.scope,
		Kind:      n.item.Kind,
		UID:       n.item.UID,
		PlayerID:  n.item.PlayerID,
		Track:     n.item.Track,
		IsPlayer:  n.IsPlayer(),
		Browsable: n.item.Browsable,
		Playable:  n.item.Playable,
		Cached:    n.cached,
		Expected:  n.expected,
	}

	if n.parent != nil {
		info.ParentID = n.parent.id
	}

	return info
}
