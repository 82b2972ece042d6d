// Package browsetree mirrors the remote media hierarchy of a single peer.
//
// The tree is owned by one session actor and is never shared; readers outside
// the actor receive [NodeInfo] snapshots instead.
package browsetree

import (
	"github.com/darkhz/avrctl/avrcp"
	"github.com/rs/xid"
)

// Identifiers of the pseudo nodes.
const (
	RootID       = "__ROOT__"
	NowPlayingID = "NOW_PLAYING"
	NavigateUpID = "NAVIGATE_UP"
)

// Tree is the local mirror of a peer's browsable media hierarchy.
type Tree struct {
	nodes map[string]*Node

	root       *Node
	nowPlaying *Node
	navigateUp *Node

	current       *Node
	browsedPlayer *Node

	// pendingUp is the number of levels the peer's folder cursor sits
	// below current, after a browsed player was set with a non-zero depth.
	pendingUp int
}

// New returns a tree holding only the pseudo nodes.
func New() *Tree {
	t := &Tree{
		root: newNode(RootID, avrcp.Item{
			Kind: avrcp.ItemFolder, Name: "Media Players", Browsable: true,
		}, avrcp.ScopePlayerList),
		nowPlaying: newNode(NowPlayingID, avrcp.Item{
			Kind: avrcp.ItemFolder, Name: "Now Playing", Browsable: true,
		}, avrcp.ScopeNowPlaying),
		navigateUp: newNode(NavigateUpID, avrcp.Item{
			Kind: avrcp.ItemFolder, Name: "..",
		}, avrcp.ScopeFileSystem),
	}

	t.reset()

	return t
}

// Root returns the pseudo node whose children are the peer's players.
func (t *Tree) Root() *Node {
	return t.root
}

// NowPlaying returns the pseudo node whose children are the now-playing queue.
func (t *Tree) NowPlaying() *Node {
	return t.nowPlaying
}

// NavigateUp returns the pseudo node that denotes a move to the parent folder.
func (t *Tree) NavigateUp() *Node {
	return t.navigateUp
}

// Current returns the folder the peer last acknowledged as its browsing position.
func (t *Tree) Current() *Node {
	return t.current
}

// BrowsedPlayer returns the player the peer last acknowledged as browsed, if any.
func (t *Tree) BrowsedPlayer() *Node {
	return t.browsedPlayer
}

// Len returns the number of nodes in the tree, including the pseudo nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node with the provided identifier.
func (t *Tree) Node(id string) (*Node, bool) {
	n, ok := t.nodes[id]

	return n, ok
}

// Contains reports whether the node is part of the tree.
func (t *Tree) Contains(n *Node) bool {
	if n == nil {
		return false
	}

	found, ok := t.nodes[n.id]

	return ok && found == n
}

// IsPseudo reports whether the node is one of the fixed pseudo nodes.
func (t *Tree) IsPseudo(n *Node) bool {
	return n == t.root || n == t.nowPlaying || n == t.navigateUp
}

// PlayerOf returns the player node that the provided node belongs to.
func (t *Tree) PlayerOf(n *Node) *Node {
	for ; n != nil; n = n.parent {
		if n.IsPlayer() {
			return n
		}
	}

	return nil
}

// Path returns the nodes from the root to the provided node, inclusive.
func (t *Tree) Path(n *Node) []*Node {
	var path []*Node

	for ; n != nil; n = n.parent {
		path = append([]*Node{n}, path...)
	}

	return path
}

// NextStepToward returns the next navigation step needed to list target.
//
// The result is target itself when it can be listed from the current position
// (or is a pseudo node), a player node when the browsed player must be set,
// the navigate-up node when the peer must move to a parent folder, or a child
// of the current folder when the peer must descend. It returns nil when target
// cannot be reached.
func (t *Tree) NextStepToward(target *Node) *Node {
	if !t.Contains(target) || target == t.navigateUp {
		return nil
	}

	if target == t.root || target == t.nowPlaying {
		return target
	}

	player := t.PlayerOf(target)
	if player == nil {
		return nil
	}

	if player != t.browsedPlayer {
		return player
	}

	if t.pendingUp > 0 {
		return t.navigateUp
	}

	if target == t.current {
		return target
	}

	if target.IsPlayer() {
		return target
	}

	if child := t.childToward(target); child != nil {
		return child
	}

	return t.navigateUp
}

// ReadyToList reports whether a listing of target can be requested immediately.
func (t *Tree) ReadyToList(target *Node) bool {
	if target == t.root || target == t.nowPlaying {
		return true
	}

	return target == t.current && t.pendingUp == 0 && t.browsedPlayer == t.PlayerOf(target)
}

// PageRange returns the half-open range of the next page to request for n.
// It returns false if every expected child has been fetched.
func (t *Tree) PageRange(n *Node) (start, end int, ok bool) {
	limit := n.fetchLimit()

	start = len(n.children)
	if start >= limit {
		return start, start, false
	}

	return start, min(limit, start+avrcp.PageSize), true
}

// AppendPage appends a page of listed items to n, and reports whether the
// listing of n is complete. A listing completes when the page is empty, every
// expected child has been fetched, or abort is set; n is then marked as cached.
// A listing of unknown size is bounded by avrcp.DefaultFolderSize.
func (t *Tree) AppendPage(n *Node, items []avrcp.Item, uidCounter uint16, abort bool) bool {
	for _, item := range items {
		if len(n.children) >= n.fetchLimit() {
			break
		}

		t.addChild(n, item, uidCounter)
	}

	if len(items) == 0 || abort || len(n.children) >= n.fetchLimit() {
		n.cached = true

		return true
	}

	return false
}

// MarkCached marks the listing of n as complete.
func (t *Tree) MarkCached(n *Node) {
	n.cached = true
}

// SetBrowsedPlayer applies an acknowledged browsed player change.
func (t *Tree) SetBrowsedPlayer(player *Node, itemCount, depth int, uidCounter uint16) {
	t.browsedPlayer = player
	t.current = player
	t.pendingUp = max(depth, 0)
	player.uidCounter = uidCounter

	if t.pendingUp == 0 {
		t.setExpected(player, itemCount)
	}
}

// FolderChanged applies an acknowledged folder change that was requested
// with step (the navigate-up node or a child of the current folder).
func (t *Tree) FolderChanged(step *Node, itemCount int) {
	if step == t.navigateUp {
		if t.pendingUp > 0 {
			t.pendingUp--
			if t.pendingUp == 0 {
				t.setExpected(t.current, itemCount)
			}

			return
		}

		if t.current != nil && t.current != t.browsedPlayer && t.current.parent != nil {
			t.current = t.current.parent
		}

		t.setExpected(t.current, itemCount)

		return
	}

	if !t.Contains(step) {
		return
	}

	t.current = step
	t.setExpected(step, itemCount)
}

// ResetPlayers discards every player and folder node, and returns the
// tree to its initial state.
func (t *Tree) ResetPlayers() {
	t.reset()
}

// InvalidateNowPlaying discards the now-playing listing.
func (t *Tree) InvalidateNowPlaying() {
	t.invalidate(t.nowPlaying)
}

// reset clears the tree, keeping only the pseudo nodes.
func (t *Tree) reset() {
	t.nodes = map[string]*Node{
		t.root.id:       t.root,
		t.nowPlaying.id: t.nowPlaying,
		t.navigateUp.id: t.navigateUp,
	}

	for _, n := range []*Node{t.root, t.nowPlaying} {
		n.children = nil
		n.cached = false
		n.expected = UnknownCount
	}

	t.current = t.root
	t.browsedPlayer = nil
	t.pendingUp = 0
}

// invalidate removes the children of n and marks it as not cached.
func (t *Tree) invalidate(n *Node) {
	t.truncate(n, 0)
	n.cached = false
	n.expected = UnknownCount
}

// setExpected records the peer reported child count of n.
// Children beyond the new count are discarded.
func (t *Tree) setExpected(n *Node, count int) {
	if n == nil || count < 0 {
		return
	}

	n.expected = count
	if len(n.children) > count {
		t.truncate(n, count)
	}
}

// truncate removes the children of n from position keep onwards,
// along with their subtrees.
func (t *Tree) truncate(n *Node, keep int) {
	for _, child := range n.children[keep:] {
		t.removeSubtree(child)
	}

	n.children = n.children[:keep]
}

func (t *Tree) removeSubtree(n *Node) {
	for _, child := range n.children {
		t.removeSubtree(child)
	}

	if t.current == n || t.browsedPlayer == n {
		t.current = t.root
		t.browsedPlayer = nil
		t.pendingUp = 0
	}

	delete(t.nodes, n.id)
}

// addChild creates a node for item under parent.
func (t *Tree) addChild(parent *Node, item avrcp.Item, uidCounter uint16) *Node {
	scope := avrcp.ScopeFileSystem
	switch {
	case parent == t.root:
		scope = avrcp.ScopePlayerList

	case parent.scope == avrcp.ScopeNowPlaying:
		scope = avrcp.ScopeNowPlaying
	}

	if parent != t.root && item.Kind == avrcp.ItemPlayer {
		item.Kind = avrcp.ItemFolder
	}

	child := newNode(xid.New().String(), item, scope)
	child.parent = parent
	child.uidCounter = uidCounter

	parent.children = append(parent.children, child)
	t.nodes[child.id] = child

	return child
}

// childToward returns the child of the current folder that lies on the
// path to target, if target is below the current folder.
func (t *Tree) childToward(target *Node) *Node {
	for n := target; n != nil; n = n.parent {
		if n.parent == t.current {
			return n
		}
	}

	return nil
}
