package views

import (
	"context"
	"errors"
	"strconv"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/events"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/avrcp/browsetree"
	"github.com/darkhz/avrctl/ui/keybindings"
	"github.com/darkhz/avrctl/ui/theme"
)

// browserView holds the media browser view.
// Every field is only accessed from the drawing routine.
type browserView struct {
	layout *tview.Flex
	title  *tview.TextView
	tree   *tview.TreeView

	device bluetooth.MacAddress
	nodes  map[string]*tview.TreeNode
	expand map[string]struct{}

	*Views
}

// Initialize initializes the browser view.
func (b *browserView) Initialize() error {
	b.nodes = make(map[string]*tview.TreeNode)
	b.expand = make(map[string]struct{})

	b.title = tview.NewTextView()
	b.title.SetDynamicColors(true)
	b.title.SetTextColor(theme.GetColor(theme.ThemeHeader))
	b.title.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	b.tree = tview.NewTreeView()
	b.tree.SetGraphics(true)
	b.tree.SetTopLevel(1)
	b.tree.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))
	b.tree.SetGraphicsColor(theme.GetColor(theme.ThemeBorder))
	b.tree.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch b.kb.Key(event, keybindings.ContextBrowser) {
		case keybindings.KeyHelp:
			b.help.showHelp()
			return event

		case keybindings.KeySelect:
			b.open(b.tree.GetCurrentNode())
			return nil

		case keybindings.KeyBrowserBack:
			b.back(b.tree.GetCurrentNode())
			return nil

		case keybindings.KeyBrowserPlay:
			b.play(b.tree.GetCurrentNode())
			return nil

		case keybindings.KeyBrowserAddress:
			b.address(b.tree.GetCurrentNode())
			return nil
		}

		b.player.keyEvents(event, b.device)

		return ignoreDefaultEvent(event)
	})

	b.layout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(b.title, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(b.tree, 0, 10, true)
	b.layout.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	go b.event()

	return nil
}

// SetRootView sets the root view of the browser view.
func (b *browserView) SetRootView(v *Views) {
	b.Views = v
}

// show switches to the browser page and displays the browse tree of the provided device.
func (b *browserView) show(device bluetooth.MacAddress) {
	if b.device != device {
		b.reset(device)
	}

	b.pages.SwitchToPage(browserPage.String())
	b.app.FocusPrimitive(b.tree)

	go b.load(device)
}

// reset clears the displayed tree and creates the pseudo-nodes of the device.
func (b *browserView) reset(device bluetooth.MacAddress) {
	b.device = device
	b.nodes = make(map[string]*tview.TreeNode)
	b.expand = make(map[string]struct{})

	root := tview.NewTreeNode(device.String()).SetSelectable(false)
	for _, info := range []browsetree.NodeInfo{
		{ID: browsetree.RootID, Title: "Media Players", Browsable: true},
		{ID: browsetree.NowPlayingID, Title: "Now Playing", Browsable: true},
	} {
		root.AddChild(b.newNode(info))
	}

	b.tree.SetRoot(root)
	b.tree.SetCurrentNode(root.GetChildren()[0])

	b.title.SetText(theme.ColorWrap(theme.ThemeHeader, "Browse ") + device.String())
}

// load fetches the current snapshots of the pseudo-nodes of the device.
func (b *browserView) load(device bluetooth.MacAddress) {
	for _, id := range []string{browsetree.RootID, browsetree.NowPlayingID} {
		info, err := b.app.Backend().Sessions.Node(context.Background(), device, id)
		if err != nil {
			b.status.ErrorMessage(err)
			return
		}

		b.app.QueueDraw(func() {
			b.update(device, info)
		})
	}
}

// open fetches the children of a browsable node, or plays a media item.
func (b *browserView) open(node *tview.TreeNode) {
	info, ok := nodeInfo(node)
	if !ok {
		return
	}

	if !info.Browsable && !info.IsPlayer {
		b.play(node)
		return
	}

	if node.IsExpanded() && len(node.GetChildren()) > 0 {
		node.SetExpanded(false)
		return
	}

	device := b.device
	b.expand[info.ID] = struct{}{}

	b.op.startOperation(func(ctx context.Context) {
		b.status.InfoMessage("Fetching "+info.Title+"...", true)

		if err := b.app.Backend().Sessions.RequestFolder(ctx, device, info.ID); err != nil {
			b.status.ErrorMessage(err)
			return
		}

		b.status.InfoMessage("Requested "+info.Title, false)
	})
}

// back collapses the folder which contains the provided node.
func (b *browserView) back(node *tview.TreeNode) {
	info, ok := nodeInfo(node)
	if !ok {
		return
	}

	if node.IsExpanded() && len(node.GetChildren()) > 0 {
		node.SetExpanded(false)
		return
	}

	parent, ok := b.nodes[info.ParentID]
	if !ok {
		return
	}

	parent.SetExpanded(false)
	b.tree.SetCurrentNode(parent)
}

// play plays the provided media item.
func (b *browserView) play(node *tview.TreeNode) {
	info, ok := nodeInfo(node)
	if !ok {
		return
	}

	if !info.Playable {
		b.status.InfoMessage(info.Title+" cannot be played", false)
		return
	}

	device := b.device

	b.op.startOperation(func(ctx context.Context) {
		if err := b.app.Backend().Sessions.PlayItem(ctx, device, info.ID); err != nil {
			b.status.ErrorMessage(err)
			return
		}

		b.status.InfoMessage("Playing "+info.Title, false)
	})
}

// address makes the provided player the addressed player.
func (b *browserView) address(node *tview.TreeNode) {
	info, ok := nodeInfo(node)
	if !ok {
		return
	}

	if !info.IsPlayer {
		b.status.InfoMessage(info.Title+" is not a media player", false)
		return
	}

	device := b.device

	b.op.startOperation(func(ctx context.Context) {
		if err := b.app.Backend().Sessions.SetAddressedPlayer(ctx, device, info.ID); err != nil {
			b.status.ErrorMessage(err)
			return
		}

		b.status.InfoMessage("Addressing "+info.Title, false)
	})
}

// update replaces a displayed node and its children with the provided snapshot.
func (b *browserView) update(device bluetooth.MacAddress, info browsetree.NodeInfo) {
	if device != b.device {
		return
	}

	node, ok := b.nodes[info.ID]
	if !ok {
		return
	}

	b.setNodeText(node, info)

	previous := make(map[string]*tview.TreeNode, len(node.GetChildren()))
	for _, child := range node.GetChildren() {
		if childInfo, ok := nodeInfo(child); ok {
			previous[childInfo.ID] = child
		}
	}

	children := make([]*tview.TreeNode, 0, len(info.Children))
	for _, childInfo := range info.Children {
		child, ok := previous[childInfo.ID]
		if ok {
			b.setNodeText(child, childInfo)
			delete(previous, childInfo.ID)
		} else {
			child = b.newNode(childInfo)
		}

		children = append(children, child)
	}

	for id := range previous {
		b.forget(previous[id], id)
	}

	node.SetChildren(children)

	if _, ok := b.expand[info.ID]; ok && info.Cached {
		delete(b.expand, info.ID)
		node.SetExpanded(true)

		b.status.InfoMessage("Fetched "+info.Title, false)
	}
}

// forget removes a node and its descendants from the node index.
func (b *browserView) forget(node *tview.TreeNode, id string) {
	delete(b.nodes, id)

	for _, child := range node.GetChildren() {
		if info, ok := nodeInfo(child); ok {
			b.forget(child, info.ID)
		}
	}
}

// newNode returns a new tree node for the provided snapshot.
func (b *browserView) newNode(info browsetree.NodeInfo) *tview.TreeNode {
	node := tview.NewTreeNode("").
		SetSelectable(true).
		SetExpanded(false)

	b.setNodeText(node, info)
	b.nodes[info.ID] = node

	return node
}

// setNodeText updates the text and reference of a node.
func (b *browserView) setNodeText(node *tview.TreeNode, info browsetree.NodeInfo) {
	color := theme.ThemeBrowserMedia
	switch {
	case info.IsPlayer:
		color = theme.ThemeBrowserPlayer

	case info.Browsable:
		color = theme.ThemeBrowserFolder
	}

	text := tview.Escape(info.Title)
	if info.Kind == avrcp.ItemMedia && info.Track.Artist != "" {
		text += " - " + tview.Escape(info.Track.Artist)
	}

	if (info.Browsable || info.IsPlayer) && !info.Cached {
		pending := "..."
		if info.Expected > 0 {
			pending = strconv.Itoa(len(info.Children)) + "/" + strconv.Itoa(info.Expected)
		}

		text += " " + theme.ColorWrap(theme.ThemeBrowserPending, "["+pending+"[]")
	}

	node.SetReference(info)
	node.SetText(text)
	node.SetColor(theme.GetColor(color))
}

// event handles browse tree events.
func (b *browserView) event() {
	browseSub, ok := events.BrowseEvents(b.app.Backend().Bus).Subscribe()
	if !ok {
		b.status.ErrorMessage(errors.New("cannot subscribe to browse events"))
		return
	}
	defer browseSub.Unsubscribe()

	for {
		select {
		case <-browseSub.Done:
			return

		case ev, ok := <-browseSub.UpdatedEvents:
			if !ok {
				return
			}

			b.app.QueueDraw(func() {
				b.update(ev.Address, ev.Node)
			})
		}
	}
}

// nodeInfo returns the snapshot referenced by a tree node.
func nodeInfo(node *tview.TreeNode) (browsetree.NodeInfo, bool) {
	if node == nil {
		return browsetree.NodeInfo{}, false
	}

	info, ok := node.GetReference().(browsetree.NodeInfo)

	return info, ok
}
