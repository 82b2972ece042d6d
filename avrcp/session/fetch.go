package session

import (
	"github.com/darkhz/avrctl/api/errorkinds"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/avrcp/browsetree"
)

// shouldAbort reports whether a request for a node in the requested scope
// halts an in-flight fetch in the current scope.
func shouldAbort(current, requested avrcp.Scope) bool {
	return current == requested ||
		(current == avrcp.ScopeFileSystem && requested == avrcp.ScopePlayerList)
}

// requestFolder starts listing a node, or defers the request while another
// node is being fetched.
func (st *State) requestFolder(m RequestFolder, out *Outcome) {
	node, ok := st.Tree.Node(m.NodeID)
	if !ok || node == st.Tree.NavigateUp() {
		out.reject(errorkinds.ErrNodeNotFound)

		return
	}

	if !node.Browsable() && !node.IsPlayer() {
		out.reject(errorkinds.ErrNodeNotBrowsable)

		return
	}

	if st.Sub == FetchingFolder {
		if node == st.fetch.target {
			return
		}

		if shouldAbort(st.fetch.target.Scope(), node.Scope()) {
			st.fetch.abort = true
		}

		st.deferred = append(st.deferred, m)

		return
	}

	if node.Cached() {
		st.notifyNode(node, out)

		return
	}

	st.Sub = FetchingFolder
	st.fetch = &fetchContext{target: node}
	st.armTimer(TimerFetch, out)
	st.navigate(out)
}

// navigate issues the next navigation step toward the fetch target, or
// starts listing it once the peer is positioned.
func (st *State) navigate(out *Outcome) {
	target := st.fetch.target

	step := st.Tree.NextStepToward(target)
	switch {
	case step == nil:
		st.finishFetch(FetchAbandoned, out)

	case st.Tree.ReadyToList(target):
		st.fetchPage(target, out)

	case step.IsPlayer():
		if !step.Browsable() {
			st.Tree.MarkCached(step)
			st.notifyNode(step, out)
			st.finishFetch(FetchCompleted, out)

			return
		}

		st.fetch.step, st.fetch.listing = step, false
		out.emit(CallSetBrowsedPlayer{PlayerID: step.PlayerID()})

	case step == st.Tree.NavigateUp():
		st.fetch.step, st.fetch.listing = step, false
		out.emit(CallChangeFolderPath{Direction: avrcp.DirectionUp})

	default:
		st.fetch.step, st.fetch.listing = step, false
		out.emit(CallChangeFolderPath{Direction: avrcp.DirectionDown, UID: step.UID()})
	}
}

// fetchPage requests the next page of node's listing.
func (st *State) fetchPage(node *browsetree.Node, out *Outcome) {
	start, end, ok := st.Tree.PageRange(node)
	if !ok {
		st.Tree.MarkCached(node)
		st.notifyNode(node, out)
		st.finishFetch(FetchCompleted, out)

		return
	}

	st.fetch.step, st.fetch.listing = node, true

	switch node {
	case st.Tree.Root():
		out.emit(CallGetPlayerList{Start: start, End: end})

	case st.Tree.NowPlaying():
		out.emit(CallGetNowPlayingList{Start: start, End: end})

	default:
		out.emit(CallGetFolderList{Start: start, End: end})
	}
}

// itemsReceived appends a listing page to the node being listed.
func (st *State) itemsReceived(players bool, items []avrcp.Item, status avrcp.ListingStatus, uidCounter uint16, out *Outcome) {
	if st.Sub != FetchingFolder || !st.fetch.listing {
		return
	}

	node := st.fetch.step
	if players != (node == st.Tree.Root()) {
		return
	}

	switch status {
	case avrcp.StatusOutOfRange:
		st.Tree.MarkCached(node)
		st.notifyNode(node, out)
		st.finishFetch(FetchCompleted, out)

		return

	case avrcp.StatusFailed:
		st.finishFetch(FetchAbandoned, out)

		return
	}

	abort := st.fetch.abort

	complete := st.Tree.AppendPage(node, items, uidCounter, abort)
	st.notifyNode(node, out)

	if complete {
		reason := FetchCompleted
		if abort {
			reason = FetchAborted
		}

		st.finishFetch(reason, out)

		return
	}

	st.armTimer(TimerFetch, out)
	st.fetchPage(node, out)
}

// folderPathChanged applies a folder change acknowledgement.
func (st *State) folderPathChanged(ev avrcp.FolderPathChanged, out *Outcome) {
	if st.Sub != FetchingFolder || st.fetch.listing || st.fetch.step == nil || st.fetch.step.IsPlayer() {
		return
	}

	st.Tree.FolderChanged(st.fetch.step, ev.ItemCount)
	st.stepAcknowledged(out)
}

// browsedPlayerSet applies a browsed player acknowledgement.
func (st *State) browsedPlayerSet(ev avrcp.BrowsedPlayerSet, out *Outcome) {
	if st.Sub != FetchingFolder || st.fetch.listing || st.fetch.step == nil || !st.fetch.step.IsPlayer() {
		return
	}

	st.Tree.SetBrowsedPlayer(st.fetch.step, ev.ItemCount, ev.Depth, ev.UIDCounter)
	st.UIDCounter = ev.UIDCounter
	st.stepAcknowledged(out)
}

func (st *State) stepAcknowledged(out *Outcome) {
	st.fetch.step = nil

	if st.fetch.abort {
		st.finishFetch(FetchAborted, out)

		return
	}

	st.armTimer(TimerFetch, out)
	st.navigate(out)
}

// finishFetch returns the session to Idle.
func (st *State) finishFetch(reason FinishReason, out *Outcome) {
	var target string
	if st.fetch != nil {
		target = st.fetch.target.ID()
	}

	st.cancelTimer(TimerFetch, out)
	st.Sub = Idle
	st.fetch = nil

	out.emit(FetchFinished{Target: target, Reason: reason})
}

func (st *State) notifyNode(node *browsetree.Node, out *Outcome) {
	out.emit(NotifyNodeChanged{Node: st.Tree.Snapshot(node)})
}
