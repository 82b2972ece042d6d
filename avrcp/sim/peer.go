package sim

import (
	"github.com/darkhz/avrctl/avrcp"
)

// peer is the state of a single simulated renderer.
type peer struct {
	library *Library

	connected    bool
	unresponsive bool

	browsed *Player
	path    []*Folder
	paths   map[int][]*Folder

	addressed  int
	status     avrcp.PlayStatus
	current    int
	uidCounter uint16
	volume     int

	calls []Call
}

func newPeer(library *Library) *peer {
	if library == nil {
		library = &Library{}
	}

	p := &peer{
		library:    library,
		paths:      make(map[int][]*Folder),
		status:     avrcp.StatusStopped,
		uidCounter: 1,
		volume:     -1,
	}

	if len(library.Players) > 0 {
		p.addressed = library.Players[0].ID
	}

	return p
}

// folder returns the folder the cursor of the browsed player is at.
func (p *peer) folder() *Folder {
	if p.browsed == nil || len(p.path) == 0 {
		return nil
	}

	return p.path[len(p.path)-1]
}

func (p *peer) track() (Track, bool) {
	if p.current < 0 || p.current >= len(p.library.NowPlaying) {
		return Track{}, false
	}

	return p.library.NowPlaying[p.current], true
}

func (p *peer) connect() []avrcp.Event {
	p.connected = true

	events := []avrcp.Event{avrcp.ConnectionStateChanged{RemoteControlUp: true, BrowsingUp: true}}
	if track, ok := p.track(); ok {
		events = append(events, avrcp.TrackChanged{Track: track.Track})
	}

	return append(events, avrcp.PlayStatusChanged{Status: p.status})
}

func (p *peer) disconnect() []avrcp.Event {
	p.connected = false
	p.browsed, p.path = nil, nil

	return []avrcp.Event{avrcp.ConnectionStateChanged{}}
}

func (p *peer) passThrough(key avrcp.KeyCode, state avrcp.KeyState) []avrcp.Event {
	if state == avrcp.KeyReleased {
		if key.Holdable() && p.status != avrcp.StatusStopped {
			return p.setStatus(avrcp.StatusPlaying)
		}

		return nil
	}

	switch key {
	case avrcp.KeyPlay:
		return p.setStatus(avrcp.StatusPlaying)

	case avrcp.KeyPause:
		return p.setStatus(avrcp.StatusPaused)

	case avrcp.KeyStop:
		return p.setStatus(avrcp.StatusStopped)

	case avrcp.KeyFastForward:
		return p.setStatus(avrcp.StatusForwardSeek)

	case avrcp.KeyRewind:
		return p.setStatus(avrcp.StatusReverseSeek)

	case avrcp.KeyForward:
		return p.skip(1)

	case avrcp.KeyBackward:
		return p.skip(-1)
	}

	return nil
}

func (p *peer) setStatus(status avrcp.PlayStatus) []avrcp.Event {
	if p.status == status {
		return nil
	}

	p.status = status

	return []avrcp.Event{avrcp.PlayStatusChanged{Status: status}}
}

func (p *peer) skip(delta int) []avrcp.Event {
	count := len(p.library.NowPlaying)
	if count == 0 {
		return nil
	}

	p.current = ((p.current+delta)%count + count) % count

	return p.trackStarted()
}

// trackStarted reports the current track and its position.
func (p *peer) trackStarted() []avrcp.Event {
	track, ok := p.track()
	if !ok {
		return nil
	}

	events := []avrcp.Event{
		avrcp.TrackChanged{Track: track.Track},
		avrcp.PlayPositionChanged{SongLengthMs: track.Duration},
	}

	return append(events, p.setStatus(avrcp.StatusPlaying)...)
}

func (p *peer) setBrowsedPlayer(playerID int) []avrcp.Event {
	player := p.library.player(playerID)
	if player == nil || !player.Browsable || player.Root == nil {
		return nil
	}

	if p.browsed != nil {
		p.paths[p.browsed.ID] = p.path
	}

	p.browsed = player
	p.path = p.paths[player.ID]
	if len(p.path) == 0 {
		p.path = []*Folder{player.Root}
	}

	return []avrcp.Event{avrcp.BrowsedPlayerSet{
		ItemCount:  len(p.folder().items()),
		Depth:      len(p.path) - 1,
		UIDCounter: p.uidCounter,
	}}
}

func (p *peer) changeFolder(direction avrcp.Direction, uid uint64) []avrcp.Event {
	current := p.folder()
	if current == nil {
		return nil
	}

	switch direction {
	case avrcp.DirectionUp:
		if len(p.path) > 1 {
			p.path = p.path[:len(p.path)-1]
		}

	default:
		next := current.folder(uid)
		if next == nil {
			return nil
		}

		p.path = append(p.path, next)
	}

	return []avrcp.Event{avrcp.FolderPathChanged{ItemCount: len(p.folder().items())}}
}

func (p *peer) setAddressedPlayer(playerID int) []avrcp.Event {
	if p.library.player(playerID) == nil {
		return nil
	}

	p.addressed = playerID

	return []avrcp.Event{avrcp.AddressedPlayerChanged{PlayerID: playerID}}
}

func (p *peer) playItem(scope avrcp.Scope, uid uint64, uidCounter uint16) []avrcp.Event {
	if uidCounter != 0 && uidCounter != p.uidCounter {
		return nil
	}

	switch scope {
	case avrcp.ScopeNowPlaying:
		for i, track := range p.library.NowPlaying {
			if track.UID == uid {
				p.current = i

				return p.trackStarted()
			}
		}

	case avrcp.ScopeFileSystem:
		if p.browsed == nil {
			return nil
		}

		folder, index := p.browsed.Root.find(uid)
		if folder == nil {
			return nil
		}

		p.library.NowPlaying = folder.Tracks
		p.current = index

		return append(p.trackStarted(), avrcp.NowPlayingContentChanged{})
	}

	return nil
}
