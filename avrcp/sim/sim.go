// Package sim provides a simulated AVRCP target. It implements the outbound
// stack calls against an in-memory media library, and answers them
// asynchronously with inbound events, like a remote renderer would.
package sim

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/errorkinds"
	"github.com/darkhz/avrctl/avrcp"
)

// Call is a recorded outbound call.
type Call struct {
	Op   string
	Args []any
}

// String returns a printable form of the call.
func (c Call) String() string {
	return fmt.Sprint(append([]any{c.Op}, c.Args...)...)
}

type delivery struct {
	device bluetooth.MacAddress
	event  avrcp.Event
}

// Stack is a simulated native stack with any number of remote renderers.
type Stack struct {
	peers   map[bluetooth.MacAddress]*peer
	pending []delivery
	wake    chan struct{}

	mu sync.Mutex
}

// New returns a simulated stack without any devices.
func New() *Stack {
	return &Stack{
		peers: make(map[bluetooth.MacAddress]*peer),
		wake:  make(chan struct{}, 1),
	}
}

// AddDevice adds a remote renderer with the provided library.
func (s *Stack) AddDevice(device bluetooth.MacAddress, library *Library) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.peers[device] = newPeer(library)
}

// Devices returns the addresses of every simulated device.
func (s *Stack) Devices() []bluetooth.MacAddress {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := make([]bluetooth.MacAddress, 0, len(s.peers))
	for device := range s.peers {
		devices = append(devices, device)
	}

	slices.SortFunc(devices, func(a, b bluetooth.MacAddress) int {
		return slices.Compare(a[:], b[:])
	})

	return devices
}

// Listen delivers inbound events to the sink, in the order they were
// produced, until ctx is cancelled.
func (s *Stack) Listen(ctx context.Context, sink avrcp.EventSink) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-s.wake:
		}

		s.mu.Lock()
		pending := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, d := range pending {
			sink.HandleStackEvent(d.device, d.event)
		}
	}
}

// emit queues events for delivery. The caller must hold the lock.
func (s *Stack) emit(device bluetooth.MacAddress, events ...avrcp.Event) {
	for _, event := range events {
		s.pending = append(s.pending, delivery{device, event})
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// call runs fn against the peer of a device with the lock held, after
// recording the call.
func (s *Stack) call(device bluetooth.MacAddress, op string, fn func(p *peer) []avrcp.Event, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.peers[device]
	if !ok {
		return fault.Wrap(errorkinds.ErrDeviceNotFound,
			fctx.With(context.Background(), "error_at", "sim-"+op, "address", device.String()),
			ftag.With(ftag.NotFound),
			fmsg.With("Simulated device does not exist"),
		)
	}

	p.calls = append(p.calls, Call{Op: op, Args: args})

	if !p.connected && op != "connect" {
		return fault.Wrap(errorkinds.ErrNotConnected,
			fctx.With(context.Background(), "error_at", "sim-"+op, "address", device.String()),
			ftag.With(ftag.Internal),
			fmsg.With("Simulated device is not connected"),
		)
	}

	events := fn(p)
	if p.unresponsive && isBrowsingResponse(events) {
		return nil
	}

	s.emit(device, events...)

	return nil
}

// Connect connects to the device.
func (s *Stack) Connect(device bluetooth.MacAddress) error {
	return s.call(device, "connect", (*peer).connect)
}

// Disconnect disconnects from the device.
func (s *Stack) Disconnect(device bluetooth.MacAddress) error {
	return s.call(device, "disconnect", (*peer).disconnect)
}

// SendPassThrough presses or releases a key on the device.
func (s *Stack) SendPassThrough(device bluetooth.MacAddress, key avrcp.KeyCode, state avrcp.KeyState) error {
	return s.call(device, "pass-through", func(p *peer) []avrcp.Event {
		return p.passThrough(key, state)
	}, key, state)
}

// GetPlayerList lists the media players of the device.
func (s *Stack) GetPlayerList(device bluetooth.MacAddress, start, end int) error {
	return s.call(device, "get-player-list", func(p *peer) []avrcp.Event {
		items, status := page(p.library.playerItems(), start, end)

		return []avrcp.Event{avrcp.PlayerListReceived{Players: items, Status: status}}
	}, start, end)
}

// GetFolderList lists the current folder of the browsed player.
func (s *Stack) GetFolderList(device bluetooth.MacAddress, start, end int) error {
	return s.call(device, "get-folder-list", func(p *peer) []avrcp.Event {
		folder := p.folder()
		if folder == nil {
			return []avrcp.Event{avrcp.FolderItemsReceived{Status: avrcp.StatusFailed}}
		}

		items, status := page(folder.items(), start, end)

		return []avrcp.Event{avrcp.FolderItemsReceived{Items: items, Status: status, UIDCounter: p.uidCounter}}
	}, start, end)
}

// GetNowPlayingList lists the now playing queue of the addressed player.
func (s *Stack) GetNowPlayingList(device bluetooth.MacAddress, start, end int) error {
	return s.call(device, "get-now-playing-list", func(p *peer) []avrcp.Event {
		items, status := page(tracks(p.library.NowPlaying), start, end)

		return []avrcp.Event{avrcp.FolderItemsReceived{Items: items, Status: status, UIDCounter: p.uidCounter}}
	}, start, end)
}

// ChangeFolderPath moves the folder cursor of the browsed player.
func (s *Stack) ChangeFolderPath(device bluetooth.MacAddress, direction avrcp.Direction, uid uint64) error {
	return s.call(device, "change-folder-path", func(p *peer) []avrcp.Event {
		return p.changeFolder(direction, uid)
	}, direction, uid)
}

// SetBrowsedPlayer sets the browsed player.
func (s *Stack) SetBrowsedPlayer(device bluetooth.MacAddress, playerID int) error {
	return s.call(device, "set-browsed-player", func(p *peer) []avrcp.Event {
		return p.setBrowsedPlayer(playerID)
	}, playerID)
}

// SetAddressedPlayer sets the addressed player.
func (s *Stack) SetAddressedPlayer(device bluetooth.MacAddress, playerID int) error {
	return s.call(device, "set-addressed-player", func(p *peer) []avrcp.Event {
		return p.setAddressedPlayer(playerID)
	}, playerID)
}

// PlayItem plays an item.
func (s *Stack) PlayItem(device bluetooth.MacAddress, scope avrcp.Scope, uid uint64, uidCounter uint16) error {
	return s.call(device, "play-item", func(p *peer) []avrcp.Event {
		return p.playItem(scope, uid, uidCounter)
	}, scope, uid, uidCounter)
}

// SendAbsoluteVolumeResponse acknowledges a volume command of the device.
func (s *Stack) SendAbsoluteVolumeResponse(device bluetooth.MacAddress, volume int, label avrcp.Label) error {
	return s.call(device, "absolute-volume-response", func(p *peer) []avrcp.Event {
		p.volume = volume

		return nil
	}, volume, label)
}

// SendVolumeNotification answers a volume notification registration of the device.
func (s *Stack) SendVolumeNotification(device bluetooth.MacAddress, kind avrcp.NotificationKind, volume int, label avrcp.Label) error {
	return s.call(device, "volume-notification", func(p *peer) []avrcp.Event {
		p.volume = volume

		return nil
	}, kind, volume, label)
}

// SetAbsoluteVolume makes the device request a volume change.
func (s *Stack) SetAbsoluteVolume(device bluetooth.MacAddress, volume int, label avrcp.Label) error {
	return s.inject(device, avrcp.SetAbsoluteVolume{Volume: volume, Label: label})
}

// RegisterAbsoluteVolume makes the device register for volume notifications.
func (s *Stack) RegisterAbsoluteVolume(device bluetooth.MacAddress, label avrcp.Label) error {
	return s.inject(device, avrcp.RegisterAbsoluteVolume{Label: label})
}

// ChangePlayers makes the device report that its players have changed.
func (s *Stack) ChangePlayers(device bluetooth.MacAddress) error {
	return s.inject(device, avrcp.AvailablePlayersChanged{})
}

// DropLink makes the device drop both channels.
func (s *Stack) DropLink(device bluetooth.MacAddress) error {
	s.mu.Lock()
	if p, ok := s.peers[device]; ok {
		p.connected = false
	}
	s.mu.Unlock()

	return s.inject(device, avrcp.ConnectionStateChanged{})
}

// ConnectFromDevice makes the device connect on its own.
func (s *Stack) ConnectFromDevice(device bluetooth.MacAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.peers[device]
	if !ok {
		return errorkinds.ErrDeviceNotFound
	}

	s.emit(device, p.connect()...)

	return nil
}

// SetUnresponsive makes the device ignore, or answer again, browsing requests.
func (s *Stack) SetUnresponsive(device bluetooth.MacAddress, unresponsive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.peers[device]; ok {
		p.unresponsive = unresponsive
	}
}

// Volume returns the last volume the controller reported to the device.
func (s *Stack) Volume(device bluetooth.MacAddress) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.peers[device]; ok {
		return p.volume
	}

	return -1
}

// Calls returns every call made to the device.
func (s *Stack) Calls(device bluetooth.MacAddress) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.peers[device]; ok {
		return slices.Clone(p.calls)
	}

	return nil
}

// Count returns the number of calls with the provided name made to the device.
func (s *Stack) Count(device bluetooth.MacAddress, op string) int {
	count := 0

	for _, call := range s.Calls(device) {
		if call.Op == op {
			count++
		}
	}

	return count
}

func (s *Stack) inject(device bluetooth.MacAddress, event avrcp.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.peers[device]; !ok {
		return errorkinds.ErrDeviceNotFound
	}

	s.emit(device, event)

	return nil
}

// page returns the items within [start, end).
func page(items []avrcp.Item, start, end int) ([]avrcp.Item, avrcp.ListingStatus) {
	if start < 0 || start >= len(items) {
		return nil, avrcp.StatusOutOfRange
	}

	return items[start:min(end, len(items))], avrcp.StatusOK
}

func isBrowsingResponse(events []avrcp.Event) bool {
	for _, event := range events {
		switch event.(type) {
		case avrcp.FolderItemsReceived, avrcp.PlayerListReceived,
			avrcp.FolderPathChanged, avrcp.BrowsedPlayerSet:
			return true
		}
	}

	return false
}
