package sim

import (
	"context"
	"testing"
	"time"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/errorkinds"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDevice = bluetooth.MacAddress{0xAA, 0xBB, 0xCC, 0x00, 0x11, 0x22}

type recorder struct {
	events chan delivery
}

func (r *recorder) HandleStackEvent(device bluetooth.MacAddress, event avrcp.Event) {
	r.events <- delivery{device, event}
}

func newStack(t *testing.T) (*Stack, *Library, *recorder) {
	t.Helper()

	library := DemoLibrary()

	stack := New()
	stack.AddDevice(testDevice, library)

	rec := &recorder{events: make(chan delivery, 256)}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go stack.Listen(ctx, rec)

	return stack, library, rec
}

// next returns the next delivered event.
func (r *recorder) next(t *testing.T) avrcp.Event {
	t.Helper()

	select {
	case d := <-r.events:
		assert.Equal(t, testDevice, d.device)

		return d.event

	case <-time.After(time.Second):
		require.FailNow(t, "no event delivered")
	}

	return nil
}

func (r *recorder) none(t *testing.T) {
	t.Helper()

	select {
	case d := <-r.events:
		require.FailNow(t, "unexpected event", avrcp.EventName(d.event))

	case <-time.After(50 * time.Millisecond):
	}
}

func connect(t *testing.T, stack *Stack, rec *recorder) {
	t.Helper()

	require.NoError(t, stack.Connect(testDevice))
	assert.Equal(t, avrcp.ConnectionStateChanged{RemoteControlUp: true, BrowsingUp: true}, rec.next(t))
	assert.IsType(t, avrcp.TrackChanged{}, rec.next(t))
	assert.Equal(t, avrcp.PlayStatusChanged{Status: avrcp.StatusStopped}, rec.next(t))
}

func TestConnect(t *testing.T) {
	stack, _, rec := newStack(t)

	connect(t, stack, rec)

	require.NoError(t, stack.Disconnect(testDevice))
	assert.Equal(t, avrcp.ConnectionStateChanged{}, rec.next(t))
	assert.Equal(t, 1, stack.Count(testDevice, "connect"))
	assert.Equal(t, 1, stack.Count(testDevice, "disconnect"))
}

func TestCallErrors(t *testing.T) {
	stack, _, rec := newStack(t)

	err := stack.GetPlayerList(testDevice, 0, avrcp.PageSize)
	assert.ErrorIs(t, err, errorkinds.ErrNotConnected)

	err = stack.Connect(bluetooth.MacAddress{0x01})
	assert.ErrorIs(t, err, errorkinds.ErrDeviceNotFound)

	rec.none(t)
}

func TestPlayerList(t *testing.T) {
	stack, _, rec := newStack(t)
	connect(t, stack, rec)

	require.NoError(t, stack.GetPlayerList(testDevice, 0, avrcp.PageSize))

	ev, ok := rec.next(t).(avrcp.PlayerListReceived)
	require.True(t, ok)
	assert.Equal(t, avrcp.StatusOK, ev.Status)
	require.Len(t, ev.Players, 3)
	assert.Equal(t, "Music", ev.Players[0].Name)
	assert.True(t, ev.Players[0].Browsable)
	assert.False(t, ev.Players[2].Browsable)

	require.NoError(t, stack.GetPlayerList(testDevice, 3, 3+avrcp.PageSize))
	assert.Equal(t, avrcp.PlayerListReceived{Status: avrcp.StatusOutOfRange}, rec.next(t))
}

func TestFolderNavigation(t *testing.T) {
	stack, library, rec := newStack(t)
	connect(t, stack, rec)

	music := library.Players[0].Root
	playlists := music.Folders[1]
	mixes := playlists.Folders[0]

	require.NoError(t, stack.SetBrowsedPlayer(testDevice, 1))
	assert.Equal(t, avrcp.BrowsedPlayerSet{ItemCount: 2, UIDCounter: 1}, rec.next(t))

	require.NoError(t, stack.ChangeFolderPath(testDevice, avrcp.DirectionDown, playlists.UID))
	assert.Equal(t, avrcp.FolderPathChanged{ItemCount: 2}, rec.next(t))

	require.NoError(t, stack.ChangeFolderPath(testDevice, avrcp.DirectionDown, mixes.UID))
	assert.Equal(t, avrcp.FolderPathChanged{ItemCount: 45}, rec.next(t))

	for start, want := range map[int]int{0: 20, 20: 20, 40: 5} {
		require.NoError(t, stack.GetFolderList(testDevice, start, start+avrcp.PageSize))

		ev, ok := rec.next(t).(avrcp.FolderItemsReceived)
		require.True(t, ok)
		assert.Equal(t, avrcp.StatusOK, ev.Status)
		assert.Len(t, ev.Items, want)
		assert.Equal(t, mixes.Tracks[start].UID, ev.Items[0].UID)
	}

	require.NoError(t, stack.GetFolderList(testDevice, 45, 65))
	assert.Equal(t, avrcp.StatusOutOfRange, rec.next(t).(avrcp.FolderItemsReceived).Status)

	// The folder cursor of a player is kept while another one is browsed.
	require.NoError(t, stack.SetBrowsedPlayer(testDevice, 2))
	assert.Equal(t, avrcp.BrowsedPlayerSet{ItemCount: 2, UIDCounter: 1}, rec.next(t))

	require.NoError(t, stack.SetBrowsedPlayer(testDevice, 1))
	assert.Equal(t, avrcp.BrowsedPlayerSet{ItemCount: 45, Depth: 2, UIDCounter: 1}, rec.next(t))

	require.NoError(t, stack.ChangeFolderPath(testDevice, avrcp.DirectionUp, 0))
	assert.Equal(t, avrcp.FolderPathChanged{ItemCount: 2}, rec.next(t))

	// Unknown folders and players are never answered.
	require.NoError(t, stack.ChangeFolderPath(testDevice, avrcp.DirectionDown, 9999))
	require.NoError(t, stack.SetBrowsedPlayer(testDevice, 3))
	rec.none(t)
}

func TestUnresponsive(t *testing.T) {
	stack, _, rec := newStack(t)
	connect(t, stack, rec)

	stack.SetUnresponsive(testDevice, true)
	require.NoError(t, stack.GetPlayerList(testDevice, 0, avrcp.PageSize))
	rec.none(t)
	assert.Equal(t, 1, stack.Count(testDevice, "get-player-list"))

	require.NoError(t, stack.SendPassThrough(testDevice, avrcp.KeyPlay, avrcp.KeyPressed))
	assert.Equal(t, avrcp.PlayStatusChanged{Status: avrcp.StatusPlaying}, rec.next(t))

	stack.SetUnresponsive(testDevice, false)
	require.NoError(t, stack.GetPlayerList(testDevice, 0, avrcp.PageSize))
	assert.IsType(t, avrcp.PlayerListReceived{}, rec.next(t))
}

func TestPassThrough(t *testing.T) {
	stack, library, rec := newStack(t)
	connect(t, stack, rec)

	require.NoError(t, stack.SendPassThrough(testDevice, avrcp.KeyFastForward, avrcp.KeyPressed))
	assert.Equal(t, avrcp.PlayStatusChanged{Status: avrcp.StatusForwardSeek}, rec.next(t))

	require.NoError(t, stack.SendPassThrough(testDevice, avrcp.KeyFastForward, avrcp.KeyReleased))
	assert.Equal(t, avrcp.PlayStatusChanged{Status: avrcp.StatusPlaying}, rec.next(t))

	require.NoError(t, stack.SendPassThrough(testDevice, avrcp.KeyBackward, avrcp.KeyPressed))

	last := library.NowPlaying[len(library.NowPlaying)-1]
	assert.Equal(t, avrcp.TrackChanged{Track: last.Track}, rec.next(t))
	assert.Equal(t, avrcp.PlayPositionChanged{SongLengthMs: last.Duration}, rec.next(t))

	require.NoError(t, stack.SendPassThrough(testDevice, avrcp.KeyBackward, avrcp.KeyReleased))
	rec.none(t)
}

func TestPlayItem(t *testing.T) {
	stack, library, rec := newStack(t)
	connect(t, stack, rec)

	road := library.Players[0].Root.Folders[1].Folders[1]
	track := road.Tracks[4]

	// Items cannot be played from a player that is not browsed.
	require.NoError(t, stack.PlayItem(testDevice, avrcp.ScopeFileSystem, track.UID, 1))
	rec.none(t)

	require.NoError(t, stack.SetBrowsedPlayer(testDevice, 1))
	rec.next(t)

	require.NoError(t, stack.PlayItem(testDevice, avrcp.ScopeFileSystem, track.UID, 2))
	rec.none(t)

	require.NoError(t, stack.PlayItem(testDevice, avrcp.ScopeFileSystem, track.UID, 1))
	assert.Equal(t, avrcp.TrackChanged{Track: track.Track}, rec.next(t))
	assert.IsType(t, avrcp.PlayPositionChanged{}, rec.next(t))
	assert.Equal(t, avrcp.PlayStatusChanged{Status: avrcp.StatusPlaying}, rec.next(t))
	assert.Equal(t, avrcp.NowPlayingContentChanged{}, rec.next(t))

	require.NoError(t, stack.GetNowPlayingList(testDevice, 0, avrcp.PageSize))
	ev := rec.next(t).(avrcp.FolderItemsReceived)
	assert.Len(t, ev.Items, len(road.Tracks))

	require.NoError(t, stack.PlayItem(testDevice, avrcp.ScopeNowPlaying, road.Tracks[0].UID, 1))
	assert.Equal(t, avrcp.TrackChanged{Track: road.Tracks[0].Track}, rec.next(t))
	assert.IsType(t, avrcp.PlayPositionChanged{}, rec.next(t))
	rec.none(t)
}

func TestVolume(t *testing.T) {
	stack, _, rec := newStack(t)
	connect(t, stack, rec)

	assert.Equal(t, -1, stack.Volume(testDevice))

	require.NoError(t, stack.RegisterAbsoluteVolume(testDevice, 4))
	assert.Equal(t, avrcp.RegisterAbsoluteVolume{Label: 4}, rec.next(t))

	require.NoError(t, stack.SendVolumeNotification(testDevice, avrcp.NotificationInterim, 64, 4))
	assert.Equal(t, 64, stack.Volume(testDevice))

	require.NoError(t, stack.SetAbsoluteVolume(testDevice, 100, 5))
	assert.Equal(t, avrcp.SetAbsoluteVolume{Volume: 100, Label: 5}, rec.next(t))

	require.NoError(t, stack.SendAbsoluteVolumeResponse(testDevice, 101, 5))
	assert.Equal(t, 101, stack.Volume(testDevice))

	calls := stack.Calls(testDevice)
	assert.Equal(t, "absolute-volume-response", calls[len(calls)-1].Op)
}

func TestDropLink(t *testing.T) {
	stack, _, rec := newStack(t)
	connect(t, stack, rec)

	require.NoError(t, stack.DropLink(testDevice))
	assert.Equal(t, avrcp.ConnectionStateChanged{}, rec.next(t))
	assert.ErrorIs(t, stack.SetAddressedPlayer(testDevice, 2), errorkinds.ErrNotConnected)

	require.NoError(t, stack.ConnectFromDevice(testDevice))
	assert.Equal(t, avrcp.ConnectionStateChanged{RemoteControlUp: true, BrowsingUp: true}, rec.next(t))
}
