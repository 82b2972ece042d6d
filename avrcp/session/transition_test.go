package session

import (
	"fmt"
	"testing"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/errorkinds"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/avrcp/browsetree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDevice = bluetooth.MacAddress{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}

type fakeVolume struct {
	index, max int
	active     bool
}

func (f *fakeVolume) Volume() (int, int) {
	return f.index, f.max
}

func (f *fakeVolume) IsActive(bluetooth.MacAddress) bool {
	return f.active
}

type harness struct {
	t   *testing.T
	st  *State
	vol *fakeVolume
}

// newHarness returns a connected session.
func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		t:   t,
		st:  NewState(testDevice),
		vol: &fakeVolume{index: 8, max: 15, active: true},
	}

	out := h.send(Connect{})
	require.NoError(t, out.Err)
	require.Equal(t, Connected, h.st.Conn)

	return h
}

func (h *harness) send(msg Message) Outcome {
	return Transition(h.st, h.vol, msg)
}

func (h *harness) event(ev avrcp.Event) Outcome {
	return h.send(StackEvent{Event: ev})
}

// resume processes every deferred message, as the actor does once the
// session is idle again.
func (h *harness) resume() []Outcome {
	var outs []Outcome

	for {
		msg, ok := h.st.NextDeferred()
		if !ok {
			return outs
		}

		outs = append(outs, h.send(msg))
	}
}

// browse lists the player list and the root of the "Music" player,
// which holds the folders "music" and "podcasts".
func (h *harness) browse() *browsetree.Node {
	h.t.Helper()

	h.send(RequestFolder{NodeID: browsetree.RootID})
	h.event(avrcp.PlayerListReceived{Players: []avrcp.Item{
		playerItem(1, "Music", true),
		playerItem(2, "Radio", false),
	}})
	h.event(avrcp.PlayerListReceived{})
	require.True(h.t, h.st.Tree.Root().Cached())

	player := h.st.Tree.Root().Children()[0]
	h.send(RequestFolder{NodeID: player.ID()})
	h.event(avrcp.BrowsedPlayerSet{ItemCount: 2, UIDCounter: 7})
	h.event(avrcp.FolderItemsReceived{Items: []avrcp.Item{
		folderItem(10, "music"),
		folderItem(11, "podcasts"),
	}, UIDCounter: 7})

	require.True(h.t, player.Cached())
	require.Equal(h.t, Idle, h.st.Sub)

	return player
}

func effectsOf[T Effect](out Outcome) []T {
	var effects []T

	for _, e := range out.Effects {
		if v, ok := e.(T); ok {
			effects = append(effects, v)
		}
	}

	return effects
}

func single[T Effect](t *testing.T, out Outcome) T {
	t.Helper()

	effects := effectsOf[T](out)
	require.Len(t, effects, 1, "effects: %v", out.Effects)

	return effects[0]
}

func mediaItems(from, to int) []avrcp.Item {
	items := make([]avrcp.Item, 0, to-from)
	for i := from; i < to; i++ {
		items = append(items, avrcp.Item{
			Kind:     avrcp.ItemMedia,
			UID:      uint64(1000 + i),
			Name:     fmt.Sprintf("track %d", i),
			Playable: true,
		})
	}

	return items
}

func folderItem(uid uint64, name string) avrcp.Item {
	return avrcp.Item{Kind: avrcp.ItemFolder, UID: uid, Name: name, Browsable: true}
}

func playerItem(id int, name string, browsable bool) avrcp.Item {
	return avrcp.Item{Kind: avrcp.ItemPlayer, PlayerID: id, Name: name, Browsable: browsable}
}

func TestConnectIsIdempotent(t *testing.T) {
	st := NewState(testDevice)
	vol := &fakeVolume{max: 15}

	out := Transition(st, vol, Connect{})
	require.NoError(t, out.Err)
	assert.Equal(t, []Effect{CallConnect{}, NotifyConnected{}}, out.Effects)
	assert.Equal(t, Connected, st.Conn)
	assert.Equal(t, Idle, st.Sub)
	assert.True(t, st.Features.Has(FeatureRemoteControl, FeatureBrowsing))

	tree := st.Tree
	require.NotNil(t, tree)

	out = Transition(st, vol, Connect{})
	assert.NoError(t, out.Err)
	assert.Empty(t, out.Effects)
	assert.Same(t, tree, st.Tree)
}

func TestInboundConnectionDoesNotCallStack(t *testing.T) {
	st := NewState(testDevice)

	out := Transition(st, &fakeVolume{}, StackEvent{Event: avrcp.ConnectionStateChanged{RemoteControlUp: true}})
	require.NoError(t, out.Err)
	assert.Equal(t, []Effect{NotifyConnected{}}, out.Effects)
	assert.Equal(t, Connected, st.Conn)
	assert.True(t, st.Features.Has(FeatureRemoteControl))
	assert.False(t, st.Features.Has(FeatureBrowsing))
}

func TestRequestsRejectedWhileDisconnected(t *testing.T) {
	st := NewState(testDevice)

	for _, msg := range []Message{
		RequestFolder{NodeID: browsetree.RootID},
		PlayItem{NodeID: "x"},
		PassThrough{Key: avrcp.KeyPlay},
	} {
		out := Transition(st, &fakeVolume{}, msg)
		assert.ErrorIs(t, out.Err, errorkinds.ErrNotConnected, MessageName(msg))
		assert.Empty(t, out.Effects)
	}

	// stale stack events are dropped silently
	out := Transition(st, &fakeVolume{}, StackEvent{Event: avrcp.TrackChanged{}})
	assert.NoError(t, out.Err)
	assert.Empty(t, out.Effects)
	assert.Equal(t, Disconnected, st.Conn)
}

func TestPlayerListIsPagedUntilEmpty(t *testing.T) {
	h := newHarness(t)

	out := h.send(RequestFolder{NodeID: browsetree.RootID})
	require.NoError(t, out.Err)
	assert.Equal(t, FetchingFolder, h.st.Sub)
	assert.Equal(t, CallGetPlayerList{Start: 0, End: 20}, single[CallGetPlayerList](t, out))
	assert.True(t, h.st.TimerArmed(TimerFetch))

	out = h.event(avrcp.PlayerListReceived{Players: []avrcp.Item{playerItem(1, "Music", true)}})
	assert.Equal(t, CallGetPlayerList{Start: 1, End: 21}, single[CallGetPlayerList](t, out))
	assert.Len(t, effectsOf[NotifyNodeChanged](out), 1)

	out = h.event(avrcp.PlayerListReceived{})
	assert.Empty(t, effectsOf[CallGetPlayerList](out))
	assert.Equal(t, FetchFinished{Target: browsetree.RootID, Reason: FetchCompleted}, single[FetchFinished](t, out))
	assert.Equal(t, Idle, h.st.Sub)
	assert.False(t, h.st.TimerArmed(TimerFetch))

	root := h.st.Tree.Root()
	assert.True(t, root.Cached())
	require.Equal(t, 1, root.ChildCount())
	assert.True(t, root.Children()[0].IsPlayer())
}

func TestFolderFetchStopsAtExpectedCount(t *testing.T) {
	h := newHarness(t)
	player := h.browse()
	music := player.Children()[0]

	out := h.send(RequestFolder{NodeID: music.ID()})
	assert.Equal(t, CallChangeFolderPath{Direction: avrcp.DirectionDown, UID: 10}, single[CallChangeFolderPath](t, out))

	out = h.event(avrcp.FolderPathChanged{ItemCount: 25})
	assert.Equal(t, CallGetFolderList{Start: 0, End: 20}, single[CallGetFolderList](t, out))

	out = h.event(avrcp.FolderItemsReceived{Items: mediaItems(0, 20), UIDCounter: 7})
	assert.Equal(t, CallGetFolderList{Start: 20, End: 25}, single[CallGetFolderList](t, out))
	assert.Len(t, effectsOf[ArmTimer](out), 1)

	out = h.event(avrcp.FolderItemsReceived{Items: mediaItems(20, 25), UIDCounter: 7})
	assert.Empty(t, effectsOf[CallGetFolderList](out))
	assert.Equal(t, FetchCompleted, single[FetchFinished](t, out).Reason)

	assert.True(t, music.Cached())
	assert.Equal(t, 25, music.ChildCount())
	assert.Equal(t, Idle, h.st.Sub)
	assert.False(t, h.st.TimerArmed(TimerFetch))

	// a late empty page is not applied to anything
	out = h.event(avrcp.FolderItemsReceived{})
	assert.Empty(t, out.Effects)
}

func TestCachedFolderIsPublishedWithoutFetching(t *testing.T) {
	h := newHarness(t)
	player := h.browse()

	out := h.send(RequestFolder{NodeID: player.ID()})
	require.NoError(t, out.Err)
	assert.Equal(t, Idle, h.st.Sub)
	require.Len(t, out.Effects, 1)

	changed := single[NotifyNodeChanged](t, out)
	assert.Equal(t, player.ID(), changed.Node.ID)
	assert.Len(t, changed.Node.Children, 2)
}

func TestInvalidFolderRequests(t *testing.T) {
	h := newHarness(t)
	player := h.browse()

	out := h.send(RequestFolder{NodeID: "missing"})
	assert.ErrorIs(t, out.Err, errorkinds.ErrNodeNotFound)
	assert.Empty(t, out.Effects)

	out = h.send(RequestFolder{NodeID: browsetree.NavigateUpID})
	assert.ErrorIs(t, out.Err, errorkinds.ErrNodeNotFound)

	h.send(RequestFolder{NodeID: player.Children()[0].ID()})
	h.event(avrcp.FolderPathChanged{ItemCount: 1})
	h.event(avrcp.FolderItemsReceived{Items: mediaItems(0, 1)})
	require.Equal(t, Idle, h.st.Sub)

	track := player.Children()[0].Children()[0]
	out = h.send(RequestFolder{NodeID: track.ID()})
	assert.ErrorIs(t, out.Err, errorkinds.ErrNodeNotBrowsable)
	assert.Empty(t, out.Effects)
	assert.Equal(t, Idle, h.st.Sub)
}

func TestSameTargetRequestIsIgnored(t *testing.T) {
	h := newHarness(t)
	player := h.browse()
	music := player.Children()[0]

	h.send(RequestFolder{NodeID: music.ID()})

	out := h.send(RequestFolder{NodeID: music.ID()})
	assert.NoError(t, out.Err)
	assert.Empty(t, out.Effects)
	assert.Zero(t, h.st.Deferred())
	assert.False(t, h.st.AbortRequested())
}

func TestNowPlayingRequestIsDeferredWithoutAbort(t *testing.T) {
	h := newHarness(t)
	player := h.browse()
	music := player.Children()[0]

	h.send(RequestFolder{NodeID: music.ID()})

	out := h.send(RequestFolder{NodeID: browsetree.NowPlayingID})
	assert.NoError(t, out.Err)
	assert.Empty(t, out.Effects)
	assert.Equal(t, 1, h.st.Deferred())
	assert.False(t, h.st.AbortRequested())

	_, ok := h.st.NextDeferred()
	require.False(t, ok, "deferred messages wait for Idle")

	h.event(avrcp.FolderPathChanged{ItemCount: 3})
	out = h.event(avrcp.FolderItemsReceived{Items: mediaItems(0, 3)})
	assert.Equal(t, FetchCompleted, single[FetchFinished](t, out).Reason)
	assert.True(t, music.Cached())

	outs := h.resume()
	require.Len(t, outs, 1)
	assert.Equal(t, CallGetNowPlayingList{Start: 0, End: 20}, single[CallGetNowPlayingList](t, outs[0]))
	assert.Equal(t, h.st.Tree.NowPlaying(), h.st.FetchTarget())
}

func TestPlayerListRequestAbortsFileSystemFetch(t *testing.T) {
	h := newHarness(t)
	player := h.browse()
	music := player.Children()[0]

	h.send(RequestFolder{NodeID: music.ID()})

	out := h.send(RequestFolder{NodeID: browsetree.RootID})
	assert.Empty(t, out.Effects)
	assert.True(t, h.st.AbortRequested())

	// the chain halts at its next acknowledgement
	out = h.event(avrcp.FolderPathChanged{ItemCount: 40})
	assert.Empty(t, effectsOf[CallGetFolderList](out))
	assert.Equal(t, FetchAborted, single[FetchFinished](t, out).Reason)
	assert.Equal(t, Idle, h.st.Sub)
	assert.False(t, music.Cached())

	// the root is already cached, so the deferred request only publishes it
	outs := h.resume()
	require.Len(t, outs, 1)
	assert.Equal(t, browsetree.RootID, single[NotifyNodeChanged](t, outs[0]).Node.ID)
	assert.Equal(t, Idle, h.st.Sub)

	// the aborted folder can be requested again
	out = h.send(RequestFolder{NodeID: music.ID()})
	assert.Equal(t, FetchingFolder, h.st.Sub)
	assert.Equal(t, CallGetFolderList{Start: 0, End: 20}, single[CallGetFolderList](t, out))
}

func TestAbortDuringListingKeepsPartialPage(t *testing.T) {
	h := newHarness(t)
	player := h.browse()
	music, podcasts := player.Children()[0], player.Children()[1]

	h.send(RequestFolder{NodeID: music.ID()})
	h.event(avrcp.FolderPathChanged{ItemCount: 60})

	h.send(RequestFolder{NodeID: podcasts.ID()})
	require.True(t, h.st.AbortRequested())

	out := h.event(avrcp.FolderItemsReceived{Items: mediaItems(0, 20)})
	assert.Equal(t, FetchAborted, single[FetchFinished](t, out).Reason)
	assert.Empty(t, effectsOf[CallGetFolderList](out))
	assert.True(t, music.Cached())
	assert.Equal(t, 20, music.ChildCount())

	outs := h.resume()
	require.Len(t, outs, 1)
	assert.Equal(t, CallChangeFolderPath{Direction: avrcp.DirectionUp}, single[CallChangeFolderPath](t, outs[0]))

	out = h.event(avrcp.FolderPathChanged{ItemCount: 2})
	assert.Equal(t, CallChangeFolderPath{Direction: avrcp.DirectionDown, UID: 11}, single[CallChangeFolderPath](t, out))
}

func TestDeferredRequestsKeepTheirOrder(t *testing.T) {
	h := newHarness(t)
	player := h.browse()
	music, podcasts := player.Children()[0], player.Children()[1]

	h.send(RequestFolder{NodeID: music.ID()})
	h.send(RequestFolder{NodeID: browsetree.NowPlayingID})
	h.send(RequestFolder{NodeID: podcasts.ID()})
	require.Equal(t, 2, h.st.Deferred())

	// podcasts shares the scope of music
	out := h.event(avrcp.FolderPathChanged{ItemCount: 5})
	require.Equal(t, FetchAborted, single[FetchFinished](t, out).Reason)

	msg, ok := h.st.NextDeferred()
	require.True(t, ok)
	assert.Equal(t, RequestFolder{NodeID: browsetree.NowPlayingID}, msg)

	h.send(msg)
	h.event(avrcp.FolderItemsReceived{})
	require.Equal(t, Idle, h.st.Sub)

	msg, ok = h.st.NextDeferred()
	require.True(t, ok)
	assert.Equal(t, RequestFolder{NodeID: podcasts.ID()}, msg)
}

func TestFetchTimeout(t *testing.T) {
	h := newHarness(t)
	player := h.browse()
	music := player.Children()[0]

	h.send(RequestFolder{NodeID: music.ID()})
	h.event(avrcp.FolderPathChanged{ItemCount: 25})

	stale := h.st.fetchGen
	h.event(avrcp.FolderItemsReceived{Items: mediaItems(0, 20)})

	out := h.send(TimerExpired{Timer: TimerFetch, Generation: stale})
	assert.Empty(t, out.Effects)
	assert.Equal(t, FetchingFolder, h.st.Sub)

	out = h.send(TimerExpired{Timer: TimerFetch, Generation: h.st.fetchGen})
	assert.Equal(t, FetchFinished{Target: music.ID(), Reason: FetchTimedOut}, single[FetchFinished](t, out))
	assert.Equal(t, Idle, h.st.Sub)
	assert.False(t, h.st.TimerArmed(TimerFetch))
	assert.Nil(t, h.st.FetchTarget())

	assert.Equal(t, 20, music.ChildCount())
	assert.False(t, music.Cached())

	// the late page is dropped
	out = h.event(avrcp.FolderItemsReceived{Items: mediaItems(20, 25)})
	assert.Empty(t, out.Effects)
	assert.Equal(t, 20, music.ChildCount())
}

func TestOutOfRangeCompletesFetch(t *testing.T) {
	h := newHarness(t)
	player := h.browse()
	music := player.Children()[0]

	h.send(RequestFolder{NodeID: music.ID()})
	h.event(avrcp.FolderPathChanged{ItemCount: 4})

	out := h.event(avrcp.FolderItemsReceived{Status: avrcp.StatusOutOfRange})
	assert.NoError(t, out.Err)
	assert.Equal(t, FetchCompleted, single[FetchFinished](t, out).Reason)
	assert.True(t, music.Cached())
	assert.Zero(t, music.ChildCount())
}

func TestFailedListingAbandonsFetch(t *testing.T) {
	h := newHarness(t)

	h.send(RequestFolder{NodeID: browsetree.NowPlayingID})

	out := h.event(avrcp.FolderItemsReceived{Status: avrcp.StatusFailed})
	assert.Equal(t, FetchAbandoned, single[FetchFinished](t, out).Reason)
	assert.False(t, h.st.Tree.NowPlaying().Cached())
	assert.Equal(t, Idle, h.st.Sub)
}

func TestDisconnectDuringFetch(t *testing.T) {
	h := newHarness(t)
	player := h.browse()

	h.send(RequestFolder{NodeID: player.Children()[0].ID()})
	h.send(RequestFolder{NodeID: browsetree.NowPlayingID})
	h.send(PassThrough{Key: avrcp.KeyFastForward})
	require.Equal(t, 1, h.st.Deferred())

	out := h.send(Disconnect{})
	require.NoError(t, out.Err)
	assert.Equal(t, []Effect{
		CallDisconnect{},
		CancelTimer{Timer: TimerFetch},
		NotifyDisconnected{},
		Stop{},
	}, out.Effects)

	assert.Equal(t, Disconnected, h.st.Conn)
	assert.Nil(t, h.st.Tree)
	assert.Zero(t, h.st.Deferred())
	assert.False(t, h.st.TimerArmed(TimerFetch))
	assert.False(t, h.st.TimerArmed(TimerVolumeEcho))
	assert.Equal(t, avrcp.KeyNone, h.st.HeldKey)

	_, ok := h.st.NextDeferred()
	assert.False(t, ok)
}

func TestRemoveTearsDownWithoutCall(t *testing.T) {
	h := newHarness(t)

	out := h.send(Remove{})
	assert.Equal(t, []Effect{NotifyDisconnected{}, Stop{}}, out.Effects)
	assert.Equal(t, Disconnected, h.st.Conn)

	out = h.send(Remove{})
	assert.Equal(t, []Effect{Stop{}}, out.Effects)
}

func TestChannelsDown(t *testing.T) {
	h := newHarness(t)
	h.browse()

	out := h.event(avrcp.ConnectionStateChanged{RemoteControlUp: true})
	assert.Equal(t, Connected, h.st.Conn)
	assert.False(t, h.st.Features.Has(FeatureBrowsing))
	assert.Equal(t, browsetree.RootID, single[NotifyNodeChanged](t, out).Node.ID)
	assert.Zero(t, h.st.Tree.Root().ChildCount())

	out = h.event(avrcp.ConnectionStateChanged{})
	assert.Empty(t, effectsOf[CallDisconnect](out))
	assert.Len(t, effectsOf[NotifyDisconnected](out), 1)
	assert.Equal(t, Disconnected, h.st.Conn)
}

func TestBrowsedPlayerDepthNavigatesUp(t *testing.T) {
	h := newHarness(t)

	h.send(RequestFolder{NodeID: browsetree.RootID})
	h.event(avrcp.PlayerListReceived{Players: []avrcp.Item{playerItem(4, "Books", true)}})
	h.event(avrcp.PlayerListReceived{})

	player := h.st.Tree.Root().Children()[0]
	out := h.send(RequestFolder{NodeID: player.ID()})
	assert.Equal(t, CallSetBrowsedPlayer{PlayerID: 4}, single[CallSetBrowsedPlayer](t, out))

	out = h.event(avrcp.BrowsedPlayerSet{ItemCount: 9, Depth: 2, UIDCounter: 3})
	assert.Equal(t, CallChangeFolderPath{Direction: avrcp.DirectionUp}, single[CallChangeFolderPath](t, out))

	out = h.event(avrcp.FolderPathChanged{ItemCount: 5})
	assert.Equal(t, CallChangeFolderPath{Direction: avrcp.DirectionUp}, single[CallChangeFolderPath](t, out))

	out = h.event(avrcp.FolderPathChanged{ItemCount: 3})
	assert.Equal(t, CallGetFolderList{Start: 0, End: 3}, single[CallGetFolderList](t, out))
	assert.Equal(t, uint16(3), h.st.UIDCounter)
}

func TestNonBrowsablePlayerIsCachedEmpty(t *testing.T) {
	h := newHarness(t)
	h.browse()

	radio := h.st.Tree.Root().Children()[1]
	out := h.send(RequestFolder{NodeID: radio.ID()})
	require.NoError(t, out.Err)
	assert.Empty(t, effectsOf[CallSetBrowsedPlayer](out))
	assert.Equal(t, FetchCompleted, single[FetchFinished](t, out).Reason)
	assert.True(t, radio.Cached())
	assert.Equal(t, Idle, h.st.Sub)
}

func TestAvailablePlayersChangedAbandonsFetch(t *testing.T) {
	h := newHarness(t)
	player := h.browse()

	h.send(RequestFolder{NodeID: player.Children()[0].ID()})

	out := h.event(avrcp.AvailablePlayersChanged{})
	assert.Equal(t, FetchAbandoned, single[FetchFinished](t, out).Reason)
	assert.Equal(t, browsetree.RootID, single[NotifyNodeChanged](t, out).Node.ID)
	assert.Equal(t, Idle, h.st.Sub)
	assert.False(t, h.st.Tree.Contains(player))
	assert.False(t, h.st.Tree.Root().Cached())
}

func TestNowPlayingInvalidation(t *testing.T) {
	h := newHarness(t)

	h.send(RequestFolder{NodeID: browsetree.NowPlayingID})
	h.event(avrcp.FolderItemsReceived{Items: mediaItems(0, 3)})

	// invalidation waits for the running fetch of the now-playing list
	out := h.event(avrcp.NowPlayingContentChanged{})
	assert.Empty(t, out.Effects)
	assert.Equal(t, 1, h.st.Deferred())

	h.event(avrcp.FolderItemsReceived{})
	nowPlaying := h.st.Tree.NowPlaying()
	require.True(t, nowPlaying.Cached())
	require.Equal(t, 3, nowPlaying.ChildCount())

	outs := h.resume()
	require.Len(t, outs, 1)
	assert.Equal(t, browsetree.NowPlayingID, single[NotifyNodeChanged](t, outs[0]).Node.ID)
	assert.False(t, nowPlaying.Cached())
	assert.Zero(t, nowPlaying.ChildCount())

	out = h.event(avrcp.AddressedPlayerChanged{PlayerID: 3})
	assert.Equal(t, 3, h.st.AddressedPlayerID)
	assert.Len(t, effectsOf[NotifyNodeChanged](out), 1)
}

func TestPlayItem(t *testing.T) {
	h := newHarness(t)
	player := h.browse()
	music := player.Children()[0]

	h.send(RequestFolder{NodeID: music.ID()})
	h.event(avrcp.FolderPathChanged{ItemCount: 2})
	h.event(avrcp.FolderItemsReceived{Items: mediaItems(0, 2), UIDCounter: 7})

	track := music.Children()[1]
	out := h.send(PlayItem{NodeID: track.ID()})
	require.NoError(t, out.Err)
	assert.Equal(t, []Effect{CallPlayItem{Scope: avrcp.ScopeFileSystem, UID: 1001, UIDCounter: 7}}, out.Effects)

	out = h.send(PlayItem{NodeID: music.ID()})
	assert.ErrorIs(t, out.Err, errorkinds.ErrNodeNotPlayable)
	assert.Empty(t, out.Effects)

	out = h.send(PlayItem{NodeID: ""})
	assert.ErrorIs(t, out.Err, errorkinds.ErrNodeNotFound)
	assert.Empty(t, out.Effects)

	out = h.send(PlayItem{NodeID: browsetree.NowPlayingID})
	assert.ErrorIs(t, out.Err, errorkinds.ErrNodeNotFound)
}

func TestSetAddressedPlayer(t *testing.T) {
	h := newHarness(t)
	player := h.browse()

	out := h.send(SetAddressedPlayer{NodeID: player.ID()})
	require.NoError(t, out.Err)
	assert.Equal(t, []Effect{CallSetAddressedPlayer{PlayerID: 1}}, out.Effects)

	out = h.send(SetAddressedPlayer{NodeID: player.Children()[0].ID()})
	assert.ErrorIs(t, out.Err, errorkinds.ErrNodeNotPlayer)
	assert.Empty(t, out.Effects)
}

func TestPlaybackNotifications(t *testing.T) {
	h := newHarness(t)
	track := avrcp.Track{Title: "Song", Artist: "Artist", Duration: 180000}

	out := h.event(avrcp.TrackChanged{Track: track})
	assert.Equal(t, []Effect{NotifyTrack{Track: track}}, out.Effects)
	assert.Equal(t, track, h.st.CurrentTrack)

	out = h.event(avrcp.PlayStatusChanged{Status: avrcp.StatusPlaying})
	assert.Equal(t, NotifyPlayback{Status: avrcp.StatusPlaying}, single[NotifyPlayback](t, out))

	out = h.event(avrcp.PlayPositionChanged{SongLengthMs: 180000, PositionMs: 1500})
	assert.Equal(t, NotifyPlayback{
		Status:       avrcp.StatusPlaying,
		PositionMs:   1500,
		SongLengthMs: 180000,
	}, single[NotifyPlayback](t, out))

	info := h.st.Info()
	assert.Equal(t, avrcp.StatusPlaying, info.Status)
	assert.Equal(t, uint32(1500), info.PositionMs)
	assert.Equal(t, "Song", info.Track.Title)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 68, percentage(&fakeVolume{index: 8, max: 15}))
	assert.Equal(t, 127, percentage(&fakeVolume{index: 15, max: 15}))
	assert.Equal(t, 0, percentage(&fakeVolume{index: 0, max: 15}))
	assert.Equal(t, 0, percentage(&fakeVolume{index: 3, max: 0}))
}

func TestSetAbsoluteVolume(t *testing.T) {
	h := newHarness(t)
	h.vol.index = 3

	out := h.event(avrcp.SetAbsoluteVolume{Volume: 64, Label: 4})
	require.NoError(t, out.Err)
	assert.Equal(t, SetLocalVolume{Index: 8}, single[SetLocalVolume](t, out))
	assert.Equal(t, CallAbsoluteVolumeResponse{Volume: 64, Label: 4}, single[CallAbsoluteVolumeResponse](t, out))
	assert.Equal(t, 1, h.st.VolumeChangedNotificationsToIgnore)
	assert.True(t, h.st.TimerArmed(TimerVolumeEcho))

	// the echo of the local change is suppressed
	h.vol.index = 8
	out = h.send(LocalVolumeChanged{})
	assert.Equal(t, []Effect{CancelTimer{Timer: TimerVolumeEcho}}, out.Effects)
	assert.Zero(t, h.st.VolumeChangedNotificationsToIgnore)
	assert.False(t, h.st.TimerArmed(TimerVolumeEcho))
}

func TestSetAbsoluteVolumeClamps(t *testing.T) {
	h := newHarness(t)

	out := h.event(avrcp.SetAbsoluteVolume{Volume: 200, Label: 1})
	assert.Equal(t, SetLocalVolume{Index: 15}, single[SetLocalVolume](t, out))
	assert.Equal(t, 127, single[CallAbsoluteVolumeResponse](t, out).Volume)
}

// A command that maps to the current local index produces no local change,
// so no echo is expected and nothing is counted for suppression.
func TestSetAbsoluteVolumeUnchangedIndex(t *testing.T) {
	h := newHarness(t)

	out := h.event(avrcp.SetAbsoluteVolume{Volume: 68, Label: 2})
	assert.Equal(t, []Effect{CallAbsoluteVolumeResponse{Volume: 68, Label: 2}}, out.Effects)
	assert.Zero(t, h.st.VolumeChangedNotificationsToIgnore)
}

// A device that is not streaming never changes the local volume, so its
// commands are answered without arming the echo counter.
func TestSetAbsoluteVolumeFromInactiveDevice(t *testing.T) {
	h := newHarness(t)
	h.vol.active = false

	out := h.event(avrcp.SetAbsoluteVolume{Volume: 20, Label: 9})
	assert.Equal(t, []Effect{CallAbsoluteVolumeResponse{Volume: 20, Label: 9}}, out.Effects)
	assert.Zero(t, h.st.VolumeChangedNotificationsToIgnore)
	assert.False(t, h.st.TimerArmed(TimerVolumeEcho))
}

func TestVolumeEchoTimeout(t *testing.T) {
	h := newHarness(t)
	h.vol.index = 0

	h.event(avrcp.SetAbsoluteVolume{Volume: 127, Label: 1})
	h.event(avrcp.SetAbsoluteVolume{Volume: 64, Label: 2})
	require.Equal(t, 2, h.st.VolumeChangedNotificationsToIgnore)

	stale := h.st.volumeGen - 1
	h.send(TimerExpired{Timer: TimerVolumeEcho, Generation: stale})
	assert.Equal(t, 2, h.st.VolumeChangedNotificationsToIgnore)

	h.send(TimerExpired{Timer: TimerVolumeEcho, Generation: h.st.volumeGen})
	assert.Zero(t, h.st.VolumeChangedNotificationsToIgnore)
	assert.False(t, h.st.TimerArmed(TimerVolumeEcho))
}

func TestVolumeNotification(t *testing.T) {
	h := newHarness(t)

	// local changes without a registration are ignored
	out := h.send(LocalVolumeChanged{})
	assert.Empty(t, out.Effects)

	assert.Equal(t, avrcp.LabelUndefined, h.st.NotificationLabel)

	out = h.event(avrcp.RegisterAbsoluteVolume{Label: 5})
	assert.Equal(t, []Effect{CallVolumeNotification{
		Kind:   avrcp.NotificationInterim,
		Volume: 68,
		Label:  5,
	}}, out.Effects)
	assert.True(t, h.st.AbsVolNotificationPending)

	h.vol.index = 10
	out = h.send(LocalVolumeChanged{})
	assert.Equal(t, []Effect{CallVolumeNotification{
		Kind:   avrcp.NotificationChanged,
		Volume: 85,
		Label:  5,
	}}, out.Effects)
	assert.False(t, h.st.AbsVolNotificationPending)
	assert.Equal(t, avrcp.LabelUndefined, h.st.NotificationLabel)
	assert.Equal(t, 85, h.st.PreviousPercentageVolume)

	h.vol.index = 12
	out = h.send(LocalVolumeChanged{})
	assert.Empty(t, out.Effects)

	// an unchanged percentage does not complete a new registration
	h.vol.index = 10
	h.event(avrcp.RegisterAbsoluteVolume{Label: 6})
	out = h.send(LocalVolumeChanged{})
	assert.Empty(t, out.Effects)
	assert.True(t, h.st.AbsVolNotificationPending)
}

func TestVolumeHandledWhileFetching(t *testing.T) {
	h := newHarness(t)
	h.send(RequestFolder{NodeID: browsetree.RootID})
	require.Equal(t, FetchingFolder, h.st.Sub)

	out := h.event(avrcp.RegisterAbsoluteVolume{Label: 1})
	assert.Len(t, effectsOf[CallVolumeNotification](out), 1)
	assert.Zero(t, h.st.Deferred())
	assert.Equal(t, FetchingFolder, h.st.Sub)
}

func TestPassThrough(t *testing.T) {
	h := newHarness(t)

	out := h.send(PassThrough{Key: avrcp.KeyPlay})
	assert.Equal(t, []Effect{
		CallPassThrough{Key: avrcp.KeyPlay, State: avrcp.KeyPressed},
		CallPassThrough{Key: avrcp.KeyPlay, State: avrcp.KeyReleased},
	}, out.Effects)
	assert.Equal(t, avrcp.KeyNone, h.st.HeldKey)

	out = h.send(PassThrough{Key: avrcp.KeyFastForward})
	assert.Equal(t, []Effect{
		CallPassThrough{Key: avrcp.KeyFastForward, State: avrcp.KeyPressed},
	}, out.Effects)
	assert.Equal(t, avrcp.KeyFastForward, h.st.HeldKey)

	// the held key is released when it is sent again
	out = h.send(PassThrough{Key: avrcp.KeyFastForward})
	assert.Equal(t, []Effect{
		CallPassThrough{Key: avrcp.KeyFastForward, State: avrcp.KeyReleased},
	}, out.Effects)
	assert.Equal(t, avrcp.KeyNone, h.st.HeldKey)

	h.send(PassThrough{Key: avrcp.KeyFastForward})
	require.Equal(t, avrcp.KeyFastForward, h.st.HeldKey)

	out = h.send(PassThrough{Key: avrcp.KeyPause})
	assert.Equal(t, []Effect{
		CallPassThrough{Key: avrcp.KeyFastForward, State: avrcp.KeyReleased},
		CallPassThrough{Key: avrcp.KeyPause, State: avrcp.KeyPressed},
		CallPassThrough{Key: avrcp.KeyPause, State: avrcp.KeyReleased},
	}, out.Effects)
	assert.Equal(t, avrcp.KeyNone, h.st.HeldKey)
}

func TestReleaseHeldKey(t *testing.T) {
	h := newHarness(t)

	out := h.send(ReleaseHeldKey{})
	assert.Empty(t, out.Effects)

	h.send(PassThrough{Key: avrcp.KeyRewind})
	out = h.send(ReleaseHeldKey{})
	assert.Equal(t, []Effect{
		CallPassThrough{Key: avrcp.KeyRewind, State: avrcp.KeyReleased},
	}, out.Effects)
	assert.Equal(t, avrcp.KeyNone, h.st.HeldKey)
}

func TestInvalidPassThroughKey(t *testing.T) {
	h := newHarness(t)
	h.send(PassThrough{Key: avrcp.KeyRewind})

	out := h.send(PassThrough{Key: avrcp.KeyCode(0x7f)})
	assert.ErrorIs(t, out.Err, errorkinds.ErrInvalidKey)
	assert.Empty(t, out.Effects)
	assert.Equal(t, avrcp.KeyRewind, h.st.HeldKey)
}

func TestShouldAbort(t *testing.T) {
	tests := []struct {
		current, requested avrcp.Scope
		abort              bool
	}{
		{avrcp.ScopeFileSystem, avrcp.ScopeFileSystem, true},
		{avrcp.ScopePlayerList, avrcp.ScopePlayerList, true},
		{avrcp.ScopeNowPlaying, avrcp.ScopeNowPlaying, true},
		{avrcp.ScopeFileSystem, avrcp.ScopePlayerList, true},
		{avrcp.ScopeFileSystem, avrcp.ScopeNowPlaying, false},
		{avrcp.ScopePlayerList, avrcp.ScopeFileSystem, false},
		{avrcp.ScopeNowPlaying, avrcp.ScopePlayerList, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.abort, shouldAbort(tt.current, tt.requested), "%s -> %s", tt.current, tt.requested)
	}
}
