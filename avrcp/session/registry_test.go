package session

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/errorkinds"
	"github.com/darkhz/avrctl/audio"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/avrcp/browsetree"
	"github.com/darkhz/avrctl/avrcp/sim"
	"github.com/darkhz/avrctl/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestMain(m *testing.M) {
	logging.Discard()

	os.Exit(m.Run())
}

type notifications struct {
	connected    []bluetooth.MacAddress
	disconnected []bluetooth.MacAddress
	nodes        []browsetree.NodeInfo
	tracks       []avrcp.Track
	statuses     []avrcp.PlayStatus

	mu sync.Mutex
}

func (n *notifications) SessionConnected(device bluetooth.MacAddress) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.connected = append(n.connected, device)
}

func (n *notifications) SessionDisconnected(device bluetooth.MacAddress) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.disconnected = append(n.disconnected, device)
}

func (n *notifications) NodeChanged(_ bluetooth.MacAddress, node browsetree.NodeInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nodes = append(n.nodes, node)
}

func (n *notifications) PlaybackChanged(_ bluetooth.MacAddress, status avrcp.PlayStatus, _, _ uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.statuses = append(n.statuses, status)
}

func (n *notifications) TrackChanged(_ bluetooth.MacAddress, track avrcp.Track) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.tracks = append(n.tracks, track)
}

func (n *notifications) count(list func(*notifications) int) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return list(n)
}

type fixture struct {
	t *testing.T

	reg      *Registry
	stack    *sim.Stack
	library  *sim.Library
	mixer    *audio.Memory
	notifier *notifications
	ctx      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		t:        t,
		stack:    sim.New(),
		library:  sim.DemoLibrary(),
		mixer:    audio.NewMemory(15),
		notifier: &notifications{},
	}

	f.stack.AddDevice(testDevice, f.library)
	f.mixer.SetActive(testDevice, true)

	f.reg = NewRegistry(Config{
		FetchTimeout:      150 * time.Millisecond,
		VolumeEchoTimeout: 500 * time.Millisecond,
	}, f.stack, f.mixer, f.notifier)

	ctx, cancel := context.WithCancel(context.Background())
	f.ctx = ctx

	require.NoError(t, f.reg.Start(ctx))
	go f.stack.Listen(ctx, f.reg)

	t.Cleanup(func() {
		f.reg.Close()
		cancel()
	})

	return f
}

func (f *fixture) connect() {
	f.t.Helper()

	require.NoError(f.t, f.reg.Connect(testDevice))
	f.eventually(func() bool {
		info, err := f.reg.Info(testDevice)

		return err == nil && info.State == Connected && info.Status == avrcp.StatusStopped
	}, "session did not connect")
}

func (f *fixture) eventually(cond func() bool, msg string) {
	f.t.Helper()

	require.Eventually(f.t, cond, waitFor, tick, msg)
}

// listed requests the listing of a node and waits until it is cached.
func (f *fixture) listed(id string) browsetree.NodeInfo {
	f.t.Helper()

	require.NoError(f.t, f.reg.RequestFolder(f.ctx, testDevice, id))

	var node browsetree.NodeInfo
	f.eventually(func() bool {
		info, err := f.reg.Node(f.ctx, testDevice, id)
		if err != nil || !info.Cached {
			return false
		}

		node = info

		return true
	}, "node was not listed")

	return node
}

func child(t *testing.T, node browsetree.NodeInfo, title string) browsetree.NodeInfo {
	t.Helper()

	for _, c := range node.Children {
		if c.Title == title {
			return c
		}
	}

	require.FailNow(t, "child not found", title)

	return browsetree.NodeInfo{}
}

func TestRegistryConnect(t *testing.T) {
	f := newFixture(t)
	f.connect()

	assert.Equal(t, 1, f.stack.Count(testDevice, "connect"))
	assert.Equal(t, 1, f.notifier.count(func(n *notifications) int { return len(n.connected) }))

	sessions := f.reg.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, testDevice, sessions[0].Address)
	assert.True(t, sessions[0].Features.Has(FeatureRemoteControl, FeatureBrowsing))

	require.NoError(t, f.reg.Disconnect(testDevice))
	f.eventually(func() bool {
		return len(f.reg.Sessions()) == 0
	}, "session was not removed")

	_, err := f.reg.Info(testDevice)
	assert.ErrorIs(t, err, errorkinds.ErrSessionNotExist)
	assert.Equal(t, 1, f.stack.Count(testDevice, "disconnect"))
	assert.Equal(t, 1, f.notifier.count(func(n *notifications) int { return len(n.disconnected) }))

	err = f.reg.RequestFolder(f.ctx, testDevice, browsetree.RootID)
	assert.ErrorIs(t, err, errorkinds.ErrSessionNotExist)
}

func TestRegistryBrowse(t *testing.T) {
	f := newFixture(t)
	f.connect()

	root := f.listed(browsetree.RootID)
	require.Len(t, root.Children, 3)
	assert.Equal(t, 2, f.stack.Count(testDevice, "get-player-list"))

	music := f.listed(child(t, root, "Music").ID)
	playlists := f.listed(child(t, music, "Playlists").ID)
	mixes := f.listed(child(t, playlists, "Mixes").ID)

	require.Len(t, mixes.Children, 45)
	assert.Equal(t, 45, mixes.Expected)
	assert.Equal(t, 5, f.stack.Count(testDevice, "get-folder-list"))

	info, err := f.reg.Info(testDevice)
	require.NoError(t, err)
	assert.Equal(t, Idle, info.SubState)

	track := mixes.Children[4]
	require.NoError(t, f.reg.PlayItem(f.ctx, testDevice, track.ID))
	f.eventually(func() bool {
		info, err := f.reg.Info(testDevice)

		return err == nil && info.Track.Title == "Mixes 05" && info.Status == avrcp.StatusPlaying
	}, "item was not played")

	// A folder of another branch is reached by navigating up first.
	albums := f.listed(child(t, music, "Albums").ID)
	assert.Len(t, albums.Children, 3)

	err = f.reg.PlayItem(f.ctx, testDevice, albums.ID)
	assert.ErrorIs(t, err, errorkinds.ErrNodeNotPlayable)
}

func TestRegistryNonBrowsablePlayer(t *testing.T) {
	f := newFixture(t)
	f.connect()

	root := f.listed(browsetree.RootID)
	radio := f.listed(child(t, root, "FM Radio").ID)

	assert.Empty(t, radio.Children)
	assert.Zero(t, f.stack.Count(testDevice, "set-browsed-player"))

	require.NoError(t, f.reg.SetAddressedPlayer(f.ctx, testDevice, radio.ID))
	f.eventually(func() bool {
		info, err := f.reg.Info(testDevice)

		return err == nil && info.AddressedPlayerID == 3
	}, "player was not addressed")
}

func TestRegistryFetchTimeout(t *testing.T) {
	f := newFixture(t)
	f.connect()

	f.stack.SetUnresponsive(testDevice, true)
	require.NoError(t, f.reg.RequestFolder(f.ctx, testDevice, browsetree.RootID))

	info, err := f.reg.Info(testDevice)
	require.NoError(t, err)
	assert.Equal(t, FetchingFolder, info.SubState)
	assert.Equal(t, browsetree.RootID, info.FetchTarget)

	// Requests for the now-playing list wait for the fetch to finish.
	require.NoError(t, f.reg.RequestFolder(f.ctx, testDevice, browsetree.NowPlayingID))

	f.stack.SetUnresponsive(testDevice, false)
	f.eventually(func() bool {
		node, err := f.reg.Node(f.ctx, testDevice, browsetree.NowPlayingID)

		return err == nil && node.Cached
	}, "deferred request was not processed")

	root, err := f.reg.Node(f.ctx, testDevice, browsetree.RootID)
	require.NoError(t, err)
	assert.False(t, root.Cached)
	assert.Equal(t, 1, f.stack.Count(testDevice, "get-player-list"))
}

func TestRegistryPassThrough(t *testing.T) {
	f := newFixture(t)
	f.connect()

	require.NoError(t, f.reg.PassThrough(f.ctx, testDevice, avrcp.KeyFastForward))
	f.eventually(func() bool {
		info, err := f.reg.Info(testDevice)

		return err == nil && info.Status == avrcp.StatusForwardSeek && info.HeldKey == avrcp.KeyFastForward
	}, "key was not held")

	require.NoError(t, f.reg.ReleaseHeldKey(f.ctx, testDevice))
	f.eventually(func() bool {
		info, err := f.reg.Info(testDevice)

		return err == nil && info.Status == avrcp.StatusPlaying && info.HeldKey == avrcp.KeyNone
	}, "key was not released")

	require.NoError(t, f.reg.PassThrough(f.ctx, testDevice, avrcp.KeyRewind))
	f.eventually(func() bool {
		info, err := f.reg.Info(testDevice)

		return err == nil && info.Status == avrcp.StatusReverseSeek && info.HeldKey == avrcp.KeyRewind
	}, "rewind was not held")

	require.NoError(t, f.reg.PassThrough(f.ctx, testDevice, avrcp.KeyRewind))
	f.eventually(func() bool {
		info, err := f.reg.Info(testDevice)

		return err == nil && info.Status == avrcp.StatusPlaying && info.HeldKey == avrcp.KeyNone
	}, "rewind was not toggled off")

	err := f.reg.PassThrough(f.ctx, testDevice, avrcp.KeyNone)
	assert.ErrorIs(t, err, errorkinds.ErrInvalidKey)
}

func TestRegistryAbsoluteVolume(t *testing.T) {
	f := newFixture(t)
	f.connect()

	require.NoError(t, f.stack.RegisterAbsoluteVolume(testDevice, 3))
	f.eventually(func() bool {
		return f.stack.Volume(testDevice) == 59
	}, "interim volume was not sent")

	// A peer change is applied locally, and its echo is not reported back.
	require.NoError(t, f.stack.SetAbsoluteVolume(testDevice, 127, 4))
	f.eventually(func() bool {
		index, _ := f.mixer.Volume()

		return index == 15 && f.stack.Volume(testDevice) == 127
	}, "peer volume was not applied")

	f.reg.VolumeChanged()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.stack.Count(testDevice, "volume-notification"))

	// A local change completes the pending notification.
	require.NoError(t, f.mixer.SetVolume(5))
	f.reg.VolumeChanged()
	f.eventually(func() bool {
		return f.stack.Volume(testDevice) == 42
	}, "changed volume was not sent")

	info, err := f.reg.Info(testDevice)
	require.NoError(t, err)
	assert.False(t, info.AbsVolNotificationPending)
}

func TestRegistryInboundConnection(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.stack.ConnectFromDevice(testDevice))
	f.eventually(func() bool {
		info, err := f.reg.Info(testDevice)

		return err == nil && info.State == Connected
	}, "inbound session was not created")

	assert.Zero(t, f.stack.Count(testDevice, "connect"))

	require.NoError(t, f.stack.DropLink(testDevice))
	f.eventually(func() bool {
		return len(f.reg.Sessions()) == 0
	}, "session was not removed")

	assert.Zero(t, f.stack.Count(testDevice, "disconnect"))
}

func TestRegistryRemove(t *testing.T) {
	f := newFixture(t)
	f.connect()

	f.stack.SetUnresponsive(testDevice, true)
	require.NoError(t, f.reg.RequestFolder(f.ctx, testDevice, browsetree.RootID))
	require.NoError(t, f.reg.Remove(testDevice))

	f.eventually(func() bool {
		return len(f.reg.Sessions()) == 0
	}, "session was not removed")

	assert.Zero(t, f.stack.Count(testDevice, "disconnect"))

	_, err := f.reg.Node(f.ctx, testDevice, browsetree.RootID)
	assert.ErrorIs(t, err, errorkinds.ErrSessionNotExist)
}

func TestRegistryClose(t *testing.T) {
	f := newFixture(t)
	f.connect()

	assert.Error(t, f.reg.Start(f.ctx))

	f.reg.Close()

	select {
	case <-f.reg.Done():
	case <-time.After(waitFor):
		require.FailNow(t, "registry did not stop")
	}

	assert.ErrorIs(t, f.reg.Connect(testDevice), errorkinds.ErrRegistryClosed)
	assert.ErrorIs(t, f.reg.PlayItem(context.Background(), testDevice, "x"), errorkinds.ErrRegistryClosed)
}
