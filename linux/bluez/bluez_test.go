//go:build linux

package bluez

import (
	"os"
	"testing"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/errorkinds"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/logging"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	devicePath = dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")
	playerPath = devicePath + "/player0"
)

var testDevice = bluetooth.MacAddress{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}

func TestMain(m *testing.M) {
	logging.Discard()

	os.Exit(m.Run())
}

func trackVariant() dbus.Variant {
	return dbus.MakeVariant(map[string]dbus.Variant{
		"Title":       dbus.MakeVariant("Sidebands 03"),
		"Artist":      dbus.MakeVariant("Carrier Wave"),
		"Album":       dbus.MakeVariant("Sidebands"),
		"TrackNumber": dbus.MakeVariant(uint32(3)),
		"Duration":    dbus.MakeVariant(uint32(171000)),
	})
}

func events(list []delivery) []avrcp.Event {
	var evs []avrcp.Event
	for _, d := range list {
		evs = append(evs, d.event)
	}

	return evs
}

func signal(name string, path dbus.ObjectPath, body ...any) *dbus.Signal {
	return &dbus.Signal{Name: name, Path: path, Body: body}
}

// connectedStack returns a stack that knows a connected device with a
// single media player.
func connectedStack(t *testing.T) *Stack {
	t.Helper()

	s := newStack(nil, "hci0")

	added := s.parseSignal(signal(dbusSignalInterfacesAddedIface, "/", devicePath,
		map[string]map[string]dbus.Variant{
			bluezDeviceIface: {
				"Address": dbus.MakeVariant("AA:BB:CC:DD:EE:FF"),
				"Name":    dbus.MakeVariant("Speaker"),
			},
			bluezMediaControlIface: {
				"Connected": dbus.MakeVariant(true),
			},
		},
	))
	require.Len(t, added, 1)
	assert.Equal(t, testDevice, added[0].device)
	assert.Equal(t, avrcp.ConnectionStateChanged{RemoteControlUp: true, BrowsingUp: true}, added[0].event)

	player := s.parseSignal(signal(dbusSignalInterfacesAddedIface, "/", playerPath,
		map[string]map[string]dbus.Variant{
			bluezMediaPlayerIface: {
				"Name":      dbus.MakeVariant("Music"),
				"Status":    dbus.MakeVariant("paused"),
				"Browsable": dbus.MakeVariant(true),
				"Track":     trackVariant(),
			},
		},
	))

	require.Equal(t, []avrcp.Event{
		avrcp.AvailablePlayersChanged{},
		avrcp.TrackChanged{Track: avrcp.Track{
			Title:       "Sidebands 03",
			Artist:      "Carrier Wave",
			Album:       "Sidebands",
			TrackNumber: 3,
			TotalTracks: 3,
			Duration:    171000,
		}},
		avrcp.PlayStatusChanged{Status: avrcp.StatusPaused},
	}, events(player))

	changed := s.parseSignal(signal(dbusSignalPropertyChangedIface, devicePath,
		bluezMediaControlIface,
		map[string]dbus.Variant{"Player": dbus.MakeVariant(playerPath)},
		[]string{},
	))
	require.Empty(t, changed)

	return s
}

func TestDevices(t *testing.T) {
	s := connectedStack(t)

	assert.Equal(t, []bluetooth.MacAddress{testDevice}, s.Devices())

	other := s.parseSignal(signal(dbusSignalInterfacesAddedIface, "/", "/org/bluez/hci1/dev_11_22_33_44_55_66",
		map[string]map[string]dbus.Variant{
			bluezDeviceIface:       {"Address": dbus.MakeVariant("11:22:33:44:55:66")},
			bluezMediaControlIface: {"Connected": dbus.MakeVariant(true)},
		},
	))
	assert.Empty(t, other)
	assert.Len(t, s.Devices(), 1)
}

func TestPlayerSignals(t *testing.T) {
	s := connectedStack(t)

	position := s.parseSignal(signal(dbusSignalPropertyChangedIface, playerPath,
		bluezMediaPlayerIface,
		map[string]dbus.Variant{"Position": dbus.MakeVariant(uint32(5000))},
		[]string{},
	))
	assert.Equal(t, []avrcp.Event{
		avrcp.PlayPositionChanged{SongLengthMs: 171000, PositionMs: 5000},
	}, events(position))

	status := s.parseSignal(signal(dbusSignalPropertyChangedIface, playerPath,
		bluezMediaPlayerIface,
		map[string]dbus.Variant{"Status": dbus.MakeVariant("forward-seek")},
		[]string{},
	))
	assert.Equal(t, []avrcp.Event{
		avrcp.PlayStatusChanged{Status: avrcp.StatusForwardSeek},
	}, events(status))

	removed := s.parseSignal(signal(dbusSignalInterfacesRemovedIface, "/", playerPath,
		[]string{bluezMediaPlayerIface},
	))
	assert.Equal(t, []avrcp.Event{avrcp.AvailablePlayersChanged{}}, events(removed))

	err := s.SendPassThrough(testDevice, avrcp.KeyPlay, avrcp.KeyPressed)
	assert.ErrorIs(t, err, errorkinds.ErrMediaPlayerNotConnected)
}

func TestTransportVolume(t *testing.T) {
	s := connectedStack(t)

	transport := devicePath + "/sep1/fd0"

	volume := s.parseSignal(signal(dbusSignalPropertyChangedIface, transport,
		bluezMediaTransportIface,
		map[string]dbus.Variant{"Volume": dbus.MakeVariant(uint16(64))},
		[]string{},
	))
	assert.Equal(t, []avrcp.Event{avrcp.SetAbsoluteVolume{Volume: 64}}, events(volume))

	// The echo of a locally requested change is dropped.
	s.remotes[devicePath].volume = 90

	echo := s.parseSignal(signal(dbusSignalPropertyChangedIface, transport,
		bluezMediaTransportIface,
		map[string]dbus.Variant{"Volume": dbus.MakeVariant(uint16(90))},
		[]string{},
	))
	assert.Empty(t, echo)
	assert.Equal(t, -1, s.remotes[devicePath].volume)
	assert.Equal(t, transport, s.remotes[devicePath].transport)

	require.NoError(t, s.SendVolumeNotification(testDevice, avrcp.NotificationInterim, 50, 1))
}

func TestDeviceRemoved(t *testing.T) {
	s := connectedStack(t)

	removed := s.parseSignal(signal(dbusSignalInterfacesRemovedIface, "/", devicePath,
		[]string{bluezDeviceIface, bluezMediaControlIface},
	))
	assert.Equal(t, []avrcp.Event{avrcp.ConnectionStateChanged{}}, events(removed))
	assert.Empty(t, s.Devices())

	assert.ErrorIs(t, s.Connect(testDevice), errorkinds.ErrDeviceNotFound)
}

func TestUnsupportedCalls(t *testing.T) {
	s := connectedStack(t)

	assert.ErrorIs(t, s.SetAddressedPlayer(testDevice, 1), errorkinds.ErrNotSupported)
	assert.ErrorIs(t, s.PlayItem(testDevice, avrcp.ScopeFileSystem, 42, 0), errorkinds.ErrItemNotFound)
	assert.ErrorIs(t, s.SetBrowsedPlayer(testDevice, 7), errorkinds.ErrItemNotFound)
	assert.ErrorIs(t, s.GetFolderList(testDevice, 0, avrcp.PageSize), errorkinds.ErrMediaPlayerNotConnected)
	assert.NoError(t, s.SendAbsoluteVolumeResponse(testDevice, 100, 2))
}

func TestListingItems(t *testing.T) {
	listing := map[dbus.ObjectPath]map[string]dbus.Variant{
		playerPath + "/Filesystem/item12": {
			"Type":     dbus.MakeVariant("audio"),
			"Playable": dbus.MakeVariant(true),
			"Player":   dbus.MakeVariant(playerPath),
			"Metadata": trackVariant(),
		},
		playerPath + "/Filesystem/item3": {
			"Name":     dbus.MakeVariant("Albums"),
			"Type":     dbus.MakeVariant("folder"),
			"Playable": dbus.MakeVariant(false),
		},
		playerPath + "/Filesystem/other": {},
	}

	items, paths, err := listingItems(listing)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, avrcp.Item{Kind: avrcp.ItemFolder, UID: 3, Name: "Albums", Browsable: true}, items[0])

	assert.Equal(t, avrcp.ItemMedia, items[1].Kind)
	assert.Equal(t, uint64(12), items[1].UID)
	assert.Equal(t, "Sidebands 03", items[1].Name)
	assert.True(t, items[1].Playable)
	assert.Equal(t, uint32(171000), items[1].Track.Duration)

	assert.Equal(t, playerPath+"/Filesystem/item12", paths[12])
}

func TestPathHelpers(t *testing.T) {
	index, ok := objectIndex(playerPath, "player")
	assert.True(t, ok)
	assert.Equal(t, uint64(0), index)

	_, ok = objectIndex(devicePath, "player")
	assert.False(t, ok)

	assert.Equal(t, 0, folderDepth("/Filesystem"))
	assert.Equal(t, 2, folderDepth("/Filesystem/Music/Rock"))
	assert.Equal(t, 0, folderDepth(""))

	assert.Equal(t, devicePath, parentPath(playerPath))
}
