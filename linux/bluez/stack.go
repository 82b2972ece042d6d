//go:build linux

// Package bluez implements the AVRCP controller stack over the Bluez DBus API.
package bluez

import (
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/errorkinds"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/logging"
	"github.com/godbus/dbus/v5"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// remote holds the known Bluez objects of a remote device.
type remote struct {
	address bluetooth.MacAddress
	path    dbus.ObjectPath

	connected bool
	player    dbus.ObjectPath
	players   map[int]dbus.ObjectPath

	browsed dbus.ObjectPath
	folders []dbus.ObjectPath
	items   map[uint64]dbus.ObjectPath

	transport  dbus.ObjectPath
	songLength uint32
	volume     int
}

func newRemote(address bluetooth.MacAddress, path dbus.ObjectPath) *remote {
	return &remote{
		address: address,
		path:    path,
		players: make(map[int]dbus.ObjectPath),
		items:   make(map[uint64]dbus.ObjectPath),
		volume:  -1,
	}
}

type delivery struct {
	device bluetooth.MacAddress
	event  avrcp.Event
}

// job is a queued DBus call, which returns the events to deliver for device.
type job struct {
	device bluetooth.MacAddress
	op     string
	run    func() ([]avrcp.Event, error)
}

// Stack is an AVRCP controller stack backed by the Bluez daemon.
// Calls are validated synchronously and then performed in order by a
// background worker, their results arriving as events through Listen.
type Stack struct {
	systemBus *dbus.Conn
	adapter   string

	remotes map[dbus.ObjectPath]*remote
	paths   *xsync.MapOf[bluetooth.MacAddress, dbus.ObjectPath]

	jobs   chan job
	events chan delivery
	closed chan struct{}

	logger *zap.Logger
	mu     sync.Mutex
	once   sync.Once
}

// New connects to the system bus, and loads the devices of the provided
// adapter (for example "hci0"). An empty adapter name selects every adapter.
func New(adapter string) (*Stack, error) {
	systemBus, err := dbus.SystemBus()
	if err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "start-systembus"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot initialize system DBus"),
		)
	}

	s := newStack(systemBus, adapter)
	if err := s.refresh(); err != nil {
		systemBus.Close()

		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "refresh-objects"),
			ftag.With(ftag.Internal),
			fmsg.With("Error while loading Bluez objects"),
		)
	}

	return s, nil
}

func newStack(systemBus *dbus.Conn, adapter string) *Stack {
	return &Stack{
		systemBus: systemBus,
		adapter:   adapter,
		remotes:   make(map[dbus.ObjectPath]*remote),
		paths:     xsync.NewMapOf[bluetooth.MacAddress, dbus.ObjectPath](),
		jobs:      make(chan job, 256),
		events:    make(chan delivery, 256),
		closed:    make(chan struct{}),
		logger:    logging.L().Named("bluez"),
	}
}

// Close closes the connection to the system bus.
func (s *Stack) Close() error {
	s.once.Do(func() { close(s.closed) })

	if err := s.systemBus.Close(); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "stop-systembus"),
			ftag.With(ftag.Internal),
			fmsg.With("Error while closing system bus"),
		)
	}

	return nil
}

// Devices returns the addresses of every known device.
func (s *Stack) Devices() []bluetooth.MacAddress {
	var devices []bluetooth.MacAddress

	s.paths.Range(func(address bluetooth.MacAddress, _ dbus.ObjectPath) bool {
		devices = append(devices, address)

		return true
	})

	slices.SortFunc(devices, func(a, b bluetooth.MacAddress) int {
		return slices.Compare(a[:], b[:])
	})

	return devices
}

// Listen watches the Bluez signals and performs the queued calls, delivering
// every resulting event to the sink until ctx is cancelled.
func (s *Stack) Listen(ctx context.Context, sink avrcp.EventSink) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.watch(ctx)
	})

	g.Go(func() error {
		s.work(ctx)

		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil

			case d := <-s.events:
				sink.HandleStackEvent(d.device, d.event)
			}
		}
	})

	return g.Wait()
}

// watch converts Bluez signals into events.
func (s *Stack) watch(ctx context.Context) error {
	if err := s.systemBus.BusObject().Call(dbusSignalAddMatchIface, 0, signalMatch).Err; err != nil {
		return fault.Wrap(err,
			fctx.With(ctx, "error_at", "watch-addmatch"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot watch Bluez signals"),
		)
	}

	ch := make(chan *dbus.Signal, 16)
	s.systemBus.Signal(ch)

	defer func() {
		s.systemBus.RemoveSignal(ch)
		s.systemBus.BusObject().Call(dbusSignalRemoveMatchIface, 0, signalMatch)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case signal, ok := <-ch:
			if !ok {
				return nil
			}

			for _, d := range s.parseSignal(signal) {
				s.deliver(ctx, d)
			}
		}
	}
}

// work performs the queued calls in order.
func (s *Stack) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case j := <-s.jobs:
			events, err := j.run()
			if err != nil {
				s.logger.Warn("bluez call failed",
					zap.String("device", j.device.String()),
					zap.String("call", j.op),
					zap.Error(err),
				)
			}

			for _, event := range events {
				s.deliver(ctx, delivery{j.device, event})
			}
		}
	}
}

func (s *Stack) deliver(ctx context.Context, d delivery) {
	select {
	case s.events <- d:
	case <-ctx.Done():
	}
}

// enqueue queues a call for the worker.
func (s *Stack) enqueue(device bluetooth.MacAddress, op string, run func() ([]avrcp.Event, error)) error {
	select {
	case s.jobs <- job{device: device, op: op, run: run}:
		return nil

	case <-s.closed:
		return wrapError(errorkinds.ErrMethodCanceled, device, op, "Bluez stack is closed")
	}
}

// remote returns the objects of a device. The caller must hold the lock.
func (s *Stack) remote(device bluetooth.MacAddress, op string) (*remote, error) {
	path, ok := s.paths.Load(device)
	if !ok {
		return nil, fault.Wrap(errorkinds.ErrDeviceNotFound,
			fctx.With(context.Background(), "error_at", op, "address", device.String()),
			ftag.With(ftag.NotFound),
			fmsg.With("Device does not exist"),
		)
	}

	r, ok := s.remotes[path]
	if !ok {
		return nil, fault.Wrap(errorkinds.ErrDeviceNotFound,
			fctx.With(context.Background(), "error_at", op, "address", device.String()),
			ftag.With(ftag.NotFound),
			fmsg.With("Device does not exist"),
		)
	}

	return r, nil
}

// connectedRemote returns the objects of a device with a connected media player.
func (s *Stack) connectedRemote(device bluetooth.MacAddress, op string) (*remote, error) {
	r, err := s.remote(device, op)
	if err != nil {
		return nil, err
	}

	if !r.connected || r.player == "" {
		return nil, wrapError(errorkinds.ErrMediaPlayerNotConnected, device, op, "Player is not connected")
	}

	return r, nil
}

// Connect connects the remote control profile of the device.
func (s *Stack) Connect(device bluetooth.MacAddress) error {
	return s.profileCall(device, "ConnectProfile", "device-connect-profile")
}

// Disconnect disconnects the remote control profile of the device.
func (s *Stack) Disconnect(device bluetooth.MacAddress) error {
	return s.profileCall(device, "DisconnectProfile", "device-disconnect-profile")
}

func (s *Stack) profileCall(device bluetooth.MacAddress, method, op string) error {
	s.mu.Lock()
	r, err := s.remote(device, op)
	s.mu.Unlock()

	if err != nil {
		return err
	}

	return s.enqueue(device, op, func() ([]avrcp.Event, error) {
		err := s.systemBus.Object(bluezBusName, r.path).
			Call(bluezDeviceIface+"."+method, 0, avrcp.RemoteControlTargetUUID.String()).
			Store()
		if err != nil {
			return nil, wrapError(err, device, op, "Cannot change remote control profile connection")
		}

		return nil, nil
	})
}

// SendPassThrough presses or releases a key. Keys that are not held are
// pressed and released by Bluez with a single call.
func (s *Stack) SendPassThrough(device bluetooth.MacAddress, key avrcp.KeyCode, state avrcp.KeyState) error {
	s.mu.Lock()
	r, err := s.connectedRemote(device, "media-pass-through")
	s.mu.Unlock()

	if err != nil {
		return err
	}

	var (
		method string
		args   []any
	)

	switch {
	case state == avrcp.KeyPressed && key.Holdable():
		method, args = "Hold", []any{byte(key)}

	case state == avrcp.KeyPressed:
		method, args = "Press", []any{byte(key)}

	case key.Holdable():
		method = "Release"

	default:
		return nil
	}

	player := r.player

	return s.enqueue(device, "media-pass-through", func() ([]avrcp.Event, error) {
		if err := s.systemBus.Object(bluezBusName, player).
			Call(bluezMediaPlayerIface+"."+method, 0, args...).
			Store(); err != nil {
			return nil, wrapError(err, device, "media-control-"+strings.ToLower(method),
				"Cannot send pass-through command to device",
			)
		}

		return nil, nil
	})
}

// GetPlayerList lists the media players of the device.
func (s *Stack) GetPlayerList(device bluetooth.MacAddress, start, end int) error {
	s.mu.Lock()
	r, err := s.remote(device, "media-player-list")
	if err != nil {
		s.mu.Unlock()
		return err
	}

	players := maps.Clone(r.players)
	s.mu.Unlock()

	return s.enqueue(device, "media-player-list", func() ([]avrcp.Event, error) {
		ids := slices.Sorted(maps.Keys(players))
		if start < 0 || start >= len(ids) {
			return []avrcp.Event{avrcp.PlayerListReceived{Status: avrcp.StatusOutOfRange}}, nil
		}

		items := make([]avrcp.Item, 0, len(ids))
		for _, id := range ids[start:min(end, len(ids))] {
			values, err := s.properties(players[id], bluezMediaPlayerIface)
			if err != nil {
				return []avrcp.Event{avrcp.PlayerListReceived{Status: avrcp.StatusFailed}},
					wrapError(err, device, "media-player-props", "Cannot get media player properties")
			}

			props, err := parsePlayer(values)
			if err != nil {
				return []avrcp.Event{avrcp.PlayerListReceived{Status: avrcp.StatusFailed}},
					wrapError(err, device, "media-player-props", "Media player properties cannot be parsed")
			}

			items = append(items, avrcp.Item{
				Kind:      avrcp.ItemPlayer,
				PlayerID:  id,
				Name:      props.Name,
				Browsable: props.Browsable,
			})
		}

		return []avrcp.Event{avrcp.PlayerListReceived{Players: items, Status: avrcp.StatusOK}}, nil
	})
}

// GetFolderList lists the current folder of the browsed player.
func (s *Stack) GetFolderList(device bluetooth.MacAddress, start, end int) error {
	s.mu.Lock()
	r, err := s.remote(device, "media-folder-list")
	if err != nil {
		s.mu.Unlock()
		return err
	}

	browsed := r.browsed
	s.mu.Unlock()

	if browsed == "" {
		return wrapError(errorkinds.ErrMediaPlayerNotConnected, device, "media-folder-list", "No player is browsed")
	}

	return s.enqueue(device, "media-folder-list", func() ([]avrcp.Event, error) {
		filter := map[string]any{
			"Start": uint32(max(start, 0)),
			"End":   uint32(max(end-1, start, 0)),
		}

		var listing map[dbus.ObjectPath]map[string]dbus.Variant
		if err := s.systemBus.Object(bluezBusName, browsed).
			Call(bluezMediaFolderIface+".ListItems", 0, filter).
			Store(&listing); err != nil {
			if errorName(err) == bluezErrorInvalidArgument {
				return []avrcp.Event{avrcp.FolderItemsReceived{Status: avrcp.StatusOutOfRange}}, nil
			}

			return []avrcp.Event{avrcp.FolderItemsReceived{Status: avrcp.StatusFailed}},
				wrapError(err, device, "media-folder-list", "Cannot list folder items")
		}

		items, paths, err := listingItems(listing)
		if err != nil {
			return []avrcp.Event{avrcp.FolderItemsReceived{Status: avrcp.StatusFailed}},
				wrapError(err, device, "media-folder-list", "Folder items cannot be parsed")
		}

		s.mu.Lock()
		maps.Copy(r.items, paths)
		s.mu.Unlock()

		return []avrcp.Event{avrcp.FolderItemsReceived{Items: items, Status: avrcp.StatusOK}}, nil
	})
}

// GetNowPlayingList is not supported by Bluez, which only exposes the
// now playing list as a folder of the browsed player. A failed listing
// is reported so that the request does not wait for a response.
func (s *Stack) GetNowPlayingList(device bluetooth.MacAddress, _, _ int) error {
	s.deliverLater(device, avrcp.FolderItemsReceived{Status: avrcp.StatusFailed})

	return wrapError(errorkinds.ErrNotSupported, device, "media-now-playing-list", "Now playing list cannot be fetched")
}

// ChangeFolderPath moves the folder cursor of the browsed player.
func (s *Stack) ChangeFolderPath(device bluetooth.MacAddress, direction avrcp.Direction, uid uint64) error {
	r, browsed, folders, err := s.folderChange(device, direction, uid)
	if err != nil {
		return err
	}

	target := browsed + "/Filesystem"
	if len(folders) > 0 {
		target = folders[len(folders)-1]
	}

	return s.enqueue(device, "media-change-folder", func() ([]avrcp.Event, error) {
		if err := s.systemBus.Object(bluezBusName, browsed).
			Call(bluezMediaFolderIface+".ChangeFolder", 0, target).
			Store(); err != nil {
			return nil, wrapError(err, device, "media-change-folder", "Cannot change folder")
		}

		folder, err := s.folder(browsed)
		if err != nil {
			return nil, wrapError(err, device, "media-folder-props", "Cannot get folder properties")
		}

		s.mu.Lock()
		r.folders = folders
		s.mu.Unlock()

		return []avrcp.Event{avrcp.FolderPathChanged{ItemCount: int(folder.NumberOfItems)}}, nil
	})
}

// folderChange returns the folder path of the browsed player after a change.
func (s *Stack) folderChange(device bluetooth.MacAddress, direction avrcp.Direction, uid uint64) (*remote, dbus.ObjectPath, []dbus.ObjectPath, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.remote(device, "media-change-folder")
	if err != nil {
		return nil, "", nil, err
	}

	if r.browsed == "" {
		return nil, "", nil, wrapError(errorkinds.ErrMediaPlayerNotConnected, device, "media-change-folder", "No player is browsed")
	}

	folders := slices.Clone(r.folders)

	switch direction {
	case avrcp.DirectionUp:
		if len(folders) > 0 {
			folders = folders[:len(folders)-1]
		}

	default:
		path, ok := r.items[uid]
		if !ok {
			return nil, "", nil, wrapError(errorkinds.ErrItemNotFound, device, "media-change-folder", "Folder does not exist")
		}

		folders = append(folders, path)
	}

	return r, r.browsed, folders, nil
}

// SetBrowsedPlayer selects the player whose folders are listed.
func (s *Stack) SetBrowsedPlayer(device bluetooth.MacAddress, playerID int) error {
	s.mu.Lock()
	r, err := s.remote(device, "media-browse-player")
	if err != nil {
		s.mu.Unlock()
		return err
	}

	player, ok := r.players[playerID]
	s.mu.Unlock()

	if !ok {
		return wrapError(errorkinds.ErrItemNotFound, device, "media-browse-player", "Player does not exist")
	}

	return s.enqueue(device, "media-browse-player", func() ([]avrcp.Event, error) {
		folder, err := s.folder(player)
		if err != nil {
			return nil, wrapError(err, device, "media-folder-props", "Cannot get folder properties")
		}

		s.mu.Lock()
		if r.browsed != player {
			r.browsed, r.folders = player, nil
			clear(r.items)
		}
		s.mu.Unlock()

		return []avrcp.Event{avrcp.BrowsedPlayerSet{
			ItemCount: int(folder.NumberOfItems),
			Depth:     folderDepth(folder.Name),
		}}, nil
	})
}

// SetAddressedPlayer is not supported by Bluez, which always addresses the
// player that is reported by the device.
func (s *Stack) SetAddressedPlayer(device bluetooth.MacAddress, _ int) error {
	return wrapError(errorkinds.ErrNotSupported, device, "media-address-player", "Addressed player cannot be set")
}

// PlayItem plays a listed media item.
func (s *Stack) PlayItem(device bluetooth.MacAddress, _ avrcp.Scope, uid uint64, _ uint16) error {
	s.mu.Lock()
	r, err := s.remote(device, "media-item-play")
	if err != nil {
		s.mu.Unlock()
		return err
	}

	item, ok := r.items[uid]
	s.mu.Unlock()

	if !ok {
		return wrapError(errorkinds.ErrItemNotFound, device, "media-item-play", "Media item does not exist")
	}

	return s.enqueue(device, "media-item-play", func() ([]avrcp.Event, error) {
		if err := s.systemBus.Object(bluezBusName, item).
			Call(bluezMediaItemIface+".Play", 0).
			Store(); err != nil {
			return nil, wrapError(err, device, "media-item-play", "Cannot play media item")
		}

		return nil, nil
	})
}

// SendAbsoluteVolumeResponse does nothing, Bluez responds to volume commands
// after it has updated the transport volume.
func (s *Stack) SendAbsoluteVolumeResponse(bluetooth.MacAddress, int, avrcp.Label) error {
	return nil
}

// SendVolumeNotification reports a local volume change to the device, by
// setting the volume of its media transport.
func (s *Stack) SendVolumeNotification(device bluetooth.MacAddress, kind avrcp.NotificationKind, volume int, _ avrcp.Label) error {
	if kind == avrcp.NotificationInterim {
		return nil
	}

	s.mu.Lock()
	r, err := s.remote(device, "media-transport-volume")
	if err != nil {
		s.mu.Unlock()
		return err
	}

	transport := r.transport
	if transport != "" {
		r.volume = volume
	}
	s.mu.Unlock()

	if transport == "" {
		return wrapError(errorkinds.ErrMediaPlayerNotConnected, device, "media-transport-volume", "Media transport does not exist")
	}

	return s.enqueue(device, "media-transport-volume", func() ([]avrcp.Event, error) {
		if err := s.systemBus.Object(bluezBusName, transport).
			Call(dbusSetPropertiesIface, 0, bluezMediaTransportIface, "Volume", dbus.MakeVariant(uint16(volume))).
			Store(); err != nil {
			return nil, wrapError(err, device, "media-transport-volume", "Cannot set transport volume")
		}

		return nil, nil
	})
}

// deliverLater queues an event without a DBus call.
func (s *Stack) deliverLater(device bluetooth.MacAddress, events ...avrcp.Event) {
	s.enqueue(device, "deliver", func() ([]avrcp.Event, error) {
		return events, nil
	})
}

// properties gets every property of an interface of an object.
func (s *Stack) properties(path dbus.ObjectPath, iface string) (map[string]dbus.Variant, error) {
	result := make(map[string]dbus.Variant)

	if err := s.systemBus.Object(bluezBusName, path).
		Call(dbusGetAllPropertiesIface, 0, iface).
		Store(&result); err != nil {
		return nil, err
	}

	return result, nil
}

// folder gets the properties of the current folder of a player.
func (s *Stack) folder(player dbus.ObjectPath) (folderProperties, error) {
	var props folderProperties

	values, err := s.properties(player, bluezMediaFolderIface)
	if err != nil {
		return props, err
	}

	return props, decodeVariantMap(values, &props)
}

// refresh loads every device and media object from the Bluez object manager.
func (s *Stack) refresh() error {
	objects := make(map[dbus.ObjectPath]map[string]map[string]dbus.Variant)
	if err := s.systemBus.Object(bluezBusName, bluezRootPath).
		Call(dbusObjectManagerIface, 0).
		Store(&objects); err != nil {
		return err
	}

	// Devices must be known before their media objects are added.
	// Devices that are already connected are reported once Listen starts.
	paths := slices.Sorted(maps.Keys(objects))
	for _, path := range paths {
		for _, d := range s.interfacesAdded(path, objects[path]) {
			select {
			case s.events <- d:
			default:
			}
		}
	}

	return nil
}

// listingItems converts a ListItems result into listing entries ordered by uid,
// along with the object path of every entry.
func listingItems(listing map[dbus.ObjectPath]map[string]dbus.Variant) ([]avrcp.Item, map[uint64]dbus.ObjectPath, error) {
	items := make([]avrcp.Item, 0, len(listing))
	paths := make(map[uint64]dbus.ObjectPath, len(listing))

	for path, values := range listing {
		uid, ok := objectIndex(path, "item")
		if !ok {
			continue
		}

		props, err := parseItem(values)
		if err != nil {
			return nil, nil, err
		}

		items = append(items, props.item(uid))
		paths[uid] = path
	}

	slices.SortFunc(items, func(a, b avrcp.Item) int {
		switch {
		case a.UID < b.UID:
			return -1

		case a.UID > b.UID:
			return 1
		}

		return 0
	})

	return items, paths, nil
}

func wrapError(err error, device bluetooth.MacAddress, op, message string) error {
	return fault.Wrap(err,
		fctx.With(context.Background(),
			"error_at", op,
			"address", device.String(),
		),
		ftag.With(ftag.Internal),
		fmsg.With(message),
	)
}

// errorName returns the DBus error name of err, if any.
func errorName(err error) string {
	var derr dbus.Error
	if errors.As(err, &derr) {
		return derr.Name
	}

	var pderr *dbus.Error
	if errors.As(err, &pderr) {
		return pderr.Name
	}

	return ""
}
