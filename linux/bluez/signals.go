//go:build linux

package bluez

import (
	"strings"

	"github.com/darkhz/avrctl/avrcp"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// parseSignal converts a Bluez signal into the events of the device it belongs to.
//
//gocyclo:ignore
func (s *Stack) parseSignal(signal *dbus.Signal) []delivery {
	switch signal.Name {
	case dbusSignalPropertyChangedIface:
		if len(signal.Body) < 2 {
			return nil
		}

		iface, ok := signal.Body[0].(string)
		if !ok {
			return nil
		}

		properties, ok := signal.Body[1].(map[string]dbus.Variant)
		if !ok {
			return nil
		}

		return s.propertiesChanged(signal.Path, iface, properties)

	case dbusSignalInterfacesAddedIface:
		if len(signal.Body) < 2 {
			return nil
		}

		path, ok := signal.Body[0].(dbus.ObjectPath)
		if !ok {
			return nil
		}

		interfaces, ok := signal.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return nil
		}

		return s.interfacesAdded(path, interfaces)

	case dbusSignalInterfacesRemovedIface:
		if len(signal.Body) < 2 {
			return nil
		}

		path, ok := signal.Body[0].(dbus.ObjectPath)
		if !ok {
			return nil
		}

		interfaces, ok := signal.Body[1].([]string)
		if !ok {
			return nil
		}

		return s.interfacesRemoved(path, interfaces)
	}

	return nil
}

// owns reports whether an object belongs to the selected adapter.
func (s *Stack) owns(path dbus.ObjectPath) bool {
	if s.adapter == "" {
		return strings.HasPrefix(string(path), "/org/bluez/")
	}

	return strings.HasPrefix(string(path), "/org/bluez/"+s.adapter+"/")
}

// remoteOf returns the device that an object belongs to, which is the
// closest ancestor of the object that is a device object.
func (s *Stack) remoteOf(path dbus.ObjectPath) (*remote, bool) {
	for p := path; p != "/" && p != "."; p = parentPath(p) {
		if r, ok := s.remotes[p]; ok {
			return r, true
		}
	}

	return nil, false
}

func (s *Stack) propertiesChanged(path dbus.ObjectPath, iface string, properties map[string]dbus.Variant) []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.remoteOf(path)
	if !ok {
		return nil
	}

	var events []avrcp.Event

	switch iface {
	case bluezMediaControlIface:
		if p, ok := properties["Player"].Value().(dbus.ObjectPath); ok {
			r.player = p
		}

		if connected, ok := properties["Connected"].Value().(bool); ok && connected != r.connected {
			r.connected = connected
			if !connected {
				r.browsed, r.folders = "", nil
				clear(r.items)
			}

			events = append(events, avrcp.ConnectionStateChanged{
				RemoteControlUp: connected,
				BrowsingUp:      connected,
			})
		}

	case bluezMediaPlayerIface:
		events = s.playerChanged(r, properties)

	case bluezMediaTransportIface:
		if path != r.transport {
			r.transport = path
		}

		volume, ok := properties["Volume"].Value().(uint16)
		if !ok {
			break
		}

		// A change that was requested locally is not a command from the device.
		if int(volume) == r.volume {
			r.volume = -1

			break
		}

		events = append(events, avrcp.SetAbsoluteVolume{Volume: int(volume)})
	}

	return deliveries(r, events)
}

// playerChanged converts changed media player properties. The caller must hold the lock.
func (s *Stack) playerChanged(r *remote, properties map[string]dbus.Variant) []avrcp.Event {
	props, err := parsePlayer(properties)
	if err != nil {
		s.logger.Warn("media player properties cannot be parsed",
			zap.String("device", r.address.String()),
			zap.Error(err),
		)

		return nil
	}

	var events []avrcp.Event

	if props.HasTrack {
		r.songLength = props.Track.Duration
		events = append(events, avrcp.TrackChanged{Track: props.Track})
	}

	if props.Status != "" {
		events = append(events, avrcp.PlayStatusChanged{Status: avrcp.PlayStatus(props.Status)})
	}

	if _, ok := properties["Position"]; ok {
		events = append(events, avrcp.PlayPositionChanged{
			SongLengthMs: r.songLength,
			PositionMs:   props.Position,
		})
	}

	return events
}

// interfacesAdded records new device and media objects.
func (s *Stack) interfacesAdded(path dbus.ObjectPath, interfaces map[string]map[string]dbus.Variant) []delivery {
	if !s.owns(path) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if values, ok := interfaces[bluezDeviceIface]; ok {
		var props deviceProperties
		if err := decodeVariantMap(values, &props); err != nil || props.Address.IsNil() {
			s.logger.Warn("device properties cannot be parsed",
				zap.String("path", string(path)),
				zap.Error(err),
			)

			return nil
		}

		if _, ok := s.remotes[path]; !ok {
			s.remotes[path] = newRemote(props.Address, path)
			s.paths.Store(props.Address, path)
		}
	}

	r, ok := s.remoteOf(path)
	if !ok {
		return nil
	}

	var events []avrcp.Event

	if values, ok := interfaces[bluezMediaControlIface]; ok {
		events = append(events, s.controlAdded(r, values)...)
	}

	if values, ok := interfaces[bluezMediaPlayerIface]; ok && parentPath(path) == r.path {
		if id, ok := objectIndex(path, "player"); ok {
			r.players[int(id)+1] = path
			events = append(events, avrcp.AvailablePlayersChanged{})
			events = append(events, s.playerChanged(r, values)...)
		}
	}

	if _, ok := interfaces[bluezMediaTransportIface]; ok {
		r.transport = path
	}

	return deliveries(r, events)
}

// controlAdded records the media control state of a device. The caller must hold the lock.
func (s *Stack) controlAdded(r *remote, values map[string]dbus.Variant) []avrcp.Event {
	if p, ok := values["Player"].Value().(dbus.ObjectPath); ok {
		r.player = p
	}

	connected, _ := values["Connected"].Value().(bool)
	if connected == r.connected {
		return nil
	}

	r.connected = connected

	return []avrcp.Event{avrcp.ConnectionStateChanged{
		RemoteControlUp: connected,
		BrowsingUp:      connected,
	}}
}

// interfacesRemoved forgets removed device and media objects.
func (s *Stack) interfacesRemoved(path dbus.ObjectPath, interfaces []string) []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.remoteOf(path)
	if !ok {
		return nil
	}

	var events []avrcp.Event

	for _, iface := range interfaces {
		switch iface {
		case bluezDeviceIface:
			if path != r.path {
				continue
			}

			delete(s.remotes, path)
			s.paths.Delete(r.address)

			if r.connected {
				r.connected = false
				events = append(events, avrcp.ConnectionStateChanged{})
			}

		case bluezMediaControlIface:
			if r.connected {
				r.connected = false
				events = append(events, avrcp.ConnectionStateChanged{})
			}

		case bluezMediaPlayerIface:
			for id, player := range r.players {
				if player == path {
					delete(r.players, id)
					events = append(events, avrcp.AvailablePlayersChanged{})
				}
			}

			if r.browsed == path {
				r.browsed, r.folders = "", nil
				clear(r.items)
			}

			if r.player == path {
				r.player = ""
			}

		case bluezMediaTransportIface:
			if r.transport == path {
				r.transport = ""
			}
		}
	}

	return deliveries(r, events)
}

func deliveries(r *remote, events []avrcp.Event) []delivery {
	if len(events) == 0 {
		return nil
	}

	list := make([]delivery, 0, len(events))
	for _, event := range events {
		list = append(list, delivery{r.address, event})
	}

	return list
}
