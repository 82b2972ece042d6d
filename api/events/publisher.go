package events

import (
	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/eventbus"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/avrcp/browsetree"
)

// Publisher publishes session notifications to an event bus.
type Publisher struct {
	bus *eventbus.Bus
}

// NewPublisher returns a publisher for the provided bus.
func NewPublisher(bus *eventbus.Bus) *Publisher {
	return &Publisher{bus: bus}
}

// SessionConnected publishes a connected session.
func (p *Publisher) SessionConnected(device bluetooth.MacAddress) {
	SessionEvents(p.bus).PublishAdded(SessionData{Address: device})
}

// SessionDisconnected publishes a disconnected session.
func (p *Publisher) SessionDisconnected(device bluetooth.MacAddress) {
	SessionEvents(p.bus).PublishRemoved(SessionData{Address: device})
}

// NodeChanged publishes a changed browse tree node.
func (p *Publisher) NodeChanged(device bluetooth.MacAddress, node browsetree.NodeInfo) {
	BrowseEvents(p.bus).PublishUpdated(NodeData{Address: device, Node: node})
}

// PlaybackChanged publishes the play status and position.
func (p *Publisher) PlaybackChanged(device bluetooth.MacAddress, status avrcp.PlayStatus, positionMs, songLengthMs uint32) {
	PlaybackEvents(p.bus).PublishUpdated(PlaybackData{
		Address:      device,
		Status:       status,
		PositionMs:   positionMs,
		SongLengthMs: songLengthMs,
	})
}

// TrackChanged publishes a new track.
func (p *Publisher) TrackChanged(device bluetooth.MacAddress, track avrcp.Track) {
	PlaybackEvents(p.bus).PublishAdded(TrackData{Address: device, Track: track})
}
