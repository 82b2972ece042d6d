package avrcp

import "github.com/darkhz/avrctl/api/bluetooth"

// Stack describes the outbound calls the controller issues to the native
// Bluetooth stack. Every call is fire-and-forget: a nil error only means that
// the request was dispatched, and its result arrives later as an inbound [Event].
type Stack interface {
	Connect(device bluetooth.MacAddress) error
	Disconnect(device bluetooth.MacAddress) error

	SendPassThrough(device bluetooth.MacAddress, key KeyCode, state KeyState) error

	GetPlayerList(device bluetooth.MacAddress, start, end int) error
	GetFolderList(device bluetooth.MacAddress, start, end int) error
	GetNowPlayingList(device bluetooth.MacAddress, start, end int) error

	ChangeFolderPath(device bluetooth.MacAddress, direction Direction, uid uint64) error
	SetBrowsedPlayer(device bluetooth.MacAddress, playerID int) error
	SetAddressedPlayer(device bluetooth.MacAddress, playerID int) error
	PlayItem(device bluetooth.MacAddress, scope Scope, uid uint64, uidCounter uint16) error

	SendAbsoluteVolumeResponse(device bluetooth.MacAddress, volume int, label Label) error
	SendVolumeNotification(device bluetooth.MacAddress, kind NotificationKind, volume int, label Label) error
}

// EventSink receives inbound events from a stack implementation.
type EventSink interface {
	HandleStackEvent(device bluetooth.MacAddress, event Event)
}
