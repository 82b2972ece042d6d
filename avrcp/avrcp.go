// Package avrcp holds the protocol vocabulary shared by the controller session,
// the browse tree and every stack implementation.
package avrcp

import "github.com/google/uuid"

// Protocol constants.
const (
	// PageSize is the number of items requested per listing page.
	PageSize = 20

	// AbsoluteVolumeBase is the maximum absolute volume value.
	AbsoluteVolumeBase = 127

	// DefaultFolderSize bounds a listing whose item count is not yet known.
	DefaultFolderSize = 255
)

// Service class identifiers of the remote control profile.
var (
	RemoteControlUUID           = uuid.MustParse("0000110e-0000-1000-8000-00805f9b34fb")
	RemoteControlTargetUUID     = uuid.MustParse("0000110c-0000-1000-8000-00805f9b34fb")
	RemoteControlControllerUUID = uuid.MustParse("0000110f-0000-1000-8000-00805f9b34fb")
)

// Scope is a browsing namespace on the peer.
type Scope uint8

// The different browsing scopes.
const (
	ScopePlayerList Scope = iota
	ScopeFileSystem
	ScopeSearch
	ScopeNowPlaying
)

var scopeNames = map[Scope]string{
	ScopePlayerList: "player-list",
	ScopeFileSystem: "filesystem",
	ScopeSearch:     "search",
	ScopeNowPlaying: "now-playing",
}

// String returns the name of the scope.
func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}

	return "unknown"
}

// Direction is a folder navigation direction.
type Direction uint8

// The different folder navigation directions.
const (
	DirectionUp Direction = iota
	DirectionDown
)

// String returns the name of the direction.
func (d Direction) String() string {
	if d == DirectionUp {
		return "up"
	}

	return "down"
}

// Label is a transaction label, used to correlate a notification
// response with its registration.
type Label uint8

// LabelUndefined marks the absence of a registration. Transaction
// labels are four bits wide, so it never collides with a peer label.
const LabelUndefined Label = 0xff

// NotificationKind describes the type of a notification response.
type NotificationKind uint8

// The different notification response types.
const (
	NotificationInterim NotificationKind = iota
	NotificationChanged
)

// String returns the name of the notification type.
func (n NotificationKind) String() string {
	if n == NotificationInterim {
		return "interim"
	}

	return "changed"
}

// ListingStatus is the status reported with a listing response.
type ListingStatus uint8

// The different listing response statuses.
const (
	StatusOK ListingStatus = iota
	StatusOutOfRange
	StatusFailed
)

// String returns the name of the listing status.
func (l ListingStatus) String() string {
	switch l {
	case StatusOK:
		return "ok"

	case StatusOutOfRange:
		return "out-of-range"
	}

	return "failed"
}
