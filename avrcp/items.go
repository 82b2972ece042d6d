package avrcp

// PlayStatus indicates the playback status of the addressed player.
type PlayStatus string

// The different playback statuses.
const (
	StatusStopped     PlayStatus = "stopped"
	StatusPlaying     PlayStatus = "playing"
	StatusPaused      PlayStatus = "paused"
	StatusForwardSeek PlayStatus = "forward-seek"
	StatusReverseSeek PlayStatus = "reverse-seek"
	StatusError       PlayStatus = "error"
)

// Track describes the metadata of a media element.
type Track struct {
	// Title holds the title name of the track.
	Title string `json:"title,omitempty" codec:"Title,omitempty"`

	// Artist holds the artist name of the track.
	Artist string `json:"artist,omitempty" codec:"Artist,omitempty"`

	// Album holds the album name of the track.
	Album string `json:"album,omitempty" codec:"Album,omitempty"`

	// Genre holds the genre of the track.
	Genre string `json:"genre,omitempty" codec:"Genre,omitempty"`

	// TrackNumber holds the playlist position of the track.
	TrackNumber uint32 `json:"track_number,omitempty" codec:"TrackNumber,omitempty"`

	// TotalTracks holds the total number of tracks.
	TotalTracks uint32 `json:"total_tracks,omitempty" codec:"NumberOfTracks,omitempty"`

	// Duration holds the duration of the track in milliseconds.
	Duration uint32 `json:"duration,omitempty" codec:"Duration,omitempty"`
}

// ItemKind describes the kind of a listed item.
type ItemKind uint8

// The different item kinds.
const (
	ItemPlayer ItemKind = iota
	ItemFolder
	ItemMedia
)

// String returns the name of the item kind.
func (i ItemKind) String() string {
	switch i {
	case ItemPlayer:
		return "player"

	case ItemFolder:
		return "folder"
	}

	return "media"
}

// Item is a single entry of a listing response.
type Item struct {
	Kind ItemKind

	// UID is the peer assigned item identifier, unique within a scope and uid counter.
	// For players, it is zero and PlayerID is used instead.
	UID uint64

	// PlayerID identifies a player item.
	PlayerID int

	Name string

	// Browsable is set for players that support browsing, and for every folder.
	Browsable bool

	// Playable is set for media elements and folders that can be played as a whole.
	Playable bool

	// Track holds the metadata of a media element.
	Track Track
}
