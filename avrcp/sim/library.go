package sim

import (
	"fmt"

	"github.com/darkhz/avrctl/avrcp"
)

// Library is the media library of a simulated renderer.
type Library struct {
	Players    []*Player
	NowPlaying []Track
}

// Player is a media player of the renderer.
type Player struct {
	ID        int
	Name      string
	Browsable bool
	Root      *Folder
}

// Folder is a browsable folder of a player.
type Folder struct {
	UID     uint64
	Name    string
	Folders []*Folder
	Tracks  []Track
}

// Track is a playable media item.
type Track struct {
	UID uint64
	avrcp.Track
}

// items returns the listing of the folder, subfolders first.
func (f *Folder) items() []avrcp.Item {
	items := make([]avrcp.Item, 0, len(f.Folders)+len(f.Tracks))

	for _, folder := range f.Folders {
		items = append(items, avrcp.Item{
			Kind:      avrcp.ItemFolder,
			UID:       folder.UID,
			Name:      folder.Name,
			Browsable: true,
		})
	}

	for _, track := range f.Tracks {
		items = append(items, track.item())
	}

	return items
}

func (f *Folder) folder(uid uint64) *Folder {
	for _, folder := range f.Folders {
		if folder.UID == uid {
			return folder
		}
	}

	return nil
}

// find returns the folder holding the track with the provided uid, searching
// every subfolder, and the index of the track within it.
func (f *Folder) find(uid uint64) (*Folder, int) {
	for i, track := range f.Tracks {
		if track.UID == uid {
			return f, i
		}
	}

	for _, folder := range f.Folders {
		if found, index := folder.find(uid); found != nil {
			return found, index
		}
	}

	return nil, -1
}

func (t Track) item() avrcp.Item {
	return avrcp.Item{
		Kind:     avrcp.ItemMedia,
		UID:      t.UID,
		Name:     t.Title,
		Playable: true,
		Track:    t.Track,
	}
}

func (l *Library) player(id int) *Player {
	for _, player := range l.Players {
		if player.ID == id {
			return player
		}
	}

	return nil
}

func (l *Library) playerItems() []avrcp.Item {
	items := make([]avrcp.Item, 0, len(l.Players))

	for _, player := range l.Players {
		items = append(items, avrcp.Item{
			Kind:      avrcp.ItemPlayer,
			PlayerID:  player.ID,
			Name:      player.Name,
			Browsable: player.Browsable,
		})
	}

	return items
}

func tracks(items []Track) []avrcp.Item {
	listing := make([]avrcp.Item, 0, len(items))
	for _, track := range items {
		listing = append(listing, track.item())
	}

	return listing
}

// uidSource hands out item UIDs.
type uidSource uint64

func (u *uidSource) next() uint64 {
	*u++

	return uint64(*u)
}

func (u *uidSource) album(artist, name string, count int) *Folder {
	folder := &Folder{UID: u.next(), Name: name}

	for i := 1; i <= count; i++ {
		folder.Tracks = append(folder.Tracks, Track{
			UID: u.next(),
			Track: avrcp.Track{
				Title:       fmt.Sprintf("%s %02d", name, i),
				Artist:      artist,
				Album:       name,
				TrackNumber: uint32(i),
				TotalTracks: uint32(count),
				Duration:    uint32(150000 + 7000*i),
			},
		})
	}

	return folder
}

// DemoLibrary returns a library with two browsable players and one that
// cannot be browsed. The "Mixes" folder holds enough tracks to need
// several listing pages.
func DemoLibrary() *Library {
	var uids uidSource

	albums := &Folder{UID: uids.next(), Name: "Albums"}
	albums.Folders = []*Folder{
		uids.album("The Resistors", "Ohm Sweet Ohm", 9),
		uids.album("Low Latency", "Buffer Underrun", 12),
		uids.album("Carrier Wave", "Sidebands", 7),
	}

	mixes := uids.album("Various Artists", "Mixes", 45)

	playlists := &Folder{UID: uids.next(), Name: "Playlists"}
	playlists.Folders = []*Folder{mixes, uids.album("Various Artists", "Road Trip", 18)}

	music := &Folder{UID: uids.next(), Name: "Music", Folders: []*Folder{albums, playlists}}

	podcasts := &Folder{UID: uids.next(), Name: "Podcasts"}
	podcasts.Folders = []*Folder{
		uids.album("Packet Radio", "Episodes 2025", 6),
		uids.album("Packet Radio", "Episodes 2026", 4),
	}

	return &Library{
		Players: []*Player{
			{ID: 1, Name: "Music", Browsable: true, Root: music},
			{ID: 2, Name: "Podcasts", Browsable: true, Root: podcasts},
			{ID: 3, Name: "FM Radio"},
		},
		NowPlaying: albums.Folders[0].Tracks,
	}
}
