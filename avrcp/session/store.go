package session

import (
	"bytes"
	"slices"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/puzpuzpuz/xsync/v3"
)

// Store holds the last published snapshot of every session, so that
// readers never have to wait on a session actor.
type Store struct {
	sessions *xsync.MapOf[bluetooth.MacAddress, Info]
}

func newStore() *Store {
	return &Store{sessions: xsync.NewMapOf[bluetooth.MacAddress, Info]()}
}

// Info returns the snapshot of the session of a device.
func (s *Store) Info(device bluetooth.MacAddress) (Info, bool) {
	return s.sessions.Load(device)
}

// Sessions returns the snapshots of every session, ordered by address.
func (s *Store) Sessions() []Info {
	sessions := make([]Info, 0, s.sessions.Size())

	s.sessions.Range(func(_ bluetooth.MacAddress, info Info) bool {
		sessions = append(sessions, info)

		return true
	})

	slices.SortFunc(sessions, func(a, b Info) int {
		return bytes.Compare(a.Address[:], b.Address[:])
	})

	return sessions
}

func (s *Store) publish(info Info) {
	s.sessions.Store(info.Address, info)
}

func (s *Store) remove(device bluetooth.MacAddress) {
	s.sessions.Delete(device)
}
