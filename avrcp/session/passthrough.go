package session

import (
	"github.com/darkhz/avrctl/api/errorkinds"
	"github.com/darkhz/avrctl/avrcp"
)

// passThrough sends a key. Holdable keys stay pressed until they are sent
// again, until any other key is sent, or until the held key is released explicitly.
func (st *State) passThrough(key avrcp.KeyCode, out *Outcome) {
	if !key.Valid() {
		out.reject(errorkinds.ErrInvalidKey)

		return
	}

	// Sending the held key again releases it.
	if held := st.HeldKey; held != avrcp.KeyNone {
		st.releaseHeldKey(out)
		if held == key {
			return
		}
	}

	if key.Holdable() {
		out.emit(CallPassThrough{Key: key, State: avrcp.KeyPressed})
		st.HeldKey = key

		return
	}

	out.emit(
		CallPassThrough{Key: key, State: avrcp.KeyPressed},
		CallPassThrough{Key: key, State: avrcp.KeyReleased},
	)
}

func (st *State) releaseHeldKey(out *Outcome) {
	if st.HeldKey == avrcp.KeyNone {
		return
	}

	out.emit(CallPassThrough{Key: st.HeldKey, State: avrcp.KeyReleased})
	st.HeldKey = avrcp.KeyNone
}
