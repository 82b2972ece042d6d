package avrcp

// KeyCode is a pass-through operation identifier.
type KeyCode uint8

// The supported pass-through operations.
const (
	KeyNone        KeyCode = 0x00
	KeyVolumeUp    KeyCode = 0x41
	KeyVolumeDown  KeyCode = 0x42
	KeyMute        KeyCode = 0x43
	KeyPlay        KeyCode = 0x44
	KeyStop        KeyCode = 0x45
	KeyPause       KeyCode = 0x46
	KeyRewind      KeyCode = 0x48
	KeyFastForward KeyCode = 0x49
	KeyForward     KeyCode = 0x4B
	KeyBackward    KeyCode = 0x4C
)

var keyNames = map[KeyCode]string{
	KeyVolumeUp:    "VolumeUp",
	KeyVolumeDown:  "VolumeDown",
	KeyMute:        "Mute",
	KeyPlay:        "Play",
	KeyStop:        "Stop",
	KeyPause:       "Pause",
	KeyRewind:      "Rewind",
	KeyFastForward: "FastForward",
	KeyForward:     "Next",
	KeyBackward:    "Previous",
}

// String returns the name of the key.
func (k KeyCode) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}

	return "None"
}

// Valid reports whether the key is a supported pass-through operation.
func (k KeyCode) Valid() bool {
	_, ok := keyNames[k]

	return ok
}

// Holdable reports whether the key stays pressed until another key is sent.
func (k KeyCode) Holdable() bool {
	return k == KeyFastForward || k == KeyRewind
}

// KeyState is the state of a pass-through key.
type KeyState uint8

// The different key states.
const (
	KeyPressed KeyState = iota
	KeyReleased
)

// String returns the name of the key state.
func (k KeyState) String() string {
	if k == KeyPressed {
		return "pressed"
	}

	return "released"
}
