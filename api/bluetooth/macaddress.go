// Package bluetooth holds the device handle used to key every session.
package bluetooth

import (
	"bytes"

	"github.com/darkhz/avrctl/api/errorkinds"
)

// MacAddress represents a Bluetooth address, in the order it is displayed.
type MacAddress [NumAddressBytes]byte

const (
	// MaxAddressStringLength is the length of a Bluetooth address string (with separators).
	MaxAddressStringLength = 17

	// NumAddressBytes is the total number of bytes in a MacAddress byte array.
	NumAddressBytes = 6
)

// ParseMAC parses a Bluetooth address in the 11:22:33:AA:BB:CC format.
// The '_' and '-' separators, as used by BlueZ object paths and PulseAudio
// card names, are accepted as well.
func ParseMAC(s string) (MacAddress, error) {
	var mac MacAddress

	if len(s) != MaxAddressStringLength {
		return mac, errorkinds.ErrInvalidAddress
	}

	for i := range NumAddressBytes {
		pos := i * 3

		if i > 0 {
			switch s[pos-1] {
			case ':', '_', '-':
			default:
				return mac, errorkinds.ErrInvalidAddress
			}
		}

		hi, ok := fromHex(s[pos])
		if !ok {
			return mac, errorkinds.ErrInvalidAddress
		}

		lo, ok := fromHex(s[pos+1])
		if !ok {
			return mac, errorkinds.ErrInvalidAddress
		}

		mac[i] = hi<<4 | lo
	}

	return mac, nil
}

// String returns a human-readable version of this MAC address, such as
// 11:22:33:AA:BB:CC.
func (m MacAddress) String() string {
	return m.format(':')
}

// PathString returns the address in the form used within BlueZ object paths,
// such as 11_22_33_AA_BB_CC.
func (m MacAddress) PathString() string {
	return m.format('_')
}

// IsNil checks if the MacAddress byte array is empty.
func (m MacAddress) IsNil() bool {
	return m == MacAddress{}
}

// MarshalText implements encoding.TextMarshaler.
func (m MacAddress) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// This is mainly used by go-codec to decode address strings within variant maps.
func (m *MacAddress) UnmarshalText(data []byte) error {
	mac, err := ParseMAC(string(data))
	if err != nil {
		return err
	}

	*m = mac

	return nil
}

func (m MacAddress) format(sep byte) string {
	const digits = "0123456789ABCDEF"

	b := bytes.NewBuffer(make([]byte, 0, MaxAddressStringLength))
	for i, c := range m {
		if i > 0 {
			b.WriteByte(sep)
		}

		b.WriteByte(digits[c>>4])
		b.WriteByte(digits[c&0x0f])
	}

	return b.String()
}

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 0xA, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 0xA, true
	}

	return 0, false
}
