// Package audio provides the local output volume and streaming state
// that sessions negotiate absolute volume against.
package audio

import (
	"context"

	"github.com/darkhz/avrctl/api/bluetooth"
)

// Mixer is a local audio output.
type Mixer interface {
	// Volume returns the current volume index and the maximum index.
	Volume() (index, max int)

	// SetVolume sets the volume index.
	SetVolume(index int) error

	// IsActive reports whether the device is the one currently streaming.
	IsActive(device bluetooth.MacAddress) bool

	// Updates returns a channel that receives a value for every volume change.
	Updates() <-chan struct{}

	// Close releases the mixer.
	Close() error
}

// Watch calls fn for every volume change of the mixer, until ctx is
// cancelled or the mixer is closed.
func Watch(ctx context.Context, mixer Mixer, fn func()) error {
	updates := mixer.Updates()

	for {
		select {
		case <-ctx.Done():
			return nil

		case _, ok := <-updates:
			if !ok {
				return nil
			}

			fn()
		}
	}
}

// notify sends a non-blocking update.
func notify(updates chan struct{}) {
	select {
	case updates <- struct{}{}:
	default:
	}
}
