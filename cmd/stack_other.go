//go:build !linux

package cmd

import "github.com/darkhz/avrctl/ui/config"

// newStack returns the simulated stack, which is the only stack
// available on this platform.
func newStack(values config.Values) (stackBackend, func() error, error) {
	if !values.Simulate && !values.NoWarning {
		printWarn("Bluetooth is only supported on Linux, using the simulated stack")
	}

	return newSimulatedStack(), func() error { return nil }, nil
}
