//go:build linux

package cmd

import (
	"github.com/darkhz/avrctl/linux/bluez"
	"github.com/darkhz/avrctl/ui/config"
)

// newStack returns the Bluez stack for the configured adapter, or
// the simulated stack if requested.
func newStack(values config.Values) (stackBackend, func() error, error) {
	if values.Simulate {
		return newSimulatedStack(), func() error { return nil }, nil
	}

	stack, err := bluez.New(values.Adapter)
	if err != nil {
		return nil, nil, err
	}

	return stack, stack.Close, nil
}
