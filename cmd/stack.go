package cmd

import (
	"context"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/audio"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/avrcp/sim"
	"github.com/darkhz/avrctl/ui/config"
)

// stackBackend is a Bluetooth stack that can list its devices and
// deliver inbound events.
type stackBackend interface {
	avrcp.Stack

	Devices() []bluetooth.MacAddress
	Listen(ctx context.Context, sink avrcp.EventSink) error
}

// simulatedDevices are the addresses of the devices of the simulated stack.
var simulatedDevices = []bluetooth.MacAddress{
	{0x00, 0x1A, 0x7D, 0xDA, 0x71, 0x13},
	{0x00, 0x1A, 0x7D, 0xDA, 0x71, 0x14},
}

// newSimulatedStack returns a simulated stack with a demo library on every device.
func newSimulatedStack() *sim.Stack {
	stack := sim.New()
	for _, device := range simulatedDevices {
		stack.AddDevice(device, sim.DemoLibrary())
	}

	return stack
}

// newMixer returns the local audio output that sessions negotiate absolute volume against.
// The simulated stack always uses an in-memory mixer, where the first device is streaming.
func newMixer(values config.Values) audio.Mixer {
	if !values.Simulate {
		pulse, err := audio.NewPulse(values.VolumeMax)
		if err == nil {
			return pulse
		}

		if !values.NoWarning {
			printWarn("PulseAudio is not available, using a local volume control instead: " + err.Error())
		}
	}

	mixer := audio.NewMemory(values.VolumeMax)
	if values.Simulate {
		mixer.SetActive(simulatedDevices[0], true)
	}

	return mixer
}
