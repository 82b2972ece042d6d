package audio

import (
	"sync"

	"github.com/darkhz/avrctl/api/bluetooth"
)

// Memory is an in-memory mixer.
type Memory struct {
	index, max int
	active     map[bluetooth.MacAddress]struct{}
	closed     bool

	updates chan struct{}
	mu      sync.RWMutex
}

// NewMemory returns an in-memory mixer with the provided number of volume
// steps, set to half volume.
func NewMemory(steps int) *Memory {
	steps = max(steps, 1)

	return &Memory{
		index:   steps / 2,
		max:     steps,
		active:  make(map[bluetooth.MacAddress]struct{}),
		updates: make(chan struct{}, 64),
	}
}

// Volume returns the current volume index and the maximum index.
func (m *Memory) Volume() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.index, m.max
}

// SetVolume sets the volume index, clamped to the available steps.
// A change is reported on the updates channel.
func (m *Memory) SetVolume(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	index = min(max(index, 0), m.max)
	if index == m.index || m.closed {
		return nil
	}

	m.index = index
	notify(m.updates)

	return nil
}

// Step changes the volume by delta steps.
func (m *Memory) Step(delta int) error {
	index, _ := m.Volume()

	return m.SetVolume(index + delta)
}

// SetActive marks a device as streaming or not.
func (m *Memory) SetActive(device bluetooth.MacAddress, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if active {
		m.active[device] = struct{}{}
	} else {
		delete(m.active, device)
	}
}

// IsActive reports whether the device is streaming.
func (m *Memory) IsActive(device bluetooth.MacAddress) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.active[device]

	return ok
}

// Updates returns the volume change channel.
func (m *Memory) Updates() <-chan struct{} {
	return m.updates
}

// Close closes the updates channel.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.updates)
	}

	return nil
}
