package audio

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/logging"
	"github.com/mafik/pulseaudio"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Pulse is a mixer backed by the default PulseAudio sink. The volume and
// the streaming devices are cached, and refreshed on every server update,
// so that reads never wait on the server.
type Pulse struct {
	client *pulseaudio.Client
	steps  int

	index  atomic.Int64
	active map[bluetooth.MacAddress]struct{}
	mu     sync.RWMutex

	updates chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPulse connects to the PulseAudio server, and maps its volume to the
// provided number of steps.
func NewPulse(steps int) (*Pulse, error) {
	client, err := pulseaudio.NewClient()
	if err != nil {
		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "pulse-client"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot connect to the PulseAudio server"),
		)
	}

	serverUpdates, err := client.Updates()
	if err != nil {
		client.Close()

		return nil, fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "pulse-updates"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot subscribe to PulseAudio updates"),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pulse{
		client:  client,
		steps:   max(steps, 1),
		active:  make(map[bluetooth.MacAddress]struct{}),
		updates: make(chan struct{}, 64),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	p.refresh()

	go p.watch(ctx, serverUpdates)

	return p, nil
}

func (p *Pulse) watch(ctx context.Context, serverUpdates <-chan struct{}) {
	defer close(p.done)
	defer close(p.updates)

	for {
		select {
		case <-ctx.Done():
			return

		case _, ok := <-serverUpdates:
			if !ok {
				return
			}

			if p.refresh() {
				notify(p.updates)
			}
		}
	}
}

// refresh reloads the cached state, and reports whether the volume has changed.
func (p *Pulse) refresh() bool {
	changed := false

	if volume, err := p.client.Volume(); err != nil {
		logging.L().Warn("cannot read PulseAudio volume", zap.Error(err))
	} else {
		index := int64(math.Round(float64(volume) * float64(p.steps)))
		index = min(max(index, 0), int64(p.steps))

		changed = p.index.Swap(index) != index
	}

	cards, err := p.client.Cards()
	if err != nil {
		logging.L().Warn("cannot list PulseAudio cards", zap.Error(err))

		return changed
	}

	active := make(map[bluetooth.MacAddress]struct{})
	for _, card := range cards {
		addr, ok := card.PropList["device.string"]
		if !ok || !strings.HasPrefix(card.ActiveProfile.Name, "a2dp") {
			continue
		}

		device, err := bluetooth.ParseMAC(addr)
		if err != nil {
			continue
		}

		active[device] = struct{}{}
	}

	p.mu.Lock()
	p.active = active
	p.mu.Unlock()

	return changed
}

// Volume returns the cached volume index and the number of steps.
func (p *Pulse) Volume() (int, int) {
	return int(p.index.Load()), p.steps
}

// SetVolume sets the volume of the default sink.
func (p *Pulse) SetVolume(index int) error {
	index = min(max(index, 0), p.steps)

	if err := p.client.SetVolume(float32(index) / float32(p.steps)); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", "pulse-set-volume"),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot set the PulseAudio volume"),
		)
	}

	return nil
}

// IsActive reports whether the device has a card with an active A2DP profile.
func (p *Pulse) IsActive(device bluetooth.MacAddress) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.active[device]

	return ok
}

// Updates returns the volume change channel.
func (p *Pulse) Updates() <-chan struct{} {
	return p.updates
}

// Close disconnects from the server.
func (p *Pulse) Close() error {
	p.cancel()
	<-p.done

	p.client.Close()

	return nil
}
