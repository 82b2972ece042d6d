package session

import (
	"context"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/errorkinds"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/avrcp/browsetree"
	"github.com/darkhz/avrctl/logging"
	"github.com/darkhz/avrctl/metrics"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Mixer is the local audio collaborator of a session.
type Mixer interface {
	VolumeReader

	// SetVolume sets the local output volume index.
	SetVolume(index int) error
}

// Notifier receives host notifications from every session.
type Notifier interface {
	SessionConnected(device bluetooth.MacAddress)
	SessionDisconnected(device bluetooth.MacAddress)
	NodeChanged(device bluetooth.MacAddress, node browsetree.NodeInfo)
	PlaybackChanged(device bluetooth.MacAddress, status avrcp.PlayStatus, positionMs, songLengthMs uint32)
	TrackChanged(device bluetooth.MacAddress, track avrcp.Track)
}

// Config holds the session timeouts.
type Config struct {
	FetchTimeout      time.Duration
	VolumeEchoTimeout time.Duration
	MailboxSize       int
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		FetchTimeout:      10 * time.Second,
		VolumeEchoTimeout: time.Second,
		MailboxSize:       128,
	}
}

// commandKind describes how the coordinator handles a command.
type commandKind uint8

const (
	// commandRoute delivers the envelope to an existing session.
	commandRoute commandKind = iota

	// commandCreate delivers the envelope, creating the session if needed.
	commandCreate

	// commandBroadcast delivers the envelope to every session.
	commandBroadcast
)

type command struct {
	kind   commandKind
	device bluetooth.MacAddress
	env    envelope
}

// Registry coordinates the per-device session actors. It creates a session
// on connect, routes every message to the actor of its device and removes
// sessions that have stopped.
type Registry struct {
	cfg      Config
	stack    avrcp.Stack
	mixer    Mixer
	notifier Notifier
	store    *Store
	logger   *zap.Logger

	commands chan command
	exited   chan *actor
	closed   chan struct{}
	started  atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry returns a new session registry.
func NewRegistry(cfg Config, stack avrcp.Stack, mixer Mixer, notifier Notifier) *Registry {
	defaults := DefaultConfig()
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaults.FetchTimeout
	}
	if cfg.VolumeEchoTimeout <= 0 {
		cfg.VolumeEchoTimeout = defaults.VolumeEchoTimeout
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = defaults.MailboxSize
	}

	return &Registry{
		cfg:      cfg,
		stack:    stack,
		mixer:    mixer,
		notifier: notifier,
		store:    newStore(),
		logger:   logging.L().Named("session"),
		commands: make(chan command),
		exited:   make(chan *actor),
		closed:   make(chan struct{}),
	}
}

// Start starts the coordinator. The registry stops when ctx is cancelled
// or Close is called.
func (r *Registry) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fault.Wrap(errorkinds.ErrRegistryClosed,
			fctx.With(ctx, "error_at", "registry-start"),
			ftag.With(ftag.Internal),
			fmsg.With("Session registry has already been started"),
		)
	}

	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.coordinate(ctx)

	return nil
}

// Close stops every session and waits for the coordinator to exit.
func (r *Registry) Close() {
	if r.cancel == nil {
		return
	}

	r.cancel()
	<-r.closed
}

// Done returns a channel that is closed once the registry has stopped.
func (r *Registry) Done() <-chan struct{} {
	return r.closed
}

func (r *Registry) coordinate(ctx context.Context) {
	actors := make(map[bluetooth.MacAddress]*actor)

	defer func() {
		r.wg.Done()
		r.wg.Wait()
		close(r.closed)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case a := <-r.exited:
			if actors[a.device] == a {
				delete(actors, a.device)
				metrics.SessionClosed()

				r.logger.Debug("session removed", zap.String("device", a.device.String()))
			}

		case cmd := <-r.commands:
			switch cmd.kind {
			case commandBroadcast:
				for _, a := range actors {
					r.forward(ctx, a, cmd.env)
				}

			default:
				a, ok := actors[cmd.device]
				if !ok {
					if cmd.kind != commandCreate {
						cmd.env.respond(errorkinds.ErrSessionNotExist)
						continue
					}

					a = newActor(r, cmd.device)
					actors[cmd.device] = a
					metrics.SessionOpened()

					r.wg.Add(1)
					go func() {
						defer r.wg.Done()
						a.run(ctx)
					}()
				}

				r.forward(ctx, a, cmd.env)
			}
		}
	}
}

// forward delivers an envelope to an actor. An actor that is exiting
// still drains its mailbox until it has been deregistered.
func (r *Registry) forward(ctx context.Context, a *actor, env envelope) {
	select {
	case a.mailbox <- env:
	case <-a.done:
		env.respond(errorkinds.ErrSessionNotExist)
	case <-ctx.Done():
		env.respond(errorkinds.ErrRegistryClosed)
	}
}

// submit hands a command to the coordinator.
func (r *Registry) submit(ctx context.Context, cmd command) error {
	select {
	case r.commands <- cmd:
		return nil

	case <-r.closed:
		return errorkinds.ErrRegistryClosed

	case <-ctx.Done():
		return ctx.Err()
	}
}

// request submits a message for a device and waits for the session to process it.
func (r *Registry) request(ctx context.Context, kind commandKind, device bluetooth.MacAddress, env envelope, errorAt string) error {
	env.reply = make(chan error, 1)

	err := r.submit(ctx, command{kind: kind, device: device, env: env})
	if err == nil {
		select {
		case err = <-env.reply:
		case <-r.closed:
			err = errorkinds.ErrRegistryClosed
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	if err == nil {
		return nil
	}

	return fault.Wrap(err,
		fctx.With(ctx, "error_at", errorAt, "address", device.String()),
		ftag.With(ftag.Internal),
		fmsg.With("Session request failed"),
	)
}

// post submits a message for a device without waiting for it to be processed.
func (r *Registry) post(kind commandKind, device bluetooth.MacAddress, msg Message) error {
	if err := r.submit(context.Background(), command{kind: kind, device: device, env: envelope{msg: msg}}); err != nil {
		return fault.Wrap(err,
			fctx.With(context.Background(), "error_at", MessageName(msg), "address", device.String()),
			ftag.With(ftag.Internal),
			fmsg.With("Cannot deliver message to session"),
		)
	}

	return nil
}

// Connect connects to a device, creating its session.
func (r *Registry) Connect(device bluetooth.MacAddress) error {
	return r.post(commandCreate, device, Connect{})
}

// Disconnect disconnects from a device.
func (r *Registry) Disconnect(device bluetooth.MacAddress) error {
	return r.post(commandRoute, device, Disconnect{})
}

// Remove tears down the session of a device regardless of its state.
func (r *Registry) Remove(device bluetooth.MacAddress) error {
	return r.post(commandRoute, device, Remove{})
}

// HandleStackEvent delivers an inbound stack event to the session of the device.
// A connection event creates the session, any other event for a device
// without a session is dropped.
func (r *Registry) HandleStackEvent(device bluetooth.MacAddress, event avrcp.Event) {
	kind := commandRoute
	if ev, ok := event.(avrcp.ConnectionStateChanged); ok && (ev.RemoteControlUp || ev.BrowsingUp) {
		kind = commandCreate
	}

	if err := r.submit(context.Background(), command{
		kind:   kind,
		device: device,
		env:    envelope{msg: StackEvent{Event: event}},
	}); err != nil {
		r.logger.Debug("stack event dropped",
			zap.String("device", device.String()),
			zap.String("event", avrcp.EventName(event)),
			zap.Error(err),
		)
	}
}

// VolumeChanged notifies every session that the local volume has changed.
func (r *Registry) VolumeChanged() {
	if err := r.submit(context.Background(), command{
		kind: commandBroadcast,
		env:  envelope{msg: LocalVolumeChanged{}},
	}); err != nil {
		r.logger.Debug("volume change dropped", zap.Error(err))
	}
}

// RequestFolder requests the listing of a node.
func (r *Registry) RequestFolder(ctx context.Context, device bluetooth.MacAddress, nodeID string) error {
	return r.request(ctx, commandRoute, device, envelope{msg: RequestFolder{NodeID: nodeID}}, "request-folder")
}

// PlayItem plays a node.
func (r *Registry) PlayItem(ctx context.Context, device bluetooth.MacAddress, nodeID string) error {
	return r.request(ctx, commandRoute, device, envelope{msg: PlayItem{NodeID: nodeID}}, "play-item")
}

// SetAddressedPlayer addresses a player node.
func (r *Registry) SetAddressedPlayer(ctx context.Context, device bluetooth.MacAddress, nodeID string) error {
	return r.request(ctx, commandRoute, device, envelope{msg: SetAddressedPlayer{NodeID: nodeID}}, "set-addressed-player")
}

// PassThrough sends a pass-through key. Fast-forward and rewind are held
// until ReleaseHeldKey or another key is sent.
func (r *Registry) PassThrough(ctx context.Context, device bluetooth.MacAddress, key avrcp.KeyCode) error {
	return r.request(ctx, commandRoute, device, envelope{msg: PassThrough{Key: key}}, "pass-through")
}

// ReleaseHeldKey releases a held pass-through key.
func (r *Registry) ReleaseHeldKey(ctx context.Context, device bluetooth.MacAddress) error {
	return r.request(ctx, commandRoute, device, envelope{msg: ReleaseHeldKey{}}, "release-held-key")
}

// Node returns a snapshot of a node of the browse tree of a device.
func (r *Registry) Node(ctx context.Context, device bluetooth.MacAddress, nodeID string) (browsetree.NodeInfo, error) {
	var (
		info  browsetree.NodeInfo
		found bool
	)

	err := r.request(ctx, commandRoute, device, envelope{
		query: func(st *State) {
			if st.Tree == nil {
				return
			}

			if node, ok := st.Tree.Node(nodeID); ok {
				info, found = st.Tree.Snapshot(node), true
			}
		},
	}, "node")
	if err != nil {
		return info, err
	}

	if !found {
		return info, fault.Wrap(errorkinds.ErrNodeNotFound,
			fctx.With(ctx, "error_at", "node", "address", device.String(), "node", nodeID),
			ftag.With(ftag.NotFound),
			fmsg.With("Node does not exist in the browse tree"),
		)
	}

	return info, nil
}

// Info returns the published snapshot of the session of a device.
func (r *Registry) Info(device bluetooth.MacAddress) (Info, error) {
	info, ok := r.store.Info(device)
	if !ok {
		return Info{}, fault.Wrap(errorkinds.ErrSessionNotExist,
			fctx.With(context.Background(), "error_at", "session-info", "address", device.String()),
			ftag.With(ftag.NotFound),
			fmsg.With("Session does not exist"),
		)
	}

	return info, nil
}

// Sessions returns the published snapshots of every session.
func (r *Registry) Sessions() []Info {
	return r.store.Sessions()
}
