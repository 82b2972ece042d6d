package session

import (
	"context"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/errorkinds"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/metrics"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// envelope is a mailbox entry.
type envelope struct {
	msg   Message
	query func(*State)
	reply chan error
}

func (e envelope) respond(err error) {
	if e.reply == nil {
		return
	}

	select {
	case e.reply <- err:
	default:
	}
}

// actor owns the state of a single device session, and processes its
// mailbox strictly in order.
type actor struct {
	device bluetooth.MacAddress
	state  *State

	r      *Registry
	logger *zap.Logger

	mailbox chan envelope
	done    chan struct{}
	stopped atomic.Bool

	timers       map[TimerKind]*time.Timer
	fetchStarted time.Time
}

func newActor(r *Registry, device bluetooth.MacAddress) *actor {
	return &actor{
		device:  device,
		state:   NewState(device),
		r:       r,
		logger:  r.logger.With(zap.String("device", device.String())),
		mailbox: make(chan envelope, r.cfg.MailboxSize),
		done:    make(chan struct{}),
		timers:  make(map[TimerKind]*time.Timer),
	}
}

// run processes the mailbox until the session stops or ctx is cancelled.
func (a *actor) run(ctx context.Context) {
	defer a.shutdown(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case env := <-a.mailbox:
			a.handle(env)
			if a.stopped.Load() {
				return
			}
		}
	}
}

// post enqueues an envelope, unless the actor has exited.
func (a *actor) post(env envelope) bool {
	select {
	case a.mailbox <- env:
		return true

	case <-a.done:
		env.respond(errorkinds.ErrSessionNotExist)
		return false
	}
}

func (a *actor) handle(env envelope) {
	if env.query != nil {
		env.query(a.state)
		env.respond(nil)

		return
	}

	err := a.step(env.msg)

	for !a.stopped.Load() {
		msg, ok := a.state.NextDeferred()
		if !ok {
			break
		}

		if err := a.step(msg); err != nil {
			a.logger.Debug("deferred message rejected",
				zap.String("msg", MessageName(msg)),
				zap.Error(err),
			)
		}
	}

	if !a.stopped.Load() {
		a.r.store.publish(a.state.Info())
	}

	env.respond(err)
}

// step runs a single transition and performs its effects.
func (a *actor) step(msg Message) error {
	conn, sub, deferred := a.state.Conn, a.state.Sub, a.state.Deferred()

	if ev, ok := msg.(StackEvent); ok {
		switch ev.Event.(type) {
		case avrcp.FolderItemsReceived, avrcp.PlayerListReceived:
			metrics.RecordPage(avrcp.EventName(ev.Event))
		}
	}

	out := Transition(a.state, a.r.mixer, msg)
	if out.Err != nil {
		return fault.Wrap(out.Err,
			fctx.With(context.Background(),
				"error_at", "session-"+MessageName(msg),
				"address", a.device.String(),
			),
			ftag.With(ftag.Internal),
			fmsg.With("Request was rejected"),
		)
	}

	if a.state.Deferred() > deferred {
		metrics.RecordDeferred()
	}

	if sub == Idle && a.state.Sub == FetchingFolder {
		a.fetchStarted = time.Now()
	}

	if conn != a.state.Conn || sub != a.state.Sub {
		a.logger.Debug("session state changed",
			zap.String("msg", MessageName(msg)),
			zap.Stringer("from", conn),
			zap.Stringer("to", a.state.Conn),
			zap.Stringer("sub", a.state.Sub),
		)
	}

	for _, effect := range out.Effects {
		a.apply(effect)
	}

	return nil
}

// apply performs a single effect.
func (a *actor) apply(effect Effect) {
	if call, err := dispatch(a.r.stack, a.device, effect); call {
		metrics.RecordStackCall(EffectName(effect), err == nil)
		if err != nil {
			a.logger.Warn("stack call failed",
				zap.String("call", EffectName(effect)),
				zap.Error(err),
			)
		}

		return
	}

	switch e := effect.(type) {
	case ArmTimer:
		a.arm(e)

	case CancelTimer:
		a.cancel(e.Timer)

	case SetLocalVolume:
		if err := a.r.mixer.SetVolume(e.Index); err != nil {
			a.logger.Warn("cannot set local volume", zap.Int("index", e.Index), zap.Error(err))
		}

	case FetchFinished:
		a.fetchFinished(e)

	case NotifyConnected:
		a.logger.Info("session connected")
		a.r.notifier.SessionConnected(a.device)

	case NotifyDisconnected:
		a.logger.Info("session disconnected")
		a.r.notifier.SessionDisconnected(a.device)

	case NotifyNodeChanged:
		a.r.notifier.NodeChanged(a.device, e.Node)

	case NotifyPlayback:
		a.r.notifier.PlaybackChanged(a.device, e.Status, e.PositionMs, e.SongLengthMs)

	case NotifyTrack:
		a.r.notifier.TrackChanged(a.device, e.Track)

	case Stop:
		a.stopped.Store(true)
	}
}

func (a *actor) fetchFinished(e FetchFinished) {
	metrics.RecordFetch(e.Reason.String(), time.Since(a.fetchStarted))

	switch e.Reason {
	case FetchTimedOut:
		a.logger.Warn("folder fetch timed out", zap.String("node", e.Target))

	default:
		a.logger.Debug("folder fetch finished",
			zap.String("node", e.Target),
			zap.Stringer("reason", e.Reason),
		)
	}
}

func (a *actor) arm(e ArmTimer) {
	a.cancel(e.Timer)

	timeout := a.r.cfg.FetchTimeout
	if e.Timer == TimerVolumeEcho {
		timeout = a.r.cfg.VolumeEchoTimeout
	}

	a.timers[e.Timer] = time.AfterFunc(timeout, func() {
		a.post(envelope{msg: TimerExpired{Timer: e.Timer, Generation: e.Generation}})
	})
}

func (a *actor) cancel(timer TimerKind) {
	if t, ok := a.timers[timer]; ok {
		t.Stop()
		delete(a.timers, timer)
	}
}

// shutdown stops every timer, deregisters the actor and rejects every
// message that is still queued.
func (a *actor) shutdown(ctx context.Context) {
	a.stopped.Store(true)

	for timer := range a.timers {
		a.cancel(timer)
	}

	a.r.store.remove(a.device)

Deregister:
	for {
		select {
		case a.r.exited <- a:
			break Deregister

		case <-ctx.Done():
			break Deregister

		case env := <-a.mailbox:
			env.respond(errorkinds.ErrSessionNotExist)
		}
	}

	close(a.done)

	for {
		select {
		case env := <-a.mailbox:
			env.respond(errorkinds.ErrSessionNotExist)

		default:
			return
		}
	}
}
