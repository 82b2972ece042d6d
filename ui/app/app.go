package app

import (
	"context"
	"time"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"

	"github.com/darkhz/avrctl/ui/app/views"
	"github.com/darkhz/avrctl/ui/config"
)

// Application holds an application with its views.
type Application struct {
	view *views.Views
}

// NewApplication returns a new application.
func NewApplication() *Application {
	return &Application{
		view: views.NewViews(),
	}
}

// Start starts the application, and blocks until it is closed by the
// user or ctx is cancelled.
func (a *Application) Start(ctx context.Context, backend views.Backend, cfg *config.Config) error {
	binder := &appBinder{
		backend:     backend,
		draws:       make(chan struct{}, 1),
		Application: tview.NewApplication(),
	}

	appview, err := a.view.Initialize(binder, cfg)
	if err != nil {
		return err
	}
	defer a.view.Release()

	binder.SetInputCapture(appview.InputCapture)
	binder.SetMouseCapture(appview.MouseFunc)
	binder.SetBeforeDrawFunc(appview.BeforeDrawFunc)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go binder.monitorQueuedDraws(ctx)
	go func() {
		<-ctx.Done()
		binder.Stop()
	}()

	return binder.SetRoot(appview.Layout, true).SetFocus(appview.InitialFocus).EnableMouse(true).Run()
}

// appBinder holds the session backend and the application.
type appBinder struct {
	backend       views.Backend
	draws         chan struct{}
	shouldSuspend bool

	*tview.Application
}

// Backend returns the session backend.
func (a *appBinder) Backend() views.Backend {
	return a.backend
}

// InstantDraw instantly draws to the screen.
func (a *appBinder) InstantDraw(drawFunc func()) {
	a.QueueUpdateDraw(drawFunc)
}

// QueueDraw only queues the drawing.
func (a *appBinder) QueueDraw(drawFunc func()) {
	a.QueueUpdate(drawFunc)

	select {
	case a.draws <- struct{}{}:
	default:
	}
}

// Refresh refreshes the screen.
func (a *appBinder) Refresh() {
	a.Draw()
}

// GetFocused gets the currently focused primitive.
func (a *appBinder) GetFocused() tview.Primitive {
	return a.GetFocus()
}

// FocusPrimitive sets the focus on the provided primitive.
func (a *appBinder) FocusPrimitive(primitive tview.Primitive) {
	a.SetFocus(primitive)
}

// StartSuspend starts the application's suspend.
// [appBinder.Suspend] is called within the application's drawing handler
// once this function is called.
func (a *appBinder) StartSuspend() {
	a.shouldSuspend = true
}

// Suspend suspends the application.
func (a *appBinder) Suspend(t tcell.Screen) {
	if !a.shouldSuspend {
		return
	}

	a.shouldSuspend = false

	suspendApp(t)
}

// Close stops the application.
func (a *appBinder) Close() {
	a.Stop()
}

// monitorQueuedDraws monitors for any queued primitive draws and refreshes the screen.
func (a *appBinder) monitorQueuedDraws(ctx context.Context) {
	t := time.NewTicker(1 * time.Second)
	defer t.Stop()

	var queued bool

	for {
		select {
		case <-ctx.Done():
			return

		case <-t.C:
			if queued {
				go a.Refresh()
				queued = false
				t.Reset(1 * time.Second)
			}

		case <-a.draws:
			queued = true
			t.Reset(50 * time.Millisecond)
		}
	}
}
