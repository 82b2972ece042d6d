package views

import (
	"context"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/eventbus"
	"github.com/darkhz/avrctl/audio"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/avrcp/browsetree"
	"github.com/darkhz/avrctl/avrcp/session"
	"github.com/darkhz/avrctl/ui/config"
	"github.com/darkhz/avrctl/ui/keybindings"
	"github.com/darkhz/avrctl/ui/theme"
)

// Controller is the set of session operations the views invoke.
// It is implemented by [session.Registry].
type Controller interface {
	Connect(device bluetooth.MacAddress) error
	Disconnect(device bluetooth.MacAddress) error
	Remove(device bluetooth.MacAddress) error

	RequestFolder(ctx context.Context, device bluetooth.MacAddress, nodeID string) error
	PlayItem(ctx context.Context, device bluetooth.MacAddress, nodeID string) error
	SetAddressedPlayer(ctx context.Context, device bluetooth.MacAddress, nodeID string) error
	PassThrough(ctx context.Context, device bluetooth.MacAddress, key avrcp.KeyCode) error
	ReleaseHeldKey(ctx context.Context, device bluetooth.MacAddress) error

	Node(ctx context.Context, device bluetooth.MacAddress, nodeID string) (browsetree.NodeInfo, error)
	Info(device bluetooth.MacAddress) (session.Info, error)
	Sessions() []session.Info
}

// Backend holds the collaborators that the views operate on.
type Backend struct {
	Sessions Controller
	Devices  func() []bluetooth.MacAddress
	Mixer    audio.Mixer
	Bus      *eventbus.Bus
}

// AppData holds all the necessary layout and event handling data for the root application to initialize.
// This is passed to the application once all the views are initialized using [Views.Initialize].
type AppData struct {
	Layout         *tview.Flex
	InitialFocus   *tview.Flex
	MouseFunc      func(event *tcell.EventMouse, action tview.MouseAction) (*tcell.EventMouse, tview.MouseAction)
	BeforeDrawFunc func(t tcell.Screen) bool
	InputCapture   func(event *tcell.EventKey) *tcell.EventKey
}

// AppBinder binds all the root application's functions to the views manager ([Views]).
type AppBinder interface {
	Backend() Backend

	QueueDraw(drawFunc func())
	InstantDraw(drawFunc func())
	Refresh()
	FocusPrimitive(primitive tview.Primitive)

	Suspend(t tcell.Screen)
	StartSuspend()
	GetFocused() tview.Primitive
	Close()
}

// viewInitializer represents an initializer for a view.
// All views must implement this interface.
type viewInitializer interface {
	Initialize() error
	SetRootView(v *Views)
}

// Views holds all the views as well as different managers for
// the view layouts, operations and actions.
type Views struct {
	// pages holds and renders the different views, along with
	// any modals that will be added.
	pages  *viewPages
	layout *tview.Flex
	header *tview.TextView

	help    *helpView
	status  *statusBarView
	modals  *modalViews
	device  *deviceView
	browser *browserView
	player  *mediaPlayer

	actions *viewActions
	op      *viewOperation
	kb      *keybindings.Keybindings
	cfg     *config.Config

	app AppBinder
}

// NewViews returns a new Views instance.
func NewViews() *Views {
	return &Views{
		pages:   &viewPages{},
		help:    &helpView{},
		status:  &statusBarView{},
		modals:  &modalViews{},
		device:  &deviceView{},
		browser: &browserView{},
		player:  &mediaPlayer{},
		actions: &viewActions{},
		op:      &viewOperation{},
		kb:      &keybindings.Keybindings{},
	}
}

// Initialize initializes all the views.
func (v *Views) Initialize(binder AppBinder, cfg *config.Config) (*AppData, error) {
	v.app = binder
	v.cfg = cfg
	v.kb = v.cfg.Values.Kb

	v.actions = newViewActions(v)
	v.op = newViewOperation(v)

	v.pages = newViewPages()

	v.header = tview.NewTextView()
	v.header.SetDynamicColors(true)
	v.header.SetTextColor(theme.GetColor(theme.ThemeHeader))
	v.header.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))
	v.layout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.pages, 0, 10, true)

	initializers := []viewInitializer{
		v.status,
		v.help,
		v.modals,
		v.device,
		v.browser,
		v.player,
	}

	for _, i := range initializers {
		i.SetRootView(v)

		if err := i.Initialize(); err != nil {
			return nil, err
		}
	}

	return &AppData{
		Layout:       v.layout,
		InitialFocus: v.arrangeViews(),
		MouseFunc: func(event *tcell.EventMouse, action tview.MouseAction) (*tcell.EventMouse, tview.MouseAction) {
			return v.modals.modalMouseHandler(event, action)
		},
		BeforeDrawFunc: func(t tcell.Screen) bool {
			v.modals.resizeModal()
			v.app.Suspend(t)

			return false
		},
		InputCapture: func(event *tcell.EventKey) *tcell.EventKey {
			if pg, _ := v.status.GetFrontPage(); pg == statusInputPage.String() {
				return event
			}

			operation := v.kb.Key(event)

			if e, ok := v.kb.IsNavigation(operation, event); ok {
				focused := v.app.GetFocused()
				if focused != nil && focused.InputHandler() != nil {
					focused.InputHandler()(e, nil)
					return nil
				}
			}

			switch operation {
			case keybindings.KeySuspend:
				v.app.StartSuspend()

			case keybindings.KeyCancel:
				v.op.cancelOperation(true)

			case keybindings.KeySwitch:
				if len(v.modals.modals) == 0 {
					v.switchPage()
					return nil
				}

			case keybindings.KeyQuit:
				go v.actions.quit()
				return nil
			}

			return tcell.NewEventKey(event.Key(), event.Rune(), event.Modifiers())
		},
	}, nil
}

// Release stops every background routine of the views.
func (v *Views) Release() {
	v.op.cancelOperation(true)
	v.player.close()
	v.status.Release()
}

// arrangeViews arranges all the views and their layouts.
func (v *Views) arrangeViews() *tview.Flex {
	devices := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(v.header, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(v.device.table, 0, 10, true)
	devices.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	v.pages.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))
	v.pages.SetChangedFunc(func() {
		page, _ := v.pages.GetFrontPage()

		contexts := map[string]keybindings.Context{
			devicePage.String():  keybindings.ContextDevice,
			browserPage.String(): keybindings.ContextBrowser,
		}

		switch page {
		case devicePage.String(), browserPage.String():
			v.pages.currentPage(page)
			v.pages.currentContext(contexts[page])

		default:
			v.pages.currentContext(keybindings.ContextApp)
		}

		v.help.showStatusHelp(page)
	})

	v.layout.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	v.pages.AddPage(browserPage.String(), v.browser.layout, true, false)
	v.pages.AddAndSwitchToPage(devicePage.String(), devices, true)
	v.setHeader(v.device.getSelection())
	v.status.InfoMessage("avrctl is ready.", false)

	return devices
}

// switchPage switches between the devices and the browser pages.
func (v *Views) switchPage() {
	switch v.pages.currentPage() {
	case devicePage.String():
		device := v.device.getSelection()
		if device.IsNil() {
			return
		}

		v.browser.show(device)

	default:
		v.pages.SwitchToPage(devicePage.String())
		v.app.FocusPrimitive(v.device.table)
	}
}

// setHeader displays the application name and the session state of the provided device.
func (v *Views) setHeader(device bluetooth.MacAddress) {
	text := theme.ColorWrap(theme.ThemeHeader, "avrctl")
	if device.IsNil() {
		v.header.SetText(text)
		return
	}

	state := session.Disconnected.String()
	if info, err := v.app.Backend().Sessions.Info(device); err == nil {
		state = info.State.String()
		if info.SubState != session.Idle {
			state += " (" + info.SubState.String() + ")"
		}
	}

	v.header.SetText(text + " " + device.String() + " " + theme.Badge(theme.ThemeHeaderState, state))
}

// viewName represents the name of a particular view.
type viewName string

// String returns the string representation of the view's name.
func (v viewName) String() string {
	return string(v)
}

// ignoreDefaultEvent ignores the default keyevents in the provided event.
func ignoreDefaultEvent(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlF, tcell.KeyCtrlB:
		return nil
	}

	switch event.Rune() {
	case 'g', 'G', 'j', 'k', 'h', 'l':
		return nil
	}

	return event
}

// horizontalLine returns a box with a thick horizontal line.
func horizontalLine() *tview.Box {
	return tview.NewBox().
		SetBackgroundColor(tcell.ColorDefault).
		SetDrawFunc(func(
			screen tcell.Screen,
			x, y, width, height int) (int, int, int, int) {
			centerY := y + height/2
			for cx := x; cx < x+width; cx++ {
				screen.SetContent(
					cx,
					centerY,
					tview.BoxDrawingsLightHorizontal,
					nil,
					tcell.StyleDefault.Foreground(tcell.ColorWhite),
				)
			}

			return x + 1,
				centerY + 1,
				width - 2,
				height - (centerY + 1 - y)
		})
}
