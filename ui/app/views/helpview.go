package views

import (
	"sort"
	"strings"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"

	"github.com/darkhz/avrctl/ui/keybindings"
	"github.com/darkhz/avrctl/ui/theme"
)

// helpView holds the help view.
type helpView struct {
	page string
	area *tview.Flex

	topics map[string][]HelpData

	*Views
}

// Initialize initializes the help view.
func (h *helpView) Initialize() error {
	if !h.cfg.Values.NoHelpDisplay {
		h.area = tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(horizontalLine(), 1, 0, false).
			AddItem(h.status.Help, 1, 0, false)
	}

	h.initHelpData()
	h.statusHelpArea(true)

	return nil
}

// SetRootView sets the root view for the help view.
func (h *helpView) SetRootView(v *Views) {
	h.Views = v
}

// statusHelpArea shows or hides the status help text.
func (h *helpView) statusHelpArea(add bool) {
	if h.cfg.Values.NoHelpDisplay {
		return
	}

	if !add {
		h.layout.RemoveItem(h.area)
		return
	}

	h.layout.AddItem(h.area, 2, 0, false)
}

// swapStatusHelp adds or removes the provided primitive from the layout and displays
// the help text below the statusbar.
func (h *helpView) swapStatusHelp(primitive tview.Primitive, add bool) {
	h.statusHelpArea(false)
	defer h.statusHelpArea(true)

	if add {
		h.layout.AddItem(primitive, 8, 0, false)
	} else {
		h.layout.RemoveItem(primitive)
	}
}

// showStatusHelp shows a condensed help text for the currently focused screen below the statusbar.
func (h *helpView) showStatusHelp(page string) {
	if h.cfg.Values.NoHelpDisplay || h.page == page {
		return
	}

	h.page = page
	pages := map[string]string{
		devicePage.String():  "Device Screen",
		browserPage.String(): "Browser",
	}

	items, ok := h.topics[pages[page]]
	if !ok {
		h.status.Help.Clear()
		return
	}

	var text []string
	for _, item := range items {
		if !item.ShowInStatus {
			continue
		}

		title := theme.ColorWrap(theme.ThemeText, item.Title, "::bu")
		keys := theme.ColorWrap(theme.ThemeText, ": "+h.keyNames(item.Keys))

		text = append(text, title+keys)
	}

	h.status.Help.SetText(strings.Join(text, ", "))
}

// showHelp displays a modal with the help items for all the screens.
func (h *helpView) showHelp() {
	var row int

	helpModal := h.modals.newModalWithTable("help", "Help", 40, 60)
	helpModal.table.SetSelectionChangedFunc(func(row, _ int) {
		if row == 1 {
			helpModal.table.ScrollToBeginning()
		}
	})
	helpModal.table.SetMouseCapture(func(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
		if action == tview.MouseScrollUp {
			helpModal.table.InputHandler()(tcell.NewEventKey(tcell.KeyUp, ' ', tcell.ModNone), nil)
		}

		return action, event
	})

	titles := make([]string, 0, len(h.topics))
	for title := range h.topics {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	style := tcell.Style{}.
		Foreground(theme.GetColor(theme.ThemeText)).
		Background(theme.Contrast(theme.ThemeText))

	for _, title := range titles {
		helpModal.table.SetCell(row, 0, tview.NewTableCell("[::bu]"+title).
			SetSelectable(false).
			SetAlign(tview.AlignCenter).
			SetTextColor(theme.GetColor(theme.ThemeText)),
		)

		row++

		for _, item := range h.topics[title] {
			helpModal.table.SetCell(row, 0, tview.NewTableCell(theme.ColorWrap(theme.ThemeText, item.Description)).
				SetExpansion(1).
				SetAlign(tview.AlignLeft).
				SetTextColor(theme.GetColor(theme.ThemeText)).
				SetSelectedStyle(style),
			)

			helpModal.table.SetCell(row, 1, tview.NewTableCell(theme.ColorWrap(theme.ThemeText, h.keyNames(item.Keys))).
				SetExpansion(0).
				SetAlign(tview.AlignLeft).
				SetTextColor(theme.GetColor(theme.ThemeText)).
				SetSelectedStyle(style),
			)

			row++
		}

		row++
	}

	helpModal.show()
}

func (h *helpView) keyNames(keys []keybindings.Key) string {
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, h.kb.Name(h.kb.Data(k).Kb))
	}

	return strings.Join(names, "/")
}

// HelpData describes the help item.
type HelpData struct {
	Title, Description string
	Keys               []keybindings.Key
	ShowInStatus       bool
}

// initHelpData initializes the help data for all the specified screens.
func (h *helpView) initHelpData() {
	h.topics = map[string][]HelpData{
		"Device Screen": {
			{"Navigation", "Navigate between devices", []keybindings.Key{keybindings.KeyNavigateUp, keybindings.KeyNavigateDown}, true},
			{"Connect", "Connect to the selected device", []keybindings.Key{keybindings.KeyDeviceConnect}, true},
			{"Disconnect", "Disconnect from the selected device", []keybindings.Key{keybindings.KeyDeviceDisconnect}, true},
			{"Browse", "Browse the media of the selected device", []keybindings.Key{keybindings.KeyBrowserShow, keybindings.KeySwitch}, true},
			{"Player", "Show/Hide player", []keybindings.Key{keybindings.KeyPlayerShow, keybindings.KeyPlayerHide}, true},
			{"Device Info", "Show session information", []keybindings.Key{keybindings.KeyDeviceInfo}, false},
			{"Remove", "Remove the session of the selected device", []keybindings.Key{keybindings.KeyDeviceRemove}, false},
			{"Cancel", "Cancel operation", []keybindings.Key{keybindings.KeyCancel}, false},
			{"Help", "Show help", []keybindings.Key{keybindings.KeyHelp}, true},
			{"Quit", "Quit", []keybindings.Key{keybindings.KeyQuit}, false},
		},
		"Browser": {
			{"Navigation", "Navigate between items", []keybindings.Key{keybindings.KeyNavigateUp, keybindings.KeyNavigateDown}, true},
			{"Open", "Fetch a folder or play a media item", []keybindings.Key{keybindings.KeySelect}, true},
			{"Back", "Collapse the current folder", []keybindings.Key{keybindings.KeyBrowserBack}, true},
			{"Play", "Play the selected item", []keybindings.Key{keybindings.KeyBrowserPlay}, true},
			{"Address", "Make the selected player the addressed player", []keybindings.Key{keybindings.KeyBrowserAddress}, true},
			{"Devices", "Go back to the device screen", []keybindings.Key{keybindings.KeySwitch}, false},
		},
		"Media Player": {
			{"Play/Pause", "Toggle play/pause", []keybindings.Key{keybindings.KeyPlayerTogglePlay}, false},
			{"Next", "Next", []keybindings.Key{keybindings.KeyPlayerNext}, false},
			{"Previous", "Previous", []keybindings.Key{keybindings.KeyPlayerPrevious}, false},
			{"Rewind", "Hold rewind until the next key", []keybindings.Key{keybindings.KeyPlayerSeekBackward}, false},
			{"Forward", "Hold fast forward until the next key", []keybindings.Key{keybindings.KeyPlayerSeekForward}, false},
			{"Stop", "Stop", []keybindings.Key{keybindings.KeyPlayerStop}, false},
			{"Volume", "Raise/Lower the local volume", []keybindings.Key{keybindings.KeyPlayerVolumeUp, keybindings.KeyPlayerVolumeDown}, false},
		},
	}
}
