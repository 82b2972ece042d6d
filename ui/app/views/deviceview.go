package views

import (
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/events"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/avrcp/session"
	"github.com/darkhz/avrctl/ui/keybindings"
	"github.com/darkhz/avrctl/ui/theme"
)

// deviceView holds the devices view.
type deviceView struct {
	table *tview.Table

	*Views
}

// Initialize initializes the devices view.
func (d *deviceView) Initialize() error {
	d.table = tview.NewTable()
	d.table.SetSelectorWrap(true)
	d.table.SetSelectable(true, false)
	d.table.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))
	d.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch d.kb.Key(event, keybindings.ContextDevice) {
		case keybindings.KeyHelp:
			d.help.showHelp()
			return event

		case keybindings.KeyDeviceConnect:
			go d.actions.connect(d.getSelection())

		case keybindings.KeyDeviceDisconnect:
			go d.actions.disconnect(d.getSelection())

		case keybindings.KeyDeviceRemove:
			go d.actions.remove(d.getSelection())

		case keybindings.KeyDeviceInfo:
			d.showDetailedInfo()

		case keybindings.KeyBrowserShow, keybindings.KeySelect:
			if device := d.getSelection(); !device.IsNil() {
				d.browser.show(device)
			}

			return nil

		default:
			d.player.keyEvents(event, d.getSelection())
		}

		return ignoreDefaultEvent(event)
	})
	d.table.SetSelectionChangedFunc(func(row, _ int) {
		d.setHeader(d.getSelection())
	})

	d.list()
	d.connectByAddress()
	go d.event()

	return nil
}

// SetRootView sets the root view of the devices view.
func (d *deviceView) SetRootView(v *Views) {
	d.Views = v
}

// list lists the devices known to the stack, along with any device that
// only has a session.
func (d *deviceView) list() {
	var devices []bluetooth.MacAddress

	if d.app.Backend().Devices != nil {
		devices = append(devices, d.app.Backend().Devices()...)
	}

	for _, info := range d.app.Backend().Sessions.Sessions() {
		if !slices.Contains(devices, info.Address) {
			devices = append(devices, info.Address)
		}
	}

	slices.SortFunc(devices, func(a, b bluetooth.MacAddress) int {
		return strings.Compare(a.String(), b.String())
	})

	d.table.Clear()
	for i, device := range devices {
		d.setInfo(i, device)
	}
	d.table.Select(0, 0)
}

// connectByAddress connects to a device based on the provided address
// which was parsed from the "connect-bdaddr" command-line option.
func (d *deviceView) connectByAddress() {
	address := d.cfg.Values.AutoConnectDeviceAddr
	if address.IsNil() {
		return
	}

	go d.actions.connect(address)
}

// showDetailedInfo shows detailed information about a device's session.
func (d *deviceView) showDetailedInfo() {
	device := d.getSelection()
	if device.IsNil() {
		return
	}

	info, err := d.app.Backend().Sessions.Info(device)
	if err != nil {
		d.status.ErrorMessage(err)
		return
	}

	yesno := func(val bool) string {
		if !val {
			return "no"
		}

		return "yes"
	}

	props := [][]string{
		{"Address", info.Address.String()},
		{"State", info.State.String()},
		{"Activity", info.SubState.String()},
		{"Remote Control", yesno(info.Features.Has(session.FeatureRemoteControl))},
		{"Browsing", yesno(info.Features.Has(session.FeatureBrowsing))},
		{"Addressed Player", strconv.Itoa(info.AddressedPlayerID)},
		{"Status", string(info.Status)},
		{"Track", trackTitle(info.Track)},
		{"Position", formatDuration(info.PositionMs) + "/" + formatDuration(info.SongLengthMs)},
		{"Held Key", info.HeldKey.String()},
		{"Volume Notification", yesno(info.AbsVolNotificationPending)},
		{"Fetching", info.FetchTarget},
		{"Deferred Requests", strconv.Itoa(info.Deferred)},
	}

	infoModal := d.modals.newModalWithTable("info", "Session Information", 40, 100)
	infoModal.table.SetSelectionChangedFunc(func(row, _ int) {
		_, _, _, height := infoModal.table.GetRect()
		infoModal.table.SetOffset(row-((height-1)/2), 0)
	})

	for i, prop := range props {
		infoModal.table.SetCell(i, 0, tview.NewTableCell("[::b]"+prop[0]+":").
			SetExpansion(1).
			SetAlign(tview.AlignLeft).
			SetTextColor(theme.GetColor(theme.ThemeText)).
			SetSelectedStyle(tcell.Style{}.
				Bold(true).
				Underline(true),
			),
		)

		infoModal.table.SetCell(i, 1, tview.NewTableCell(tview.Escape(prop[1])).
			SetExpansion(1).
			SetAlign(tview.AlignLeft).
			SetTextColor(theme.GetColor(theme.ThemeText)),
		)
	}

	infoModal.height = min(infoModal.table.GetRowCount()+4, 60)

	infoModal.show()
}

// getSelection retrieves the device address from the current selection in the devices view.
func (d *deviceView) getSelection() bluetooth.MacAddress {
	row, _ := d.table.GetSelection()

	cell := d.table.GetCell(row, 0)
	if cell == nil {
		return bluetooth.MacAddress{}
	}

	device, _ := cell.GetReference().(bluetooth.MacAddress)

	return device
}

// getRowByAddress iterates through the devices view and checks
// if a device whose address matches the address parameter exists.
func (d *deviceView) getRowByAddress(address bluetooth.MacAddress) (int, bool) {
	for row := range d.table.GetRowCount() {
		cell := d.table.GetCell(row, 0)
		if cell == nil {
			continue
		}

		if ref, ok := cell.GetReference().(bluetooth.MacAddress); ok && ref == address {
			return row, true
		}
	}

	return -1, false
}

// setInfo writes the device address and its session information into the specified row of the devices view.
func (d *deviceView) setInfo(row int, device bluetooth.MacAddress) {
	info, err := d.app.Backend().Sessions.Info(device)
	hasSession := err == nil

	nameColor := theme.ThemeDevice
	propColor := theme.ThemeDeviceProperty

	if hasSession && info.State == session.Connected {
		nameColor = theme.ThemeDeviceConnected
		propColor = theme.ThemeDevicePropertyConnected
	}

	d.table.SetCell(
		row, 0, tview.NewTableCell(device.String()).
			SetExpansion(1).
			SetReference(device).
			SetAlign(tview.AlignLeft).
			SetAttributes(tcell.AttrBold).
			SetTextColor(theme.GetColor(nameColor)).
			SetSelectedStyle(tcell.Style{}.
				Foreground(theme.GetColor(nameColor)).
				Background(theme.Contrast(nameColor)),
			),
	)

	d.table.SetCell(
		row, 1, tview.NewTableCell(sessionProperties(info, hasSession)).
			SetExpansion(1).
			SetAlign(tview.AlignRight).
			SetTextColor(theme.GetColor(propColor)).
			SetSelectedStyle(tcell.Style{}.
				Bold(true),
			),
	)
}

// sessionProperties formats the session state shown next to a device.
func sessionProperties(info session.Info, hasSession bool) string {
	if !hasSession {
		return "[No Session[]"
	}

	var props []string

	state := info.State.String()
	if info.SubState != session.Idle {
		state += " " + info.SubState.String()
	}
	props = append(props, state)

	if info.State == session.Connected {
		if info.Status != "" && info.Status != avrcp.StatusStopped {
			props = append(props, string(info.Status))
		}

		if title := info.Track.Title; title != "" {
			props = append(props, tview.Escape(title))
		}
	}

	return "(" + strings.Join(props, ", ") + ")"
}

// updateRow refreshes the row of the provided device, adding it if necessary.
func (d *deviceView) updateRow(address bluetooth.MacAddress) {
	d.app.QueueDraw(func() {
		row, ok := d.getRowByAddress(address)
		if !ok {
			row = d.table.GetRowCount()
		}

		d.setInfo(row, address)

		if address == d.getSelection() {
			d.setHeader(address)
		}
	})
}

// event handles session and playback events.
func (d *deviceView) event() {
	bus := d.app.Backend().Bus

	sessionSub, ok := events.SessionEvents(bus).Subscribe()
	if !ok {
		d.status.ErrorMessage(errors.New("cannot subscribe to session events"))
		return
	}
	defer sessionSub.Unsubscribe()

	playbackSub, ok := events.PlaybackEvents(bus).Subscribe()
	if !ok {
		d.status.ErrorMessage(errors.New("cannot subscribe to playback events"))
		return
	}
	defer playbackSub.Unsubscribe()

	for {
		select {
		case <-sessionSub.Done:
			return

		case <-playbackSub.Done:
			return

		case ev, ok := <-sessionSub.AddedEvents:
			if ok {
				d.status.InfoMessage("Connected to "+ev.Address.String(), false)
				d.updateRow(ev.Address)
			}

		case ev, ok := <-sessionSub.RemovedEvents:
			if ok {
				d.status.InfoMessage("Disconnected from "+ev.Address.String(), false)
				d.updateRow(ev.Address)
			}

		case ev, ok := <-sessionSub.UpdatedEvents:
			if ok {
				d.updateRow(ev.Address)
			}

		case ev, ok := <-playbackSub.AddedEvents:
			if ok {
				d.updateRow(ev.Address)
			}

		case ev, ok := <-playbackSub.UpdatedEvents:
			if ok {
				d.updateRow(ev.Address)
			}
		}
	}
}

// trackTitle formats the title and artist of a track.
func trackTitle(track avrcp.Track) string {
	switch {
	case track.Title == "":
		return "-"

	case track.Artist == "":
		return track.Title
	}

	return track.Title + " - " + track.Artist
}
