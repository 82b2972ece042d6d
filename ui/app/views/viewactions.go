package views

import (
	"context"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/avrcp/session"
)

// viewActions holds the session actions that are invoked from the views.
type viewActions struct {
	rv *Views
}

// newViewActions returns a new actions manager.
func newViewActions(rv *Views) *viewActions {
	return &viewActions{rv: rv}
}

// connect starts a session with the provided device.
// The outcome is reported through session events.
func (v *viewActions) connect(device bluetooth.MacAddress) bool {
	if device.IsNil() {
		return false
	}

	if info, err := v.rv.app.Backend().Sessions.Info(device); err == nil && info.State == session.Connected {
		v.rv.status.InfoMessage(device.String()+" is already connected", false)
		return false
	}

	if err := v.rv.app.Backend().Sessions.Connect(device); err != nil {
		v.rv.status.ErrorMessage(err)
		return false
	}

	v.rv.device.updateRow(device)
	v.rv.status.InfoMessage("Connecting to "+device.String(), true)

	return true
}

// disconnect tears down the session with the provided device.
func (v *viewActions) disconnect(device bluetooth.MacAddress) bool {
	if device.IsNil() {
		return false
	}

	if err := v.rv.app.Backend().Sessions.Disconnect(device); err != nil {
		v.rv.status.ErrorMessage(err)
		return false
	}

	if v.rv.player.currentDevice() == device {
		v.rv.player.close()
	}

	v.rv.device.updateRow(device)
	v.rv.status.InfoMessage("Disconnecting from "+device.String(), true)

	return true
}

// remove removes the session of the provided device, after confirmation.
func (v *viewActions) remove(device bluetooth.MacAddress) bool {
	if device.IsNil() {
		return false
	}

	confirm := v.rv.modals.newConfirmModal("remove", "Remove Session",
		"Remove the session of "+device.String()+"?")
	if !confirm.getReply(context.Background()) {
		return false
	}

	if v.rv.player.currentDevice() == device {
		v.rv.player.close()
	}

	if err := v.rv.app.Backend().Sessions.Remove(device); err != nil {
		v.rv.status.ErrorMessage(err)
		return false
	}

	v.rv.device.updateRow(device)
	v.rv.status.InfoMessage("Removed the session of "+device.String(), false)

	return true
}

// quit quits the application.
func (v *viewActions) quit() bool {
	if v.rv.cfg.Values.ConfirmOnQuit && v.rv.status.SetInput("Quit (y/n)?") != "y" {
		return false
	}

	v.rv.app.Close()

	return true
}
