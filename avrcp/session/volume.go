package session

import "github.com/darkhz/avrctl/avrcp"

// percentage converts a local volume index to an absolute volume value.
func percentage(volume VolumeReader) int {
	index, max := volume.Volume()
	if max <= 0 {
		return 0
	}

	return roundDiv(index*avrcp.AbsoluteVolumeBase, max)
}

// roundDiv divides two non-negative integers, rounding half up.
func roundDiv(n, d int) int {
	return (n + d/2) / d
}

// registerAbsoluteVolume answers a notification registration with the
// current volume, and remembers the label for the changed notification.
func (st *State) registerAbsoluteVolume(volume VolumeReader, ev avrcp.RegisterAbsoluteVolume, out *Outcome) {
	st.AbsVolNotificationPending = true
	st.NotificationLabel = ev.Label

	out.emit(CallVolumeNotification{
		Kind:   avrcp.NotificationInterim,
		Volume: percentage(volume),
		Label:  ev.Label,
	})
}

// setAbsoluteVolume applies a peer volume command. A command from a device
// that is not streaming is echoed back without changing the local volume.
func (st *State) setAbsoluteVolume(volume VolumeReader, ev avrcp.SetAbsoluteVolume, out *Outcome) {
	absVol := min(max(ev.Volume, 0), avrcp.AbsoluteVolumeBase)

	if volume.IsActive(st.Device) {
		index, maxIndex := volume.Volume()

		newIndex := roundDiv(absVol*maxIndex, avrcp.AbsoluteVolumeBase)
		if maxIndex > 0 && newIndex != index {
			st.VolumeChangedNotificationsToIgnore++
			st.armTimer(TimerVolumeEcho, out)

			out.emit(SetLocalVolume{Index: newIndex})
		}
	}

	out.emit(CallAbsoluteVolumeResponse{Volume: absVol, Label: ev.Label})
}

// localVolumeChanged suppresses the echo of a peer initiated change, or
// completes a pending volume notification.
func (st *State) localVolumeChanged(volume VolumeReader, out *Outcome) {
	if st.VolumeChangedNotificationsToIgnore > 0 {
		st.VolumeChangedNotificationsToIgnore--
		if st.VolumeChangedNotificationsToIgnore == 0 {
			st.cancelTimer(TimerVolumeEcho, out)
		}

		return
	}

	if !st.AbsVolNotificationPending {
		return
	}

	pct := percentage(volume)
	if pct == st.PreviousPercentageVolume {
		return
	}

	out.emit(CallVolumeNotification{
		Kind:   avrcp.NotificationChanged,
		Volume: pct,
		Label:  st.NotificationLabel,
	})

	st.PreviousPercentageVolume = pct
	st.AbsVolNotificationPending = false
	st.NotificationLabel = avrcp.LabelUndefined
}
