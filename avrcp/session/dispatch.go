package session

import (
	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/avrcp"
)

// dispatch issues an outbound call effect to the stack. It reports false
// if the effect is not an outbound call.
func dispatch(stack avrcp.Stack, device bluetooth.MacAddress, effect Effect) (bool, error) {
	var err error

	switch c := effect.(type) {
	case CallConnect:
		err = stack.Connect(device)

	case CallDisconnect:
		err = stack.Disconnect(device)

	case CallPassThrough:
		err = stack.SendPassThrough(device, c.Key, c.State)

	case CallGetPlayerList:
		err = stack.GetPlayerList(device, c.Start, c.End)

	case CallGetFolderList:
		err = stack.GetFolderList(device, c.Start, c.End)

	case CallGetNowPlayingList:
		err = stack.GetNowPlayingList(device, c.Start, c.End)

	case CallChangeFolderPath:
		err = stack.ChangeFolderPath(device, c.Direction, c.UID)

	case CallSetBrowsedPlayer:
		err = stack.SetBrowsedPlayer(device, c.PlayerID)

	case CallSetAddressedPlayer:
		err = stack.SetAddressedPlayer(device, c.PlayerID)

	case CallPlayItem:
		err = stack.PlayItem(device, c.Scope, c.UID, c.UIDCounter)

	case CallAbsoluteVolumeResponse:
		err = stack.SendAbsoluteVolumeResponse(device, c.Volume, c.Label)

	case CallVolumeNotification:
		err = stack.SendVolumeNotification(device, c.Kind, c.Volume, c.Label)

	default:
		return false, nil
	}

	return true, err
}
