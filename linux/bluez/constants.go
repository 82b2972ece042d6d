//go:build linux

package bluez

import "github.com/godbus/dbus/v5"

// The DBus specific bus and property names.
const (
	dbusGetAllPropertiesIface = "org.freedesktop.DBus.Properties.GetAll"
	dbusSetPropertiesIface    = "org.freedesktop.DBus.Properties.Set"
	dbusObjectManagerIface    = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"

	dbusSignalAddMatchIface          = "org.freedesktop.DBus.AddMatch"
	dbusSignalRemoveMatchIface       = "org.freedesktop.DBus.RemoveMatch"
	dbusSignalPropertyChangedIface   = "org.freedesktop.DBus.Properties.PropertiesChanged"
	dbusSignalInterfacesAddedIface   = "org.freedesktop.DBus.ObjectManager.InterfacesAdded"
	dbusSignalInterfacesRemovedIface = "org.freedesktop.DBus.ObjectManager.InterfacesRemoved"

	bluezBusName              = "org.bluez"
	bluezDeviceIface          = "org.bluez.Device1"
	bluezMediaControlIface    = "org.bluez.MediaControl1"
	bluezMediaPlayerIface     = "org.bluez.MediaPlayer1"
	bluezMediaFolderIface     = "org.bluez.MediaFolder1"
	bluezMediaItemIface       = "org.bluez.MediaItem1"
	bluezMediaTransportIface  = "org.bluez.MediaTransport1"
	bluezErrorInvalidArgument = "org.bluez.Error.InvalidArguments"

	signalMatch = "type='signal', sender='org.bluez'"
)

// bluezRootPath is the object manager path of the Bluez service.
const bluezRootPath = dbus.ObjectPath("/")
