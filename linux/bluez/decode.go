//go:build linux

package bluez

import (
	"fmt"
	"maps"
	"path"
	"reflect"
	"strings"
	"sync"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/godbus/dbus/v5"
	"github.com/ugorji/go/codec"
)

// variantExt is a go-codec extension to encode DBus variant values.
type variantExt struct{}

// ConvertExt converts a variant into an encodable value.
func (variantExt) ConvertExt(variant any) any {
	switch v := variant.(type) {
	case *dbus.Variant:
		return v.Value()

	case dbus.Variant:
		return v.Value()
	}

	return variant
}

// UpdateExt is never used, variants are only encoded.
func (variantExt) UpdateExt(dst, src any) {}

type resolver struct {
	encoder *codec.Encoder
	decoder *codec.Decoder
	data    []byte

	once sync.Once
	sync.Mutex
}

var variantDecoder resolver

// decodeVariantMap decodes a map of variants into data, matching the
// "codec" struct tags of data against the property names.
func decodeVariantMap(variants map[string]dbus.Variant, data any) error {
	variantDecoder.once.Do(func() {
		handle := codec.JsonHandle{}
		handle.TypeInfos = codec.NewTypeInfos([]string{"codec"})
		handle.SetInterfaceExt(reflect.TypeOf(dbus.Variant{}), 1, variantExt{})
		handle.SetInterfaceExt(reflect.TypeOf((*dbus.Variant)(nil)), 1, variantExt{})

		variantDecoder.encoder = codec.NewEncoderBytes(&variantDecoder.data, &handle)
		variantDecoder.decoder = codec.NewDecoderBytes(variantDecoder.data, &handle)
	})

	variantDecoder.Lock()
	defer variantDecoder.Unlock()

	variantDecoder.encoder.ResetBytes(&variantDecoder.data)
	if err := variantDecoder.encoder.Encode(&variants); err != nil {
		return err
	}

	variantDecoder.decoder.ResetBytes(variantDecoder.data)

	return variantDecoder.decoder.Decode(data)
}

// playerProperties holds the properties of a MediaPlayer1 object.
type playerProperties struct {
	Name      string `codec:"Name,omitempty"`
	Status    string `codec:"Status,omitempty"`
	Position  uint32 `codec:"Position,omitempty"`
	Browsable bool   `codec:"Browsable,omitempty"`

	Track    avrcp.Track `codec:"-"`
	HasTrack bool        `codec:"-"`
}

// itemProperties holds the properties of a MediaItem1 object.
type itemProperties struct {
	Name     string `codec:"Name,omitempty"`
	Type     string `codec:"Type,omitempty"`
	Playable bool   `codec:"Playable,omitempty"`

	Metadata avrcp.Track `codec:"-"`
}

// folderProperties holds the properties of a MediaFolder1 object.
type folderProperties struct {
	Name          string `codec:"Name,omitempty"`
	NumberOfItems uint32 `codec:"NumberOfItems,omitempty"`
}

// deviceProperties holds the properties of a Device1 object.
type deviceProperties struct {
	Address bluetooth.MacAddress `codec:"Address,omitempty"`
}

// decodeTrack decodes a nested track metadata variant.
func decodeTrack(variant dbus.Variant) (avrcp.Track, bool, error) {
	var track avrcp.Track

	values, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		return track, false, nil
	}

	if err := decodeVariantMap(values, &track); err != nil {
		return track, false, err
	}

	if track.TrackNumber > 0 && track.TotalTracks == 0 {
		track.TotalTracks = track.TrackNumber
	}

	return track, true, nil
}

// parsePlayer parses a variant map of media player properties.
func parsePlayer(values map[string]dbus.Variant) (playerProperties, error) {
	var props playerProperties

	values = maps.Clone(values)
	if t, ok := values["Track"]; ok {
		track, ok, err := decodeTrack(t)
		if err != nil {
			return props, err
		}

		props.Track, props.HasTrack = track, ok
		delete(values, "Track")
	}

	if err := decodeVariantMap(values, &props); err != nil {
		return props, err
	}

	return props, nil
}

// parseItem parses a variant map of media item properties.
func parseItem(values map[string]dbus.Variant) (itemProperties, error) {
	var props itemProperties

	values = maps.Clone(values)
	if m, ok := values["Metadata"]; ok {
		track, _, err := decodeTrack(m)
		if err != nil {
			return props, err
		}

		props.Metadata = track
		delete(values, "Metadata")
	}

	// Object paths are not decoded.
	delete(values, "Player")

	if err := decodeVariantMap(values, &props); err != nil {
		return props, err
	}

	return props, nil
}

// item converts a listed media item into a listing entry.
func (i itemProperties) item(uid uint64) avrcp.Item {
	item := avrcp.Item{
		UID:      uid,
		Name:     i.Name,
		Playable: i.Playable,
	}

	if i.Type == "folder" {
		item.Kind = avrcp.ItemFolder
		item.Browsable = true

		return item
	}

	item.Kind = avrcp.ItemMedia
	item.Track = i.Metadata
	if item.Name == "" {
		item.Name = i.Metadata.Title
	}

	return item
}

// objectIndex parses the numeric suffix of an object path, for example
// 3 from ".../player3" with prefix "player".
func objectIndex(p dbus.ObjectPath, prefix string) (uint64, bool) {
	var index uint64

	base := path.Base(string(p))
	if !strings.HasPrefix(base, prefix) {
		return 0, false
	}

	if _, err := fmt.Sscanf(strings.TrimPrefix(base, prefix), "%d", &index); err != nil {
		return 0, false
	}

	return index, true
}

// folderDepth returns the number of levels a folder name, for example
// "/Filesystem/Music/Rock", sits below the root of the virtual filesystem.
func folderDepth(name string) int {
	name = strings.Trim(name, "/")
	if name == "" {
		return 0
	}

	return strings.Count(name, "/")
}

// parentPath returns the object path of the parent of an object.
func parentPath(p dbus.ObjectPath) dbus.ObjectPath {
	return dbus.ObjectPath(path.Dir(string(p)))
}
