package views

import (
	"context"
	"errors"
	"math/bits"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/darkhz/tview"
	"github.com/gdamore/tcell/v2"
	"go.uber.org/atomic"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/api/errorkinds"
	"github.com/darkhz/avrctl/api/events"
	"github.com/darkhz/avrctl/avrcp"
	"github.com/darkhz/avrctl/avrcp/session"
	"github.com/darkhz/avrctl/ui/keybindings"
	"github.com/darkhz/avrctl/ui/theme"
)

// keyTimeout bounds a single pass-through request made from the player.
const keyTimeout = 5 * time.Second

// mediaPlayer holds the media player view.
type mediaPlayer struct {
	isOpen atomic.Bool

	keyEvent  chan string
	stopEvent chan struct{}
	device    bluetooth.MacAddress

	*Views

	sync.Mutex
}

// playerElements holds the individual player view display elements.
type playerElements struct {
	player                                        *tview.Flex
	info, title, progress, track, buttons, volume *tview.TextView
}

// playerState holds the playback state rendered by the player.
type playerState struct {
	track        avrcp.Track
	status       avrcp.PlayStatus
	position     uint32
	songLength   uint32
	heldKey      avrcp.KeyCode
	volume, vmax int
}

// Initialize initializes the media player.
func (m *mediaPlayer) Initialize() error {
	m.stopEvent = make(chan struct{}, 1)
	m.keyEvent = make(chan string, 1)

	return nil
}

// SetRootView sets the root view for the media player.
func (m *mediaPlayer) SetRootView(v *Views) {
	m.Views = v
}

// show shows the media player for the provided device.
func (m *mediaPlayer) show(device bluetooth.MacAddress) {
	if device.IsNil() || m.isOpen.Load() {
		return
	}

	info, err := m.app.Backend().Sessions.Info(device)
	if err != nil {
		m.status.ErrorMessage(err)
		return
	}

	if info.State != session.Connected {
		m.status.ErrorMessage(errors.New(device.String() + " is not connected"))
		return
	}

	m.Lock()
	m.device = device
	m.Unlock()

	m.isOpen.Store(true)

	go m.updateLoop(device, info)
}

// close closes the media player.
func (m *mediaPlayer) close() {
	if !m.isOpen.Load() {
		return
	}

	select {
	case m.stopEvent <- struct{}{}:
	default:
	}
}

// currentDevice returns the device the player is open for.
func (m *mediaPlayer) currentDevice() bluetooth.MacAddress {
	m.Lock()
	defer m.Unlock()

	return m.device
}

// renderProgress renders the player progress bar.
func (m *mediaPlayer) renderProgress(progressView *tview.TextView, state playerState) {
	var length int

	_, _, width, _ := m.pages.GetRect()
	position := state.position
	duration := state.songLength

	width /= 2
	if position >= duration {
		position = duration
	}

	if duration > 0 {
		length = width * int(position) / int(duration)
	}

	endlength := width - length
	if endlength < 0 {
		endlength = width
	}

	var sb strings.Builder

	sb.WriteString(" ")
	sb.WriteString(formatDuration(position))
	sb.WriteString(" |")
	sb.WriteString(theme.ColorWrap(theme.ThemePlayerProgress, strings.Repeat("█", length)))
	sb.WriteString(strings.Repeat(" ", endlength))
	sb.WriteString("| ")
	sb.WriteString(formatDuration(duration))

	progressView.SetText(sb.String())
}

// renderButtons renders the player buttons.
func (m *mediaPlayer) renderButtons(buttonsView *tview.TextView, state playerState) {
	const (
		mediaLeftButtons  = `["rewind"][::b]<<[""] ["prev"][::b]<[""] ["play"][::b]`
		mediaRightButtons = `[""] ["next"][::b]>[""] ["fastforward"][::b]>>[""]`
	)

	button := "|>"

	if state.heldKey == avrcp.KeyNone {
		switch state.status {
		case avrcp.StatusPlaying:
			button = "||"

		case avrcp.StatusStopped:
			button = "[]"
		}
	}

	buttonsView.SetText(mediaLeftButtons + button + mediaRightButtons)

	switch state.heldKey {
	case avrcp.KeyFastForward:
		buttonsView.Highlight("fastforward")

	case avrcp.KeyRewind:
		buttonsView.Highlight("rewind")
	}
}

// renderTrackData renders the track details.
func (m *mediaPlayer) renderTrackData(elements playerElements, trackData avrcp.Track) {
	title := trackData.Title
	if title == "" {
		title = "<No media is playing>"
	}

	number := strconv.FormatUint(uint64(trackData.TrackNumber), 10)
	total := strconv.FormatUint(uint64(trackData.TotalTracks), 10)

	elements.title.SetText(tview.Escape(title))
	elements.info.SetText(tview.Escape(trackData.Artist + " - " + trackData.Album))
	elements.track.SetText("Track " + number + "/" + total)
}

// renderVolume renders the local output volume.
func (m *mediaPlayer) renderVolume(volumeView *tview.TextView, state playerState) {
	if state.vmax <= 0 {
		volumeView.SetText("")
		return
	}

	percent := state.volume * 100 / state.vmax
	volumeView.SetText(theme.ColorWrap(theme.ThemePlayerVolume, "Vol "+strconv.Itoa(percent)+"%"))
}

// renderPlayer renders the entire media player.
func (m *mediaPlayer) renderPlayer(state playerState, elements playerElements) {
	m.renderTrackData(elements, state.track)
	m.renderProgress(elements.progress, state)
	m.renderButtons(elements.buttons, state)
	m.renderVolume(elements.volume, state)
}

// readVolume reads the current volume of the local output.
func (m *mediaPlayer) readVolume(state *playerState) {
	if mixer := m.app.Backend().Mixer; mixer != nil {
		state.volume, state.vmax = mixer.Volume()
	}
}

// updateLoop updates the media player.
func (m *mediaPlayer) updateLoop(device bluetooth.MacAddress, info session.Info) {
	defer m.isOpen.Store(false)

	bus := m.app.Backend().Bus

	playbackSub, ok := events.PlaybackEvents(bus).Subscribe()
	if !ok {
		return
	}
	defer playbackSub.Unsubscribe()

	sessionSub, ok := events.SessionEvents(bus).Subscribe()
	if !ok {
		return
	}
	defer sessionSub.Unsubscribe()

	elements := m.setup(device)
	m.app.QueueDraw(func() {
		m.help.swapStatusHelp(elements.player, true)
	})
	defer m.app.QueueDraw(func() {
		m.help.swapStatusHelp(elements.player, false)
	})

	t := time.NewTicker(1 * time.Second)
	defer t.Stop()

	var delta uint32

	state := playerState{
		track:      info.Track,
		status:     info.Status,
		position:   info.PositionMs,
		songLength: info.SongLengthMs,
		heldKey:    info.HeldKey,
	}
	m.readVolume(&state)

	render := func(state playerState) {
		m.app.QueueDraw(func() {
			m.renderPlayer(state, elements)
		})
	}
	render(state)

	// Drain a stale stop request from a previous player.
	select {
	case <-m.stopEvent:
	default:
	}

	for {
		select {
		case <-m.stopEvent:
			return

		case ev, ok := <-sessionSub.RemovedEvents:
			if !ok || ev.Address == device {
				return
			}

		case h := <-m.keyEvent:
			switch h {
			case "fastforward", "rewind":
				t.Reset(250 * time.Millisecond)
			default:
				t.Reset(1 * time.Second)
			}

			if info, err := m.app.Backend().Sessions.Info(device); err == nil {
				state.heldKey = info.HeldKey
			}

			current := state
			m.app.QueueDraw(func() {
				m.renderButtons(elements.buttons, current)
				if h != "fastforward" && h != "rewind" {
					elements.buttons.Highlight(h)
				}
			})

		case ev, ok := <-playbackSub.AddedEvents:
			if !ok {
				return
			}

			if ev.Address != device || ev.Track == state.track {
				continue
			}

			state.track = ev.Track
			render(state)

		case ev, ok := <-playbackSub.UpdatedEvents:
			if !ok {
				return
			}

			if ev.Address != device {
				continue
			}

			switch ev.Status {
			case avrcp.StatusForwardSeek, avrcp.StatusReverseSeek:
				if ev.PositionMs > state.position {
					delta = ev.PositionMs - state.position
				} else {
					delta = state.position - ev.PositionMs
				}

			default:
				t.Reset(1 * time.Second)
				delta = 0
			}

			state.status = ev.Status
			state.position = ev.PositionMs
			if ev.SongLengthMs > 0 {
				state.songLength = ev.SongLengthMs
			}

			render(state)

		case <-t.C:
			m.readVolume(&state)

			switch state.status {
			case avrcp.StatusForwardSeek:
				t.Reset(250 * time.Millisecond)
				pos, c := bits.Add32(state.position, delta, 0)
				if c != 0 {
					pos = 0
				}
				state.position = pos

			case avrcp.StatusReverseSeek:
				t.Reset(250 * time.Millisecond)
				pos, b := bits.Sub32(state.position, delta, 0)
				if b != 0 {
					pos = 0
				}
				state.position = pos

			case avrcp.StatusPlaying:
				if state.position < state.songLength {
					state.position += 1000
				}
			}

			current := state
			m.app.QueueDraw(func() {
				m.renderProgress(elements.progress, current)
				m.renderVolume(elements.volume, current)
			})
		}
	}
}

// setup sets up the media player elements.
func (m *mediaPlayer) setup(device bluetooth.MacAddress) playerElements {
	newText := func(align int) *tview.TextView {
		text := tview.NewTextView()
		text.SetDynamicColors(true)
		text.SetTextAlign(align)
		text.SetTextColor(theme.GetColor(theme.ThemeText))
		text.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

		return text
	}

	info := newText(tview.AlignCenter)
	title := newText(tview.AlignCenter)
	progress := newText(tview.AlignCenter)
	track := newText(tview.AlignLeft)
	volume := newText(tview.AlignRight)

	address := newText(tview.AlignRight)
	address.SetText(device.String())

	buttonKeys := map[string]keybindings.Key{
		"play":        keybindings.KeyPlayerTogglePlay,
		"next":        keybindings.KeyPlayerNext,
		"prev":        keybindings.KeyPlayerPrevious,
		"fastforward": keybindings.KeyPlayerSeekForward,
		"rewind":      keybindings.KeyPlayerSeekBackward,
	}

	buttons := tview.NewTextView()
	buttons.SetRegions(true)
	buttons.SetDynamicColors(true)
	buttons.SetTextAlign(tview.AlignCenter)
	buttons.SetTextColor(theme.GetColor(theme.ThemeText))
	buttons.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))
	buttons.SetMouseCapture(func(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
		if action != tview.MouseLeftClick {
			return action, event
		}

		x, _ := event.Position()
		rectx, _, _, _ := buttons.GetInnerRect()
		x -= rectx

		for region, key := range buttonKeys {
			start := buttons.GetRegionStart(region)
			if x != start && x != start+1 {
				continue
			}

			go m.sendKey(key, m.currentDevice())

			break
		}

		return action, event
	})
	buttons.SetHighlightedFunc(func(added, _, _ []string) {
		if added == nil || added[0] == "fastforward" || added[0] == "rewind" {
			return
		}

		go func() {
			time.Sleep(100 * time.Millisecond)
			m.app.QueueDraw(func() {
				buttons.Highlight()
			})
		}()
	})

	status := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(volume, 0, 1, false).
		AddItem(nil, 1, 0, false).
		AddItem(address, 0, 1, false)
	status.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	buttonFlex := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(track, 0, 1, false).
		AddItem(nil, 1, 0, false).
		AddItem(buttons, 0, 1, false).
		AddItem(nil, 1, 0, false).
		AddItem(status, 0, 1, false)
	buttonFlex.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	player := tview.NewFlex().
		AddItem(nil, 1, 0, false).
		AddItem(title, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(info, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(progress, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(buttonFlex, 1, 0, false).
		SetDirection(tview.FlexRow)
	player.SetBackgroundColor(theme.GetColor(theme.ThemeBackground))

	return playerElements{player, info, title, progress, track, buttons, volume}
}

// keyEvents handles the media player keys pressed within the device or browser views.
func (m *mediaPlayer) keyEvents(event *tcell.EventKey, selected bluetooth.MacAddress) {
	key := m.kb.Key(event, keybindings.ContextPlayer)

	switch key {
	case keybindings.KeyPlayerShow:
		m.show(selected)

	case keybindings.KeyPlayerHide:
		if m.isOpen.Load() {
			go m.releaseKey(m.currentDevice())
		}

		m.close()

	default:
		if !m.isOpen.Load() {
			return
		}

		go m.sendKey(key, m.currentDevice())
	}
}

// sendKey performs the player operation bound to key on the provided device.
func (m *mediaPlayer) sendKey(key keybindings.Key, device bluetooth.MacAddress) {
	var (
		highlight string
		code      avrcp.KeyCode
	)

	switch key {
	case keybindings.KeyPlayerVolumeUp, keybindings.KeyPlayerVolumeDown:
		m.stepVolume(key == keybindings.KeyPlayerVolumeUp)
		return

	case keybindings.KeyPlayerSeekForward:
		highlight, code = "fastforward", avrcp.KeyFastForward

	case keybindings.KeyPlayerSeekBackward:
		highlight, code = "rewind", avrcp.KeyRewind

	case keybindings.KeyPlayerPrevious:
		highlight, code = "prev", avrcp.KeyBackward

	case keybindings.KeyPlayerNext:
		highlight, code = "next", avrcp.KeyForward

	case keybindings.KeyPlayerStop:
		highlight, code = "play", avrcp.KeyStop

	case keybindings.KeyPlayerTogglePlay:
		highlight, code = "play", avrcp.KeyPlay

	default:
		return
	}

	info, err := m.app.Backend().Sessions.Info(device)
	if err != nil {
		m.status.ErrorMessage(err)
		return
	}

	if code == avrcp.KeyPlay && info.HeldKey == avrcp.KeyNone && info.Status == avrcp.StatusPlaying {
		code = avrcp.KeyPause
	}

	ctx, cancel := context.WithTimeout(context.Background(), keyTimeout)
	defer cancel()

	if err := m.app.Backend().Sessions.PassThrough(ctx, device, code); err != nil {
		m.status.ErrorMessage(err)
		return
	}

	select {
	case m.keyEvent <- highlight:
	default:
	}
}

// releaseKey releases a fast-forward or rewind key that is still held on the device.
func (m *mediaPlayer) releaseKey(device bluetooth.MacAddress) {
	ctx, cancel := context.WithTimeout(context.Background(), keyTimeout)
	defer cancel()

	err := m.app.Backend().Sessions.ReleaseHeldKey(ctx, device)
	if err != nil && !errors.Is(err, errorkinds.ErrNotConnected) && !errors.Is(err, errorkinds.ErrSessionNotExist) {
		m.status.ErrorMessage(err)
	}
}

// stepVolume raises or lowers the local output volume by one step.
func (m *mediaPlayer) stepVolume(up bool) {
	mixer := m.app.Backend().Mixer
	if mixer == nil {
		return
	}

	index, vmax := mixer.Volume()
	if up {
		index = min(index+1, vmax)
	} else {
		index = max(index-1, 0)
	}

	if err := mixer.SetVolume(index); err != nil {
		m.status.ErrorMessage(err)
	}
}

// formatDuration converts a duration into a human-readable format.
func formatDuration(duration uint32) string {
	var durationtext strings.Builder

	d := (time.Duration(duration) * time.Millisecond).Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour

	m := d / time.Minute
	d -= m * time.Minute

	s := d / time.Second

	if h > 0 {
		if h < 10 {
			durationtext.WriteString("0")
		}

		durationtext.WriteString(strconv.Itoa(int(h)))
		durationtext.WriteString(":")
	}

	if m < 10 {
		durationtext.WriteString("0")
	}
	durationtext.WriteString(strconv.Itoa(int(m)))

	durationtext.WriteString(":")

	if s < 10 {
		durationtext.WriteString("0")
	}
	durationtext.WriteString(strconv.Itoa(int(s)))

	return durationtext.String()
}
