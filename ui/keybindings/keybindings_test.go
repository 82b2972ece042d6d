package keybindings

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyContexts(t *testing.T) {
	kb := NewKeybindings()

	space := tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone)
	assert.Equal(t, KeyPlayerTogglePlay, kb.Key(space, ContextPlayer))
	assert.Equal(t, Key(""), kb.Key(space, ContextBrowser))

	right := tcell.NewEventKey(tcell.KeyRight, ' ', tcell.ModNone)
	assert.Equal(t, KeyPlayerSeekForward, kb.Key(right, ContextPlayer))
	assert.Equal(t, KeyNavigateRight, kb.Key(right))

	quit := tcell.NewEventKey(tcell.KeyRune, 'Q', tcell.ModShift)
	assert.Equal(t, KeyQuit, kb.Key(quit, ContextDevice))
}

func TestValidate(t *testing.T) {
	kb := NewKeybindings()

	require.NoError(t, kb.Validate(map[string]string{
		"PlayerStop":  "s",
		"BrowserPlay": "ctrl+p",
	}))

	stop := tcell.NewEventKey(tcell.KeyRune, 's', tcell.ModNone)
	assert.Equal(t, KeyPlayerStop, kb.Key(stop, ContextPlayer))
	assert.Equal(t, "s", kb.Name(kb.Data(KeyPlayerStop).Kb))

	play := tcell.NewEventKey(tcell.KeyCtrlP, ' ', tcell.ModCtrl)
	assert.Equal(t, KeyBrowserPlay, kb.Key(play, ContextBrowser))
}

func TestValidateErrors(t *testing.T) {
	for name, bindings := range map[string]map[string]string{
		"unknown key type": {"DeviceTeleport": "t"},
		"no key":           {"PlayerStop": "ctrl"},
		"two keys":         {"PlayerStop": "a b"},
		"conflict":         {"PlayerStop": ">"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, NewKeybindings().Validate(bindings))
		})
	}
}

func TestName(t *testing.T) {
	kb := NewKeybindings()

	assert.Equal(t, "Space", kb.Name(kb.Data(KeyPlayerTogglePlay).Kb))
	assert.Equal(t, "Tab", kb.Name(kb.Data(KeySwitch).Kb))
	assert.Equal(t, "Alt+x", kb.Name(Keybinding{tcell.KeyRune, 'x', tcell.ModAlt}))
}
