package theme

import (
	"maps"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreTheme(t *testing.T) {
	saved := maps.Clone(ThemeConfig)
	t.Cleanup(func() {
		ThemeConfig = saved
	})
}

func TestParseThemeConfig(t *testing.T) {
	restoreTheme(t)

	require.NoError(t, ParseThemeConfig(map[string]string{
		"HeaderState": "yellow",
		"Background":  "transparent",
		"Text":        "black",
	}))

	assert.Equal(t, tcell.GetColor("yellow"), GetColor(ThemeHeaderState))
	assert.Equal(t, tcell.ColorDefault, GetColor(ThemeBackground))
	assert.Equal(t, "#000000", ThemeConfig[ThemeText])

	assert.Error(t, ParseThemeConfig(map[string]string{"Menu": "red"}))
	assert.Error(t, ParseThemeConfig(map[string]string{"Border": "not-a-color"}))
}

func TestContrast(t *testing.T) {
	restoreTheme(t)

	ThemeConfig[ThemeHeaderState] = "yellow"
	assert.Equal(t, tcell.ColorBlack, Contrast(ThemeHeaderState))
	assert.Contains(t, Badge(ThemeHeaderState, "Connected"), "[black:yellow:b]")

	ThemeConfig[ThemeHeaderState] = "navy"
	assert.Equal(t, tcell.ColorWhite, Contrast(ThemeHeaderState))
	assert.Equal(t, "[white:navy:b] Connected [-:-:-]", Badge(ThemeHeaderState, "Connected"))
}
