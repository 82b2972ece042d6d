package theme

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

// ColorWrap wraps the text content with the modifier element's color.
// The optional attribute defaults to bold.
func ColorWrap(elementName Context, elementContent string, attributes ...string) string {
	attr := "::b"
	if len(attributes) > 0 {
		attr = attributes[0]
	}

	return fmt.Sprintf("[%s%s]%s[-:-:-]", ThemeConfig[elementName], attr, elementContent)
}

// Badge renders the text content on top of the modifier element's color.
func Badge(elementName Context, elementContent string) string {
	foreground := "white"
	if Contrast(elementName) == tcell.ColorBlack {
		foreground = "black"
	}

	return fmt.Sprintf("[%s:%s:b] %s [-:-:-]", foreground, ThemeConfig[elementName], elementContent)
}

// Contrast returns black or white, whichever stays readable
// on top of the modifier element's color.
func Contrast(themeContext Context) tcell.Color {
	r, g, b := GetColor(themeContext).RGB()

	// Perceived brightness, as weighted by the W3C accessibility guidelines.
	if (r*299+g*587+b*114)/1000 > 130 {
		return tcell.ColorBlack
	}

	return tcell.ColorWhite
}

// GetColor returns the color of the modifier element.
func GetColor(themeContext Context) tcell.Color {
	switch color := ThemeConfig[themeContext]; color {
	case "black":
		return tcell.Color16

	case "transparent", "default":
		return tcell.ColorDefault

	default:
		return tcell.GetColor(color)
	}
}

// validColor reports whether the color name or hex value can be displayed.
func validColor(color string) bool {
	switch color {
	case "transparent", "default":
		return true
	}

	return tcell.GetColor(color) != tcell.ColorDefault
}
