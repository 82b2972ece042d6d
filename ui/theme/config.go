package theme

import (
	"fmt"
)

// Context describes the type of context to apply the color into.
type Context string

// The different context types for themes.
const (
	ThemeText                    Context = "Text"
	ThemeBorder                  Context = "Border"
	ThemeBackground              Context = "Background"
	ThemeStatusInfo              Context = "StatusInfo"
	ThemeStatusError             Context = "StatusError"
	ThemeHeader                  Context = "Header"
	ThemeHeaderState             Context = "HeaderState"
	ThemeDevice                  Context = "Device"
	ThemeDeviceConnected         Context = "DeviceConnected"
	ThemeDeviceProperty          Context = "DeviceProperty"
	ThemeDevicePropertyConnected Context = "DevicePropertyConnected"
	ThemeBrowserPlayer           Context = "BrowserPlayer"
	ThemeBrowserFolder           Context = "BrowserFolder"
	ThemeBrowserMedia            Context = "BrowserMedia"
	ThemeBrowserPending          Context = "BrowserPending"
	ThemePlayerProgress          Context = "PlayerProgress"
	ThemePlayerVolume            Context = "PlayerVolume"
)

// ThemeConfig stores a list of color for the modifier elements.
var ThemeConfig = map[Context]string{
	ThemeText:        "white",
	ThemeBorder:      "white",
	ThemeBackground:  "default",
	ThemeStatusInfo:  "white",
	ThemeStatusError: "red",

	ThemeHeader:      "white",
	ThemeHeaderState: "green",

	ThemeDevice:                  "white",
	ThemeDeviceConnected:         "white",
	ThemeDeviceProperty:          "grey",
	ThemeDevicePropertyConnected: "green",

	ThemeBrowserPlayer:  "aqua",
	ThemeBrowserFolder:  "white",
	ThemeBrowserMedia:   "grey",
	ThemeBrowserPending: "yellow",

	ThemePlayerProgress: "white",
	ThemePlayerVolume:   "mediumorchid",
}

// ParseThemeConfig parses the theme configuration.
func ParseThemeConfig(themeConfig map[string]string) error {
	for context, color := range themeConfig {
		if _, ok := ThemeConfig[Context(context)]; !ok {
			return fmt.Errorf("theme configuration has an unknown element %s", context)
		}

		if !validColor(color) {
			return fmt.Errorf("theme configuration is incorrect for %s (%s)", context, color)
		}

		switch color {
		case "black":
			color = "#000000"

		case "transparent":
			color = "default"
		}

		ThemeConfig[Context(context)] = color
	}

	return nil
}
