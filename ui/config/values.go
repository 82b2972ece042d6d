package config

import (
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/darkhz/avrctl/ui/keybindings"
	"github.com/darkhz/avrctl/ui/theme"
)

// The default values of the session timeouts and the local volume.
const (
	DefaultFetchTimeout      = 10 * time.Second
	DefaultVolumeEchoTimeout = 1 * time.Second
	DefaultVolumeMax         = 15
)

// Values describes the possible configuration values that a user can
// modify and supply to the application.
type Values struct {
	Adapter           string            `koanf:"adapter"`
	ConnectAddr       string            `koanf:"connect-bdaddr"`
	Simulate          bool              `koanf:"simulate"`
	FetchTimeout      time.Duration     `koanf:"fetch-timeout"`
	VolumeEchoTimeout time.Duration     `koanf:"volume-echo-timeout"`
	VolumeMax         int               `koanf:"volume-max"`
	LogLevel          string            `koanf:"log-level"`
	LogFormat         string            `koanf:"log-format"`
	LogFile           string            `koanf:"log-file"`
	MetricsAddress    string            `koanf:"metrics-address"`
	NoWarning         bool              `koanf:"no-warning"`
	NoHelpDisplay     bool              `koanf:"no-help-display"`
	ConfirmOnQuit     bool              `koanf:"confirm-on-quit"`
	Theme             map[string]string `koanf:"theme"`
	Keybindings       map[string]string `koanf:"keybindings"`

	AutoConnectDeviceAddr bluetooth.MacAddress
	Kb                    *keybindings.Keybindings
}

// validateValues validates all configuration values.
func (v *Values) validateValues() error {
	for _, validate := range []func() error{
		v.validateKeybindings,
		v.validateConnectBDAddr,
		v.validateTimeouts,
		v.validateVolumeMax,
		v.validateLogging,
		v.validateMetricsAddress,
		v.validateTheme,
	} {
		if err := validate(); err != nil {
			return err
		}
	}

	return nil
}

// validateStackValues validates all configuration values that require the devices of the stack.
func (v *Values) validateStackValues(devices []bluetooth.MacAddress) error {
	for _, validate := range []func([]bluetooth.MacAddress) error{
		v.validateDeviceExists,
	} {
		if err := validate(devices); err != nil {
			return err
		}
	}

	return nil
}

// validateDeviceExists validates if a device specified by the user is known to the stack.
func (v *Values) validateDeviceExists(devices []bluetooth.MacAddress) error {
	if v.AutoConnectDeviceAddr.IsNil() || slices.Contains(devices, v.AutoConnectDeviceAddr) {
		return nil
	}

	where := "the simulated stack"
	if !v.Simulate {
		where = "any adapter"
		if v.Adapter != "" {
			where = "adapter " + v.Adapter
		}
	}

	return fmt.Errorf("no device with address %s found on %s", v.AutoConnectDeviceAddr.String(), where)
}

// validateKeybindings validates the keybindings.
func (v *Values) validateKeybindings() error {
	v.Kb = keybindings.NewKeybindings()
	if len(v.Keybindings) == 0 {
		return nil
	}

	return v.Kb.Validate(v.Keybindings)
}

// validateConnectBDAddr validates the device address that has to be automatically connected to on application
// launch.
func (v *Values) validateConnectBDAddr() error {
	if v.ConnectAddr == "" {
		return nil
	}

	deviceAddr, err := bluetooth.ParseMAC(v.ConnectAddr)
	if err != nil {
		return fmt.Errorf("invalid address format: %s", v.ConnectAddr)
	}

	v.AutoConnectDeviceAddr = deviceAddr

	return nil
}

// validateTimeouts validates the session timeouts, and applies the defaults to unset ones.
func (v *Values) validateTimeouts() error {
	for _, timeout := range []struct {
		name     string
		value    *time.Duration
		fallback time.Duration
	}{
		{"fetch-timeout", &v.FetchTimeout, DefaultFetchTimeout},
		{"volume-echo-timeout", &v.VolumeEchoTimeout, DefaultVolumeEchoTimeout},
	} {
		switch {
		case *timeout.value == 0:
			*timeout.value = timeout.fallback

		case *timeout.value < 0:
			return fmt.Errorf("%s: the timeout cannot be negative (%s)", timeout.name, timeout.value.String())

		case *timeout.value < 10*time.Millisecond:
			return fmt.Errorf("%s: the timeout is too short (%s)", timeout.name, timeout.value.String())
		}
	}

	return nil
}

// validateVolumeMax validates the number of local volume steps.
func (v *Values) validateVolumeMax() error {
	switch {
	case v.VolumeMax == 0:
		v.VolumeMax = DefaultVolumeMax

	case v.VolumeMax < 1 || v.VolumeMax > 127:
		return fmt.Errorf("volume-max: the number of volume steps must be between 1 and 127 (%d)", v.VolumeMax)
	}

	return nil
}

// validateLogging validates the log level and format.
func (v *Values) validateLogging() error {
	levels := []string{"debug", "info", "warn", "error"}
	formats := []string{"json", "console"}

	if v.LogLevel == "" {
		v.LogLevel = "info"
	}
	if v.LogFormat == "" {
		v.LogFormat = "json"
	}

	if !slices.Contains(levels, v.LogLevel) {
		return fmt.Errorf(
			"provided log level '%s' is incorrect.\nValid levels are '%s'",
			v.LogLevel, strings.Join(levels, ", "),
		)
	}

	if !slices.Contains(formats, v.LogFormat) {
		return fmt.Errorf(
			"provided log format '%s' is incorrect.\nValid formats are '%s'",
			v.LogFormat, strings.Join(formats, ", "),
		)
	}

	return nil
}

// validateMetricsAddress validates the listen address of the metrics server.
func (v *Values) validateMetricsAddress() error {
	if v.MetricsAddress == "" {
		return nil
	}

	if _, _, err := net.SplitHostPort(v.MetricsAddress); err != nil {
		return fmt.Errorf("%s: invalid metrics address: %w", v.MetricsAddress, err)
	}

	return nil
}

// validateTheme validates the theme configuration.
func (v *Values) validateTheme() error {
	if len(v.Theme) == 0 {
		return nil
	}

	return theme.ParseThemeConfig(v.Theme)
}
