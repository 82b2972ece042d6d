package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/darkhz/avrctl/api/bluetooth"
	"github.com/knadh/koanf/parsers/hjson"
	"github.com/knadh/koanf/providers/cliflagv2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"
)

const (
	appName    = "avrctl"
	configFile = appName + ".conf"
)

// transientKeys are flags which only apply to a single invocation,
// and are never written to the configuration file.
var transientKeys = []string{"config", "generate", "list-devices"}

// Config describes the configuration for the app.
type Config struct {
	path string

	Values Values
}

// NewConfig returns a new configuration.
func NewConfig() *Config {
	return &Config{}
}

// Path returns the path of the configuration file.
// It is empty until the configuration is loaded.
func (c *Config) Path() string {
	return c.path
}

// Load loads the configuration from the configuration file, if it exists,
// and then from the command-line flags.
func (c *Config) Load(k *koanf.Koanf, cliCtx *cli.Context) error {
	path, err := resolvePath(cliCtx.String("config"))
	if err != nil {
		return err
	}

	c.path = path

	switch _, err := os.Stat(path); {
	case err == nil:
		if err := k.Load(file.Provider(path), hjson.Parser()); err != nil {
			return fmt.Errorf("cannot parse %s: %w", path, err)
		}

	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	if err := k.Load(cliflagv2.Provider(cliCtx, "."), nil); err != nil {
		return err
	}

	return k.UnmarshalWithConf("", &c.Values, koanf.UnmarshalConf{Tag: "koanf"})
}

// ValidateValues validates the configuration values.
func (c *Config) ValidateValues() error {
	return c.Values.validateValues()
}

// ValidateStackValues validates all configuration values that require the
// devices known to the Bluetooth stack.
func (c *Config) ValidateStackValues(devices []bluetooth.MacAddress) error {
	return c.Values.validateStackValues(devices)
}

// GenerateAndSave writes the loaded configuration to the configuration file,
// creating its directory if required. Existing values in the file are kept,
// unless they are overridden by a flag.
func (c *Config) GenerateAndSave(currentCfg *koanf.Koanf) error {
	if c.path == "" {
		return errors.New("the configuration is not loaded")
	}

	for _, key := range transientKeys {
		currentCfg.Delete(key)
	}

	data, err := hjson.Parser().Marshal(currentCfg.All())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("cannot create the configuration directory: %w", err)
	}

	return os.WriteFile(c.path, data, 0o644)
}

// resolvePath returns the configuration file to use. An explicit path is used
// as is. Otherwise the first configuration directory which already holds a
// configuration file is chosen, falling back to the preferred directory.
func resolvePath(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}

	dirs, err := configDirs()
	if err != nil {
		return "", err
	}

	for _, dir := range dirs {
		path := filepath.Join(dir, configFile)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return filepath.Join(dirs[0], configFile), nil
}

// configDirs returns the candidate configuration directories, in order of preference:
// $XDG_CONFIG_HOME/avrctl, ~/.config/avrctl and ~/.avrctl.
func configDirs() ([]string, error) {
	homedir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dirs := make([]string, 0, 3)
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, appName))
	}

	return append(dirs,
		filepath.Join(homedir, ".config", appName),
		filepath.Join(homedir, "."+appName),
	), nil
}
