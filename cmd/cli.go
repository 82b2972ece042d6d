package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/darkhz/avrctl/api/eventbus"
	"github.com/darkhz/avrctl/api/events"
	"github.com/darkhz/avrctl/audio"
	"github.com/darkhz/avrctl/avrcp/session"
	"github.com/darkhz/avrctl/logging"
	"github.com/darkhz/avrctl/metrics"
	"github.com/darkhz/avrctl/ui/app"
	"github.com/darkhz/avrctl/ui/app/views"
	"github.com/darkhz/avrctl/ui/config"
)

// These values are set at compile-time.
var (
	Version  = ""
	Revision = ""
)

// Run runs the commandline application.
func Run() error {
	return newApp().Run(os.Args)
}

// newApp returns a new commandline application.
func newApp() *cli.App {
	cli.VersionPrinter = func(cCtx *cli.Context) {
		fmt.Fprintf(cCtx.App.Writer, "%s (%s)\n", Version, Revision)
	}

	return &cli.App{
		Name:                   "avrctl",
		Usage:                  "AVRCP controller.",
		Version:                Version + " (" + Revision + ")",
		Description:            "Browse and control the media of Bluetooth audio devices from the terminal.",
		DefaultCommand:         "avrctl",
		Compiled:               time.Now(),
		EnableBashCompletion:   true,
		UseShortOptionHandling: true,
		Suggest:                true,
		Flags:                  globalFlags(),
		Commands: []*cli.Command{
			dumpCommand(),
		},
		Action: func(cliCtx *cli.Context) error {
			if cliCtx.Bool("list-devices") || cliCtx.Bool("generate") {
				return nil
			}

			cfg, err := loadConfig(cliCtx)
			if err != nil {
				return err
			}

			return runApp(cliCtx.Context, cfg)
		},
		ExitErrHandler: func(_ *cli.Context, err error) {
			if err == nil {
				return
			}

			printError(err)
		},
	}
}

// globalFlags returns the flags of the application. Flags carry no default
// values, so that values from the configuration file are not overridden.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "list-devices",
			Aliases: []string{"l"},
			Usage:   "List the devices known to the Bluetooth stack.",
			Action: func(cliCtx *cli.Context, _ bool) error {
				cfg, err := loadConfig(cliCtx)
				if err != nil {
					return err
				}

				stack, closeStack, err := newStack(cfg.Values)
				if err != nil {
					return err
				}
				defer closeStack()

				var sb strings.Builder

				sb.WriteString("List of devices:")
				for _, device := range stack.Devices() {
					sb.WriteString("\n- ")
					sb.WriteString(device.String())
				}

				fmt.Println(sb.String())

				return nil
			},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"f"},
			EnvVars: []string{"AVRCTL_CONFIG"},
			Usage:   "Specify a configuration file to use instead of avrctl.conf in the configuration directory.",
		},
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			EnvVars: []string{"AVRCTL_ADAPTER"},
			Usage:   "Specify an adapter to use. (For example, hci0)",
		},
		&cli.StringFlag{
			Name:    "connect-bdaddr",
			Aliases: []string{"t"},
			EnvVars: []string{"AVRCTL_CONNECT_BDADDR"},
			Usage:   "Specify device address to connect (For example, 'AA:BB:CC:DD:EE:FF')",
		},
		&cli.BoolFlag{
			Name:    "simulate",
			Aliases: []string{"s"},
			EnvVars: []string{"AVRCTL_SIMULATE"},
			Usage:   "Use a simulated Bluetooth stack with demo devices.",
		},
		&cli.DurationFlag{
			Name:    "fetch-timeout",
			EnvVars: []string{"AVRCTL_FETCH_TIMEOUT"},
			Usage:   "Specify how long a folder fetch may wait for a response. (Default: 10s)",
		},
		&cli.DurationFlag{
			Name:    "volume-echo-timeout",
			EnvVars: []string{"AVRCTL_VOLUME_ECHO_TIMEOUT"},
			Usage:   "Specify how long a remote volume change is expected to echo back. (Default: 1s)",
		},
		&cli.IntFlag{
			Name:    "volume-max",
			EnvVars: []string{"AVRCTL_VOLUME_MAX"},
			Usage:   "Specify the number of steps of the local volume control. (Default: 15)",
		},
		&cli.StringFlag{
			Name:    "log-level",
			EnvVars: []string{"AVRCTL_LOG_LEVEL"},
			Usage:   "Specify the log level. (debug, info, warn, error)",
		},
		&cli.StringFlag{
			Name:    "log-format",
			EnvVars: []string{"AVRCTL_LOG_FORMAT"},
			Usage:   "Specify the log format. (json, console)",
		},
		&cli.StringFlag{
			Name:    "log-file",
			EnvVars: []string{"AVRCTL_LOG_FILE"},
			Usage:   "Specify a file to write logs to.",
		},
		&cli.StringFlag{
			Name:    "metrics-address",
			EnvVars: []string{"AVRCTL_METRICS_ADDRESS"},
			Usage:   "Serve Prometheus metrics on the specified address. (For example, '127.0.0.1:9120')",
		},
		&cli.BoolFlag{
			Name:    "no-warning",
			Aliases: []string{"w"},
			EnvVars: []string{"AVRCTL_NO_WARNING"},
			Usage:   "Do not display warnings when the application has initialized.",
		},
		&cli.BoolFlag{
			Name:    "no-help-display",
			Aliases: []string{"i"},
			EnvVars: []string{"AVRCTL_NO_HELP_DISPLAY"},
			Usage:   "Do not display help keybindings in the application.",
		},
		&cli.BoolFlag{
			Name:    "confirm-on-quit",
			Aliases: []string{"c"},
			EnvVars: []string{"AVRCTL_CONFIRM_ON_QUIT"},
			Usage:   "Ask for confirmation before quitting the application.",
		},
		&cli.BoolFlag{
			Name:    "generate",
			Aliases: []string{"g"},
			Usage:   "Generate configuration.",
			Action: func(cliCtx *cli.Context, _ bool) error {
				k := koanf.New(".")

				cliCtx.Command.Name = "global"

				conf := config.NewConfig()
				if err := conf.Load(k, cliCtx); err != nil {
					return err
				}

				return conf.GenerateAndSave(k)
			},
		},
	}
}

// loadConfig loads and validates the configuration.
func loadConfig(cliCtx *cli.Context) (*config.Config, error) {
	// required for koanf to merge all global flags under the root namespace.
	cliCtx.Command.Name = "global"

	k, cfg := koanf.New("."), config.NewConfig()
	if err := cfg.Load(k, cliCtx); err != nil {
		return nil, err
	}

	if err := cfg.ValidateValues(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// initLogging initializes the logger. Without a log file, logs are discarded,
// since the terminal is occupied by the application.
func initLogging(values config.Values) error {
	if values.LogFile == "" {
		logging.Discard()
		return nil
	}

	return logging.Init(logging.Config{
		Level:      values.LogLevel,
		Format:     values.LogFormat,
		OutputPath: values.LogFile,
	})
}

// controller holds a running session registry along with its collaborators.
type controller struct {
	registry *session.Registry
	stack    stackBackend
	mixer    audio.Mixer
	bus      *eventbus.Bus

	closeStack func() error
}

// newController builds the stack, mixer, event bus and registry from the configuration.
func newController(cfg *config.Config) (*controller, error) {
	stack, closeStack, err := newStack(cfg.Values)
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateStackValues(stack.Devices()); err != nil {
		closeStack()
		return nil, err
	}

	mixer := newMixer(cfg.Values)
	bus := eventbus.New(events.SubscriberBuffer)

	registry := session.NewRegistry(session.Config{
		FetchTimeout:      cfg.Values.FetchTimeout,
		VolumeEchoTimeout: cfg.Values.VolumeEchoTimeout,
	}, stack, mixer, events.NewPublisher(bus))

	return &controller{
		registry:   registry,
		stack:      stack,
		mixer:      mixer,
		bus:        bus,
		closeStack: closeStack,
	}, nil
}

// start starts the registry and the routines which feed it, within the provided group.
func (c *controller) start(ctx context.Context, g *errgroup.Group, metricsAddress string) error {
	if err := c.registry.Start(ctx); err != nil {
		return err
	}

	g.Go(func() error {
		return c.stack.Listen(ctx, c.registry)
	})
	g.Go(func() error {
		return audio.Watch(ctx, c.mixer, c.registry.VolumeChanged)
	})

	if metricsAddress != "" {
		g.Go(func() error {
			return metrics.Serve(ctx, metricsAddress)
		})
	}

	return nil
}

// close stops the registry and releases every collaborator.
func (c *controller) close() {
	c.registry.Close()
	c.bus.Close()

	if err := c.mixer.Close(); err != nil {
		logging.L().Warn("cannot close mixer", zap.Error(err))
	}

	if err := c.closeStack(); err != nil {
		logging.L().Warn("cannot close stack", zap.Error(err))
	}
}

// runApp runs the terminal application until it is quit or interrupted.
func runApp(parent context.Context, cfg *config.Config) error {
	if err := initLogging(cfg.Values); err != nil {
		return err
	}
	defer logging.Sync()

	ctrl, err := newController(cfg)
	if err != nil {
		return err
	}
	defer ctrl.close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if err := ctrl.start(ctx, g, cfg.Values.MetricsAddress); err != nil {
		return err
	}

	logging.L().Info("controller started",
		zap.Bool("simulate", cfg.Values.Simulate),
		zap.Int("devices", len(ctrl.stack.Devices())),
	)

	g.Go(func() error {
		defer stop()

		return app.NewApplication().Start(ctx, views.Backend{
			Sessions: ctrl.registry,
			Devices:  ctrl.stack.Devices,
			Mixer:    ctrl.mixer,
			Bus:      ctrl.bus,
		}, cfg)
	})

	return g.Wait()
}
