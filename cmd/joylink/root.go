package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/skobkin/joylink/internal/app"
	"github.com/skobkin/joylink/internal/config"
	"github.com/skobkin/joylink/internal/logging"
)

// globalFlags override the config file for a single invocation.
type globalFlags struct {
	configFile  string
	port        string
	baud        int
	host        string
	tcpPort     int
	logLevel    string
	logLevels   map[string]string
	onMalformed string
}

func (f *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configFile, "config", "c", "", "config file (.json, .toml, .yaml)")
	fs.StringVarP(&f.port, "port", "p", "", "serial port, selects the serial connector")
	fs.IntVarP(&f.baud, "baud", "b", 0, "serial baud rate")
	fs.StringVar(&f.host, "host", "", "TCP serial bridge host, selects the ip connector")
	fs.IntVar(&f.tcpPort, "tcp-port", 0, "TCP serial bridge port")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringToStringVar(&f.logLevels, "log-component", nil, "per-component log level, e.g. link=debug,bus=warn")
	fs.StringVar(&f.onMalformed, "on-malformed", "", "malformed line policy: fail or skip")
}

func (f *globalFlags) apply(cfg *config.AppConfig) {
	if port := strings.TrimSpace(f.port); port != "" {
		cfg.Connection.Connector = config.ConnectorSerial
		cfg.Connection.SerialPort = port
	}
	if f.baud > 0 {
		cfg.Connection.SerialBaud = f.baud
	}
	if host := strings.TrimSpace(f.host); host != "" {
		cfg.Connection.Connector = config.ConnectorIP
		cfg.Connection.Host = host
	}
	if f.tcpPort > 0 {
		cfg.Connection.Port = f.tcpPort
	}
	if level := strings.TrimSpace(f.logLevel); level != "" {
		cfg.Logging.Level = level
	}
	for component, level := range f.logLevels {
		if cfg.Logging.Components == nil {
			cfg.Logging.Components = make(map[string]string, len(f.logLevels))
		}
		cfg.Logging.Components[component] = level
	}
	if policy := strings.TrimSpace(f.onMalformed); policy != "" {
		cfg.Telemetry.OnMalformed = policy
	}
}

func (f *globalFlags) options(extra func(cfg *config.AppConfig)) app.Options {
	return app.Options{
		ConfigFile: f.configFile,
		Override: func(cfg *config.AppConfig) {
			f.apply(cfg)
			if extra != nil {
				extra(cfg)
			}
		},
	}
}

// consoleLogging configures stdout-only logging for commands that run without
// the full runtime.
func consoleLogging(cfg config.AppConfig) (*logging.Manager, error) {
	logCfg := cfg.Logging
	logCfg.LogToFile = false
	mgr := logging.NewManager()
	if err := mgr.Configure(logCfg, ""); err != nil {
		_ = mgr.Close()

		return nil, err
	}

	return mgr, nil
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           app.Name,
		Short:         "Talk line-framed JSON to a joystick and LED peripheral",
		Long:          "joylink reads joystick readings from a serial peripheral as newline-delimited JSON and sends LED commands back.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(root.PersistentFlags())

	root.AddCommand(
		newPortsCmd(),
		newMonitorCmd(flags),
		newSendCmd(flags),
		newCompleteCmd(flags),
		newRenderCmd(flags),
		newHistoryCmd(flags),
		newVersionCmd(),
	)

	return root
}
