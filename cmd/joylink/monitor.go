package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/skobkin/joylink/internal/app"
	"github.com/skobkin/joylink/internal/config"
)

type monitorFlags struct {
	listen   string
	persist  bool
	reaction string
	notify   bool
}

func (f monitorFlags) apply(cmd *cobra.Command, cfg *config.AppConfig) {
	if listen := strings.TrimSpace(f.listen); listen != "" {
		cfg.Server.Listen = listen
	}
	if cmd.Flags().Changed("persist") {
		cfg.Telemetry.PersistReadings = f.persist
	}
	if reaction := strings.TrimSpace(f.reaction); reaction != "" {
		cfg.Reaction.Mode = reaction
	}
	if cmd.Flags().Changed("notify") {
		cfg.Notifications.ConnectionStatus = f.notify
	}
}

func newMonitorCmd(global *globalFlags) *cobra.Command {
	var flags monitorFlags
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Stream joystick readings until the device disconnects",
		Long:  "monitor opens the link, logs every reading, runs the configured LED reaction and the optional HTTP API, and exits when the stream ends, fails, or the process is interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := app.Initialize(cmd.Context(), global.options(func(cfg *config.AppConfig) {
				flags.apply(cmd, cfg)
			}))
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			return rt.Monitor()
		},
	}
	cmd.Flags().StringVar(&flags.listen, "listen", "", "serve the status API and metrics on this address")
	cmd.Flags().BoolVar(&flags.persist, "persist", false, "store readings and commands in the local database")
	cmd.Flags().StringVar(&flags.reaction, "reaction", "", "LED reaction: none, color_on_press, brightness_from_x")
	cmd.Flags().BoolVar(&flags.notify, "notify", false, "show desktop notifications on connection changes")

	return cmd
}
