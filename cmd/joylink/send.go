package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skobkin/joylink/internal/app"
	"github.com/skobkin/joylink/internal/config"
	"github.com/skobkin/joylink/internal/domain"
)

type sendFlags struct {
	red, green, blue, brightness int
	settle                       time.Duration
}

// command builds an LED command from the flags that were set.
func (f sendFlags) command(cmd *cobra.Command) (domain.LEDCommand, error) {
	var out domain.LEDCommand
	set := func(name string, v int, dst **int) {
		if cmd.Flags().Changed(name) {
			value := v
			*dst = &value
		}
	}
	set("red", f.red, &out.Red)
	set("green", f.green, &out.Green)
	set("blue", f.blue, &out.Blue)
	set("brightness", f.brightness, &out.Brightness)

	if out.IsEmpty() {
		return domain.LEDCommand{}, errors.New("set at least one of --red, --green, --blue, --brightness")
	}
	if err := out.Validate(); err != nil {
		return domain.LEDCommand{}, err
	}

	return out, nil
}

func newSendCmd(global *globalFlags) *cobra.Command {
	var flags sendFlags
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one LED command and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			led, err := flags.command(cmd)
			if err != nil {
				return err
			}

			rt, err := app.Initialize(cmd.Context(), global.options(func(cfg *config.AppConfig) {
				if cmd.Flags().Changed("settle") {
					cfg.Connection.SettleMS = int(flags.settle.Milliseconds())
				}
			}))
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			sent, err := rt.SendOnce(led)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), sent.Payload)

			return nil
		},
	}
	cmd.Flags().IntVar(&flags.red, "red", 0, "red channel 0..255")
	cmd.Flags().IntVar(&flags.green, "green", 0, "green channel 0..255")
	cmd.Flags().IntVar(&flags.blue, "blue", 0, "blue channel 0..255")
	cmd.Flags().IntVar(&flags.brightness, "brightness", 0, "brightness 0..255")
	cmd.Flags().DurationVar(&flags.settle, "settle", 0, "wait this long after opening a serial port before sending (default from config)")

	return cmd
}
