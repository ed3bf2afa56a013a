package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/skobkin/joylink/internal/app"
	"github.com/skobkin/joylink/internal/persistence"
)

func newHistoryCmd(global *globalFlags) *cobra.Command {
	var (
		limit int
		clearAll bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print persisted readings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, cfg, err := app.LoadConfig(global.options(nil))
			if err != nil {
				return err
			}
			logMgr, err := consoleLogging(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logMgr.Close() }()

			db, err := persistence.Open(cmd.Context(), paths.DBFile)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			out := cmd.OutOrStdout()
			if clearAll {
				if err := persistence.ClearDatabase(cmd.Context(), db); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(out, "history cleared")

				return nil
			}

			readings, err := persistence.NewReadingRepo(db).ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range readings {
				_, _ = fmt.Fprintf(out, "%s x=%g y=%g pressed=%t\n",
					r.ReceivedAt.Local().Format(time.DateTime), r.X, r.Y, r.Pressed)
			}

			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of readings to print")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "delete all stored readings and commands")

	return cmd
}
