package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skobkin/joylink/internal/app"
	"github.com/skobkin/joylink/internal/webapi"
)

func newRenderCmd(global *globalFlags) *cobra.Command {
	var (
		rawOverrides []string
		templateID   string
		endpoint     string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render an image template once and print the download URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides, err := webapi.ParseOverrides(rawOverrides)
			if err != nil {
				return fmt.Errorf("parse --set: %w", err)
			}
			_, cfg, err := app.LoadConfig(global.options(nil))
			if err != nil {
				return err
			}
			logMgr, err := consoleLogging(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logMgr.Close() }()

			if templateID = strings.TrimSpace(templateID); templateID != "" {
				cfg.Template.TemplateID = templateID
			}
			if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
				cfg.Template.Endpoint = endpoint
			}
			client := webapi.NewTemplateClient(
				webapi.NewClient(nil, logMgr.Logger("webapi")).WithUserAgent(app.UserAgent()),
				cfg.Template.Endpoint,
				cfg.Template.TemplateID,
				os.Getenv(cfg.Template.APIKeyEnv),
			)
			res, err := client.Render(cmd.Context(), overrides)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), res.DownloadURL)

			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&rawOverrides, "set", "s", nil, "layer override as layer=text or layer.field=value, repeatable")
	cmd.Flags().StringVar(&templateID, "template", "", "template id")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "render endpoint URL")

	return cmd
}
