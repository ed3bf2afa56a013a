package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skobkin/joylink/internal/app"
	"github.com/skobkin/joylink/internal/webapi"
)

func newCompleteCmd(global *globalFlags) *cobra.Command {
	var endpoint string
	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Run one text completion request",
		Long:  "complete posts the prompt to the configured completion endpoint and prints the first choice. The API key is read from the environment variable named by completion.api_key_env.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := app.LoadConfig(global.options(nil))
			if err != nil {
				return err
			}
			logMgr, err := consoleLogging(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logMgr.Close() }()

			if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
				cfg.Completion.Endpoint = endpoint
			}
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				prompt = strings.TrimSpace(cfg.Completion.Prompt)
			}
			if prompt == "" {
				return errors.New("prompt is empty: pass it as an argument or set completion.prompt")
			}

			client := webapi.NewCompletionClient(
				webapi.NewClient(nil, logMgr.Logger("webapi")).WithUserAgent(app.UserAgent()),
				cfg.Completion.Endpoint,
				os.Getenv(cfg.Completion.APIKeyEnv),
			)
			text, err := client.Complete(cmd.Context(), prompt)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(text))

			return nil
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "completion endpoint URL")

	return cmd
}
