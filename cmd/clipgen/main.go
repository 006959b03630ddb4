package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"episode-studio/internal/app"
	"episode-studio/internal/config"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "clipgen",
		Short: "Build and dispatch episode clip generation requests",
		Long: `clipgen turns clip descriptions into provider payloads.

Commands:
  clipgen build    Build one payload, optionally submitting it
  clipgen batch    Build and submit a list of clips
  clipgen models   Show the model catalog
  clipgen assets   Manage the asset library`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	root.AddCommand(newBuildCmd(), newBatchCmd(), newModelsCmd(), newAssetsCmd())
	return root
}

// loadApp reads the environment and wires services. Logs go to stderr so
// stdout stays machine readable.
func loadApp(cmd *cobra.Command) (*app.App, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, fmt.Errorf("load config: %w", err)
	}
	a, err := app.New(cfg, app.NewLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return nil, config.Config{}, err
	}
	return a, cfg, nil
}
