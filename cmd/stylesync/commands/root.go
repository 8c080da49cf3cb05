// Package commands implements the stylesync command line tool
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/benvon/stylesync/internal/bootstrap"
	"github.com/benvon/stylesync/internal/config"
	"github.com/benvon/stylesync/internal/logger"
	"github.com/benvon/stylesync/internal/services/stylist"
	"github.com/spf13/cobra"
)

// DefaultSessionID is the wardrobe the CLI works on without --session
const DefaultSessionID = "local"

// OpenFunc builds the wardrobe service for one command run. The returned
// function releases it.
type OpenFunc func(ctx context.Context, app *App) (*stylist.Service, func(), error)

// App carries the flags shared by every command
type App struct {
	SessionID string
	Memory    bool
	Debug     bool
	JSON      bool

	open OpenFunc
}

// NewRootCmd creates the stylesync command tree
func NewRootCmd() *cobra.Command {
	return newRootCmd(openConfigured)
}

func newRootCmd(open OpenFunc) *cobra.Command {
	app := &App{open: open}

	rootCmd := &cobra.Command{
		Use:           "stylesync",
		Short:         "StyleSync wardrobe tool",
		Long:          "Analyze clothing photos into a wardrobe and ask for outfit recommendations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&app.SessionID, "session", "s", DefaultSessionID, "Wardrobe session to operate on")
	flags.BoolVar(&app.Memory, "memory", false, "Keep the wardrobe and images in memory for this run only")
	flags.BoolVar(&app.Debug, "debug", false, "Enable debug logging, including LLM request previews")
	flags.BoolVar(&app.JSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		newAddCmd(app),
		newListCmd(app),
		newRecommendCmd(app),
		newExportCmd(app),
		newImportCmd(app),
		newStatsCmd(app),
		newClearCmd(app),
		newTagCmd(app),
		newRemoveCmd(app),
	)
	return rootCmd
}

// run opens the service, calls fn and releases the service
func (a *App) run(cmd *cobra.Command, fn func(ctx context.Context, service *stylist.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	service, release, err := a.open(ctx, a)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, service)
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openConfigured builds the service from the environment configuration
func openConfigured(ctx context.Context, app *App) (*stylist.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if app.Memory {
		cfg.StorageBackend = config.StorageMemory
		cfg.ImageStore = config.ImageStoreMemory
	}

	zapLogger, err := logger.NewCLILogger(app.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	stack, err := bootstrap.Build(ctx, cfg, zapLogger, bootstrap.Options{
		OptionalAI: true,
		DebugMode:  app.Debug,
	})
	if err != nil {
		_ = logger.Sync(zapLogger)
		return nil, nil, err
	}
	release := func() {
		stack.Close(context.Background())
		_ = logger.Sync(zapLogger)
	}
	return stack.Service, release, nil
}
