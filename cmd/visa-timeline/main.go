// Command visa-timeline manages visa cases, their dated events and the
// reminders scheduled for them.
//
// Usage:
//
//	visa-timeline case upsert --country france --visa-type tourist
//	visa-timeline event add <case-id> "Biometrics" --type biometrics --date 2026-11-02
//	visa-timeline scan page.html --country france --visa-type tourist
//	visa-timeline review
//	visa-timeline dispatch
//
// Configuration is read from ~/.visa-timeline/config.yaml and overridden by
// VISA_TIMELINE_<SECTION>__<KEY> environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/notexe/visa-timeline/internal/config"
	"github.com/notexe/visa-timeline/internal/notify"
	"github.com/notexe/visa-timeline/internal/storage"
	"github.com/notexe/visa-timeline/internal/timeline"
	"github.com/notexe/visa-timeline/internal/ui"
)

var (
	configPath string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:           "visa-timeline",
	Short:         "Track visa procedures, dated events and their reminders",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.GetDefaultConfigPath(), "config file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.NewFormatter(false).FormatError(err))
		return 1
	}
	return 0
}

// app is the wiring shared by every command.
type app struct {
	cfg       *config.Config
	backend   storage.Backend
	queue     *notify.Queue
	store     *timeline.Store
	formatter *ui.Formatter
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.Timeline.Location()
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Driver == config.DriverSQLite || cfg.Storage.Driver == config.DriverDiskv {
		if err := config.EnsureDir(cfg.Storage.Path); err != nil {
			return nil, err
		}
	}
	backend, err := storage.Open(ctx, storage.Options{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
		DSN:    cfg.Storage.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a := &app{
		cfg:       cfg,
		backend:   backend,
		formatter: ui.NewFormatter(cfg.UI.ColoredOutput && !noColor),
	}

	opts := []timeline.Option{
		timeline.WithLocation(loc),
		timeline.WithReminderHour(cfg.Timeline.ReminderHour),
		timeline.WithAppName(cfg.Timeline.AppName),
		timeline.WithStorageKey(cfg.Storage.Key),
	}
	if cfg.Notify.Enabled {
		if err := config.EnsureDir(cfg.Notify.DBPath); err != nil {
			a.Close()
			return nil, err
		}
		queue, err := notify.NewQueue(cfg.Notify.DBPath)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open notification queue: %w", err)
		}
		a.queue = queue
		opts = append(opts, timeline.WithNotifier(queue))
	}

	store, err := timeline.Open(ctx, backend, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	return a, nil
}

func (a *app) Close() {
	if a.queue != nil {
		a.queue.Close()
	}
	a.backend.Close()
}

// withApp opens the app for the duration of one command.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}
