package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/notexe/visa-timeline/internal/metrics"
	"github.com/notexe/visa-timeline/internal/notify"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Deliver due reminders and keep event statuses current",
	Long: `Dispatch polls the notification queue every notify.interval seconds,
delivers due reminders to Telegram when credentials are configured (or to
the log otherwise) and refreshes overdue statuses after every pass.`,
	Args: cobra.NoArgs,
	RunE: withApp(runDispatch),
}

var (
	dispatchOnce bool
	dispatchList bool
)

func init() {
	rootCmd.AddCommand(dispatchCmd)

	dispatchCmd.Flags().BoolVar(&dispatchOnce, "once", false, "run a single pass and exit")
	dispatchCmd.Flags().BoolVar(&dispatchList, "list", false, "list pending notifications and exit")
}

func runDispatch(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	if a.queue == nil {
		return fmt.Errorf("notifications are disabled (set notify.enabled)")
	}

	if dispatchList {
		pending, err := a.queue.List(ctx, notify.StatusPending)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintln(out, a.formatter.FormatDim("No pending notifications."))
		}
		for _, n := range pending {
			fmt.Fprintf(out, "%s  %s  [%s] %s\n",
				a.formatter.FormatDim(n.ID), n.FireAt.In(a.store.Location()).Format("2006-01-02 15:04"), n.Priority, n.Body)
		}
		return nil
	}

	var sender notify.Sender = notify.LogSender{}
	if a.cfg.Notify.HasTelegram() {
		sender = notify.NewTelegramSender(a.cfg.Notify.Telegram.BotToken, a.cfg.Notify.Telegram.ChatID)
	}

	d := notify.NewDispatcher(a.queue, sender, a.cfg.Notify.PollInterval())
	d.OnTick = func(ctx context.Context) {
		if n, err := a.store.RefreshStatuses(ctx); err != nil {
			log.Printf("[notify] Error: refresh failed: %v", err)
		} else if n > 0 {
			log.Printf("[notify] %d event status(es) changed.", n)
		}
	}

	if dispatchOnce {
		n, err := d.Tick(ctx)
		if err != nil {
			return err
		}
		d.OnTick(ctx)
		fmt.Fprintf(out, "%d notification(s) delivered.\n", n)
		return nil
	}

	if a.cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, a.cfg.Metrics.Addr); err != nil {
				log.Printf("[metrics] Error: %v", err)
			}
		}()
	}
	return d.Run(ctx)
}
