package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notexe/visa-timeline/internal/repl"
	"github.com/notexe/visa-timeline/internal/timeline"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Inspect and resolve detections awaiting confirmation",
}

var pendingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending detections, newest first",
	Args:  cobra.NoArgs,
	RunE:  withApp(runPendingList),
}

var pendingResolveCmd = &cobra.Command{
	Use:   "resolve <detection-id> <save|edit|ignore>",
	Short: "Save, edit or ignore a pending detection",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runPendingResolve),
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Walk the pending detections interactively",
	Args:  cobra.NoArgs,
	RunE:  withApp(runReview),
}

var resolveDates timeline.DateFields

func init() {
	rootCmd.AddCommand(pendingCmd, reviewCmd)
	pendingCmd.AddCommand(pendingListCmd, pendingResolveCmd)

	pendingResolveCmd.Flags().StringVar(&resolveDates.DateISO, "date", "", "override date for edit (YYYY-MM-DD)")
	pendingResolveCmd.Flags().StringVar(&resolveDates.StartDateISO, "start", "", "override range start for edit")
	pendingResolveCmd.Flags().StringVar(&resolveDates.EndDateISO, "end", "", "override range end for edit")
}

func runPendingList(cmd *cobra.Command, _ []string, a *app) error {
	out := cmd.OutOrStdout()
	pending := a.store.Pending()
	if len(pending) == 0 {
		fmt.Fprintln(out, a.formatter.FormatDim("No pending detections."))
		return nil
	}
	for _, d := range pending {
		fmt.Fprintln(out, a.formatter.FormatDetection(d))
		fmt.Fprintln(out)
	}
	return nil
}

func runPendingResolve(cmd *cobra.Command, args []string, a *app) error {
	id := args[0]
	action, err := timeline.ParseAction(args[1])
	if err != nil {
		return err
	}
	if _, ok := a.store.PendingDetection(id); !ok {
		return fmt.Errorf("detection %s not found", id)
	}

	var edited *timeline.DateFields
	if action == timeline.ActionEdit {
		if err := resolveDates.Validate(); err != nil {
			return err
		}
		edited = &resolveDates
	}
	if err := a.store.ResolvePendingDetection(cmd.Context(), id, action, edited); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), a.formatter.FormatSuccess(fmt.Sprintf("Detection %s resolved with %s.", id, action)))
	return nil
}

func runReview(cmd *cobra.Command, _ []string, a *app) error {
	r, err := repl.NewREPL(a.store, a.formatter.Colored())
	if err != nil {
		return err
	}
	_, err = r.Start(cmd.Context())
	return err
}
