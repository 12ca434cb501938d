package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notexe/visa-timeline/internal/timeline"
	"github.com/notexe/visa-timeline/internal/ui"
)

var showCmd = &cobra.Command{
	Use:   "show [case-id]",
	Short: "Render the timeline of every case, or of one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  withApp(runShow),
}

var showMarkdown bool

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Track procedure checklist steps",
}

var stepToggleCmd = &cobra.Command{
	Use:   "toggle <case-id> <step-id>",
	Short: "Mark a step done, or undo it",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runStepToggle),
}

var silentCmd = &cobra.Command{
	Use:       "silent <on|off>",
	Short:     "Switch silent mode for new detections",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE:      withApp(runSilent),
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Recompute upcoming and overdue statuses for today",
	Args:  cobra.NoArgs,
	RunE:  withApp(runRefresh),
}

func init() {
	rootCmd.AddCommand(showCmd, stepCmd, silentCmd, refreshCmd)
	stepCmd.AddCommand(stepToggleCmd)

	showCmd.Flags().BoolVar(&showMarkdown, "markdown", false, "print raw markdown")
}

func runShow(cmd *cobra.Command, args []string, a *app) error {
	cases := a.store.Cases()
	if len(args) == 1 {
		c, ok := a.store.Case(args[0])
		if !ok {
			return fmt.Errorf("case %s not found", args[0])
		}
		cases = []timeline.VisaCase{c}
	}

	views := make([]ui.CaseView, 0, len(cases))
	for _, c := range cases {
		views = append(views, ui.CaseView{
			Case:           c,
			Events:         a.store.EventsForCase(c.ID),
			CompletedSteps: a.store.CompletedSteps(c.ID),
		})
	}

	md := ui.TimelineMarkdown(views, len(a.store.Pending()), a.store.SilentMode())
	if showMarkdown {
		fmt.Fprint(cmd.OutOrStdout(), md)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMarkdown(md, a.formatter.Colored()))
	return nil
}

func runStepToggle(cmd *cobra.Command, args []string, a *app) error {
	caseID, stepID := args[0], args[1]
	if _, ok := a.store.Case(caseID); !ok {
		return fmt.Errorf("case %s not found", caseID)
	}
	if err := a.store.ToggleProcedureStep(cmd.Context(), caseID, stepID); err != nil {
		return err
	}
	steps := a.store.CompletedSteps(caseID)
	if len(steps) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), a.formatter.FormatDim("No steps done."))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Done: "+strings.Join(steps, ", "))
	return nil
}

func runSilent(cmd *cobra.Command, args []string, a *app) error {
	enabled := args[0] == "on"
	if err := a.store.SetSilentMode(cmd.Context(), enabled); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), a.formatter.FormatInfo("Silent mode "+args[0]+"."))
	return nil
}

func runRefresh(cmd *cobra.Command, _ []string, a *app) error {
	n, err := a.store.RefreshStatuses(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d status(es) changed.\n", n)
	return nil
}
