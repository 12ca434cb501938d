package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notexe/visa-timeline/internal/timeline"
	"github.com/notexe/visa-timeline/internal/ui"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Manage dated events of a case",
}

var eventAddCmd = &cobra.Command{
	Use:   "add <case-id> <title>",
	Short: "Add a confirmed event and schedule its reminders",
	Args:  cobra.ExactArgs(2),
	RunE:  withApp(runEventAdd),
}

var eventEditCmd = &cobra.Command{
	Use:   "edit <event-id>",
	Short: "Replace the dates of an event and rebuild its reminders",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runEventEdit),
}

var eventCompleteCmd = &cobra.Command{
	Use:   "complete <event-id>",
	Short: "Mark an event completed",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runEventComplete),
}

var eventDeleteCmd = &cobra.Command{
	Use:   "delete <event-id>",
	Short: "Delete an event and cancel its reminders",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runEventDelete),
}

var eventListCmd = &cobra.Command{
	Use:   "list <case-id>",
	Short: "List the events of a case by date",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runEventList),
}

var eventShowCmd = &cobra.Command{
	Use:   "show <event-id>",
	Short: "Show an event, its reminders and their delivery status",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runEventShow),
}

var (
	eventType  string
	eventNotes string
	eventDates timeline.DateFields
)

func init() {
	rootCmd.AddCommand(eventCmd)
	eventCmd.AddCommand(eventAddCmd, eventEditCmd, eventCompleteCmd, eventDeleteCmd, eventListCmd, eventShowCmd)

	for _, c := range []*cobra.Command{eventAddCmd, eventEditCmd} {
		c.Flags().StringVar(&eventDates.DateISO, "date", "", "single date (YYYY-MM-DD)")
		c.Flags().StringVar(&eventDates.StartDateISO, "start", "", "range start (YYYY-MM-DD)")
		c.Flags().StringVar(&eventDates.EndDateISO, "end", "", "range end (YYYY-MM-DD)")
	}
	eventAddCmd.Flags().StringVar(&eventType, "type", string(timeline.EventOther), "event type")
	eventAddCmd.Flags().StringVar(&eventNotes, "notes", "", "free-form notes")
}

func runEventAdd(cmd *cobra.Command, args []string, a *app) error {
	caseID, title := args[0], args[1]
	if _, ok := a.store.Case(caseID); !ok {
		return fmt.Errorf("case %s not found", caseID)
	}
	typ, err := timeline.ParseEventType(eventType)
	if err != nil {
		return err
	}
	if err := eventDates.Validate(); err != nil {
		return err
	}

	id, err := a.store.AddManualEvent(cmd.Context(), timeline.ManualEvent{
		VisaID:     caseID,
		Title:      title,
		Type:       typ,
		DateFields: eventDates,
		Notes:      eventNotes,
	})
	if err != nil {
		return err
	}
	ev, _ := a.store.Event(id)
	fmt.Fprintln(cmd.OutOrStdout(), a.formatter.FormatEventLine(ev))
	return nil
}

func runEventEdit(cmd *cobra.Command, args []string, a *app) error {
	id := args[0]
	if _, ok := a.store.Event(id); !ok {
		return fmt.Errorf("event %s not found", id)
	}
	if err := eventDates.Validate(); err != nil {
		return err
	}
	if err := a.store.EditEventDate(cmd.Context(), id, eventDates); err != nil {
		return err
	}
	ev, _ := a.store.Event(id)
	fmt.Fprintln(cmd.OutOrStdout(), a.formatter.FormatEventLine(ev))
	return nil
}

func runEventComplete(cmd *cobra.Command, args []string, a *app) error {
	id := args[0]
	if _, ok := a.store.Event(id); !ok {
		return fmt.Errorf("event %s not found", id)
	}
	if err := a.store.MarkEventCompleted(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), a.formatter.FormatSuccess("Completed "+id))
	return nil
}

func runEventDelete(cmd *cobra.Command, args []string, a *app) error {
	id := args[0]
	if _, ok := a.store.Event(id); !ok {
		return fmt.Errorf("event %s not found", id)
	}
	if err := a.store.DeleteEvent(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), a.formatter.FormatSuccess("Deleted "+id))
	return nil
}

func runEventList(cmd *cobra.Command, args []string, a *app) error {
	out := cmd.OutOrStdout()
	events := a.store.EventsForCase(args[0])
	if len(events) == 0 {
		fmt.Fprintln(out, a.formatter.FormatDim("No events."))
		return nil
	}
	for _, ev := range events {
		fmt.Fprintln(out, a.formatter.FormatEventLine(ev))
	}
	return nil
}

func runEventShow(cmd *cobra.Command, args []string, a *app) error {
	out := cmd.OutOrStdout()
	ev, ok := a.store.Event(args[0])
	if !ok {
		return fmt.Errorf("event %s not found", args[0])
	}
	fmt.Fprintln(out, a.formatter.FormatEventLine(ev))
	for _, r := range ev.Reminders {
		var status string
		switch {
		case r.NotificationID == "":
			status = "not registered"
		case a.queue == nil:
			status = "registered"
		default:
			n, err := a.queue.Get(cmd.Context(), r.NotificationID)
			if err != nil {
				return err
			}
			status = n.Status
		}
		fmt.Fprintf(out, "  D-%-2d %s  %s  %s\n", r.OffsetDays, r.FireDateISO, ui.PriorityLabel(r.Priority), status)
	}
	return nil
}
