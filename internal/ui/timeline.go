package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/notexe/visa-timeline/internal/timeline"
)

// CaseView is everything shown for one case.
type CaseView struct {
	Case           timeline.VisaCase
	Events         []timeline.VisaEvent
	CompletedSteps []string
}

// TimelineMarkdown renders cases, their events and the reminder schedule as
// markdown.
func TimelineMarkdown(views []CaseView, pending int, silent bool) string {
	var b strings.Builder
	b.WriteString("# Visa timeline\n\n")

	if len(views) == 0 {
		b.WriteString("_No cases yet._\n")
	}

	for _, v := range views {
		fmt.Fprintf(&b, "## %s · %s\n\n", v.Case.Country, v.Case.VisaType)
		var meta []string
		if v.Case.Stage != "" {
			meta = append(meta, "stage: **"+string(v.Case.Stage)+"**")
		}
		if v.Case.Objective != "" {
			meta = append(meta, "objective: "+v.Case.Objective)
		}
		if len(v.CompletedSteps) > 0 {
			meta = append(meta, fmt.Sprintf("steps done: %d", len(v.CompletedSteps)))
		}
		meta = append(meta, "`"+v.Case.ID+"`")
		b.WriteString(strings.Join(meta, " · ") + "\n\n")

		if len(v.Events) == 0 {
			b.WriteString("_No events._\n\n")
			continue
		}

		b.WriteString("| Date | Event | Type | Status | Next reminders |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, ev := range v.Events {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				DateLabel(ev.DateFields),
				escapeCell(ev.Title),
				ev.Type,
				ev.Status,
				reminderSummary(ev.Reminders),
			)
		}
		b.WriteString("\n")
	}

	mode := "off"
	if silent {
		mode = "on"
	}
	fmt.Fprintf(&b, "> %d pending detection(s) · silent mode %s\n", pending, mode)
	return b.String()
}

func reminderSummary(reminders []timeline.Reminder) string {
	var parts []string
	for _, r := range reminders {
		if r.NotificationID == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("D-%d %s", r.OffsetDays, r.FireDateISO))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// RenderMarkdown converts markdown for the terminal. Without colors the
// notty style keeps the output free of escape codes.
func RenderMarkdown(md string, colored bool) string {
	style := glamour.WithStandardStyle("notty")
	if colored {
		style = glamour.WithAutoStyle()
	}

	renderer, err := glamour.NewTermRenderer(
		style,
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return md
	}

	rendered, err := renderer.Render(md)
	if err != nil {
		return md
	}

	return strings.TrimSpace(rendered)
}
