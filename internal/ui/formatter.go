package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/notexe/visa-timeline/internal/timeline"
)

var (
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")). // Coral red
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")) // Warm yellow

	StatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")). // Medium gray
			Italic(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81")).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("114")). // Green
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("222")). // Yellow
			Bold(true)

	AccentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("147")) // Light purple

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")). // Soft blue border
			Padding(0, 1)
)

type Formatter struct {
	colored bool
}

func NewFormatter(colored bool) *Formatter {
	return &Formatter{colored: colored}
}

// Colored reports whether output is styled.
func (f *Formatter) Colored() bool {
	return f.colored
}

func (f *Formatter) render(style lipgloss.Style, s string) string {
	if f.colored {
		return style.Render(s)
	}
	return s
}

func (f *Formatter) FormatError(err error) string {
	return f.render(ErrorStyle, "Error: ") + err.Error()
}

func (f *Formatter) FormatInfo(info string) string {
	return f.render(InfoStyle, info)
}

func (f *Formatter) FormatSuccess(msg string) string {
	return f.render(SuccessStyle, msg)
}

func (f *Formatter) FormatWarning(msg string) string {
	return f.render(WarningStyle, msg)
}

func (f *Formatter) FormatHeader(msg string) string {
	return f.render(HeaderStyle, msg)
}

func (f *Formatter) FormatDim(msg string) string {
	return f.render(DimStyle, msg)
}

// FormatEventStatus renders an event status as a short badge.
func (f *Formatter) FormatEventStatus(s timeline.Status) string {
	label := strings.ToUpper(string(s))
	switch s {
	case timeline.StatusOverdue:
		return f.render(ErrorStyle, label)
	case timeline.StatusCompleted:
		return f.render(SuccessStyle, label)
	default:
		return f.render(InfoStyle, label)
	}
}

// PriorityLabel is the marker shown next to a reminder.
func PriorityLabel(p timeline.Priority) string {
	switch p {
	case timeline.PriorityHigh:
		return "🔴 HIGH"
	case timeline.PriorityMedium:
		return "🟡 MEDIUM"
	default:
		return "🟢 LOW"
	}
}

// DateLabel renders single dates and ranges.
func DateLabel(d timeline.DateFields) string {
	switch {
	case d.DateISO != "":
		return d.DateISO
	case d.StartDateISO != "" && d.EndDateISO != "":
		return d.StartDateISO + " → " + d.EndDateISO
	case d.StartDateISO != "":
		return d.StartDateISO + " →"
	default:
		return "no date"
	}
}

// FormatEventLine is the one-line summary used by listings.
func (f *Formatter) FormatEventLine(ev timeline.VisaEvent) string {
	registered := 0
	for _, r := range ev.Reminders {
		if r.NotificationID != "" {
			registered++
		}
	}
	return fmt.Sprintf("%s  %s  %s  %s %s",
		f.FormatDim(ev.ID),
		DateLabel(ev.DateFields),
		f.FormatEventStatus(ev.Status),
		ev.Title,
		f.FormatDim(fmt.Sprintf("(%s, %d/%d reminders)", ev.Type, registered, len(ev.Reminders))),
	)
}

// FormatDetection shows a pending detection for review.
func (f *Formatter) FormatDetection(d timeline.PendingDetection) string {
	lines := []string{
		f.render(AccentStyle, d.Title),
		"Date:   " + DateLabel(d.DateFields),
		"Type:   " + string(d.Type),
	}
	if d.Confidence > 0 {
		lines = append(lines, fmt.Sprintf("Score:  %.2f", d.Confidence))
	}
	if d.SourceURL != "" {
		lines = append(lines, "Source: "+d.SourceURL)
	}
	if s := strings.Join(strings.Fields(d.Snippet), " "); s != "" {
		lines = append(lines, f.FormatDim("“"+s+"”"))
	}
	return f.FormatBox(d.ID, strings.Join(lines, "\n"))
}

// FormatBox wraps content in a styled box
func (f *Formatter) FormatBox(title, content string) string {
	if f.colored {
		return HeaderStyle.Render(title) + "\n" + BoxStyle.Render(content)
	}
	return title + "\n" + content
}

// FormatReviewPrompt returns the action prompt of the review loop.
func (f *Formatter) FormatReviewPrompt() string {
	if f.colored {
		return AccentStyle.Render("[s]ave [e]dit [i]gnore s[k]ip [q]uit") + SuccessStyle.Render(" > ")
	}
	return "[s]ave [e]dit [i]gnore s[k]ip [q]uit > "
}
