package repl

import (
	"fmt"

	"github.com/notexe/visa-timeline/internal/timeline"
)

func (r *REPL) displayDetection(n, total int, d timeline.PendingDetection) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.formatter.FormatDim(fmt.Sprintf("(%d/%d)", n, total)))
	fmt.Fprintln(r.out, r.formatter.FormatDetection(d))
}

func (r *REPL) displaySummary(s Summary) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.formatter.FormatHeader(fmt.Sprintf(
		"Saved %d, edited %d, ignored %d, skipped %d.", s.Saved, s.Edited, s.Ignored, s.Skipped)))
}

func (r *REPL) displayInfo(msg string) {
	fmt.Fprintln(r.out, r.formatter.FormatInfo(msg))
}

func (r *REPL) displaySuccess(msg string) {
	fmt.Fprintln(r.out, r.formatter.FormatSuccess(msg))
}

func (r *REPL) displayWarning(msg string) {
	fmt.Fprintln(r.out, r.formatter.FormatWarning(msg))
}
