// Package repl walks the pending detection queue interactively so each
// candidate is saved, edited or ignored by the user.
package repl

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/notexe/visa-timeline/internal/timeline"
	"github.com/notexe/visa-timeline/internal/ui"
)

// Prompter is the line editor the reviewer reads from.
type Prompter interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// Summary counts the decisions of one review session.
type Summary struct {
	Saved   int
	Edited  int
	Ignored int
	Skipped int
}

type REPL struct {
	store     *timeline.Store
	rl        Prompter
	out       io.Writer
	formatter *ui.Formatter
}

// NewREPL opens a readline-backed reviewer on the terminal.
func NewREPL(store *timeline.Store, colored bool) (*REPL, error) {
	rl, err := setupReadline()
	if err != nil {
		return nil, fmt.Errorf("failed to setup readline: %w", err)
	}
	return New(store, rl, os.Stdout, ui.NewFormatter(colored)), nil
}

// New builds a reviewer over any prompter, e.g. a scripted one in tests.
func New(store *timeline.Store, rl Prompter, out io.Writer, formatter *ui.Formatter) *REPL {
	return &REPL{
		store:     store,
		rl:        rl,
		out:       out,
		formatter: formatter,
	}
}

// Start reviews the detections pending when it is called, newest first. It
// returns when the queue is exhausted, the user quits or input ends.
func (r *REPL) Start(ctx context.Context) (Summary, error) {
	defer r.rl.Close()

	var sum Summary
	queue := r.store.Pending()
	if len(queue) == 0 {
		r.displayInfo("No pending detections.")
		return sum, nil
	}
	r.displayInfo(fmt.Sprintf("%d pending detection(s) to review.", len(queue)))

	for i, d := range queue {
		if err := ctx.Err(); err != nil {
			return sum, nil
		}
		if _, ok := r.store.PendingDetection(d.ID); !ok {
			continue
		}

		r.displayDetection(i+1, len(queue), d)
		quit, err := r.review(ctx, d, &sum)
		if err != nil {
			if isEOF(err) {
				r.displaySummary(sum)
				return sum, nil
			}
			return sum, err
		}
		if quit {
			break
		}
	}

	r.displaySummary(sum)
	return sum, nil
}

// review loops on one detection until a valid choice is applied.
func (r *REPL) review(ctx context.Context, d timeline.PendingDetection, sum *Summary) (bool, error) {
	for {
		r.rl.SetPrompt(r.formatter.FormatReviewPrompt())
		input, err := r.readInput()
		if err != nil {
			return false, err
		}

		switch parseChoice(input) {
		case choiceSave:
			if err := r.store.ResolvePendingDetection(ctx, d.ID, timeline.ActionSave, nil); err != nil {
				return false, err
			}
			sum.Saved++
			r.displaySuccess("Saved " + ui.DateLabel(d.DateFields))
			return false, nil

		case choiceEdit:
			dates, ok, err := r.readDate()
			if err != nil {
				return false, err
			}
			if !ok {
				continue
			}
			if err := r.store.ResolvePendingDetection(ctx, d.ID, timeline.ActionEdit, &dates); err != nil {
				return false, err
			}
			sum.Edited++
			r.displaySuccess("Saved with " + ui.DateLabel(dates))
			return false, nil

		case choiceIgnore:
			if err := r.store.ResolvePendingDetection(ctx, d.ID, timeline.ActionIgnore, nil); err != nil {
				return false, err
			}
			sum.Ignored++
			r.displayInfo("Ignored.")
			return false, nil

		case choiceSkip:
			sum.Skipped++
			return false, nil

		case choiceQuit:
			return true, nil

		default:
			r.displayWarning("Please answer s, e, i, k or q.")
		}
	}
}

// readDate asks for the override date. An empty answer keeps the event
// undated.
func (r *REPL) readDate() (timeline.DateFields, bool, error) {
	r.rl.SetPrompt("New date (YYYY-MM-DD, empty for none) > ")
	input, err := r.readInput()
	if err != nil {
		return timeline.DateFields{}, false, err
	}
	if input == "" {
		return timeline.DateFields{}, true, nil
	}
	if _, ok := timeline.ParseDate(input, 0, r.store.Location()); !ok {
		r.displayWarning(fmt.Sprintf("%q is not a valid date.", input))
		return timeline.DateFields{}, false, nil
	}
	return timeline.DateFields{DateISO: input}, true, nil
}
