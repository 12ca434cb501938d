package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/notexe/visa-timeline/internal/detect"
	"github.com/notexe/visa-timeline/internal/portal"
	"github.com/notexe/visa-timeline/internal/timeline"
	"github.com/notexe/visa-timeline/internal/ui"
)

var scanCmd = &cobra.Command{
	Use:   "scan <file>",
	Short: "Detect a date on a saved portal page and queue it for review",
	Long: `Scan reads an HTML or text file, finds the most likely procedure date
and adds it to the pending queue of the case named by --country and
--visa-type. With --watch the file is rescanned on the detector interval
and a changed page yields a new detection.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runScan),
}

var (
	scanURL   string
	scanWatch bool
	scanCase  portal.Params
	scanStage string
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanCase.Country, "country", "", "destination country")
	scanCmd.Flags().StringVar(&scanCase.VisaType, "visa-type", "", "visa type")
	scanCmd.Flags().StringVar(&scanCase.Objective, "objective", "", "purpose of the trip")
	scanCmd.Flags().StringVar(&scanStage, "stage", "", "stage of a newly created case")
	scanCmd.Flags().StringVar(&scanURL, "url", "", "source URL recorded on detections (default file://<path>)")
	scanCmd.Flags().BoolVar(&scanWatch, "watch", false, "keep rescanning until interrupted")
}

func runScan(cmd *cobra.Command, args []string, a *app) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	page := detect.FilePage{Path: args[0], URL: scanURL}
	d := a.cfg.Detector
	scanner := detect.NewScanner(page,
		detect.WithExtractor(detect.Extractor{MaxChars: d.MaxChars, MaxHits: d.MaxHits, Window: d.Window}),
		detect.WithCadence(d.InitialDelay(), d.ScanInterval()),
	)

	params := scanCase
	params.URL = scanURL
	params.Stage = timeline.Stage(scanStage)
	session := portal.NewSession(a.store, params)

	if scanWatch {
		return watch(ctx, scanner, session, out, a.formatter)
	}

	msg, ok, err := scanner.Scan(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, a.formatter.FormatDim("No date found."))
		return nil
	}
	n, err := session.HandleMessage(ctx, msg)
	if err != nil {
		return err
	}
	if n != nil {
		printNotice(out, a.formatter, *n)
	}
	return nil
}

// watch pipes the scanner into the session until ctx ends.
func watch(ctx context.Context, scanner *detect.Scanner, session *portal.Session, out io.Writer, f *ui.Formatter) error {
	msgs := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		errc <- scanner.Run(ctx, msgs)
		close(msgs)
	}()

	if err := session.Run(ctx, msgs, func(n portal.Notice) { printNotice(out, f, n) }); err != nil {
		return err
	}
	return <-errc
}

func printNotice(out io.Writer, f *ui.Formatter, n portal.Notice) {
	date := n.DateISO
	if date == "" {
		date = "no date"
	}
	if !n.Prompt {
		fmt.Fprintln(out, f.FormatInfo(fmt.Sprintf("Date detected (%s), saved for review.", date)))
		return
	}
	fmt.Fprintln(out, f.FormatSuccess(fmt.Sprintf("Detected %s: %s", date, n.Title)))
	fmt.Fprintf(out, "Review it with: visa-timeline pending resolve %s <save|edit|ignore>\n", n.DetectionID)
}
