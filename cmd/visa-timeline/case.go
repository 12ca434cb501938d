package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notexe/visa-timeline/internal/timeline"
)

var caseCmd = &cobra.Command{
	Use:   "case",
	Short: "Manage visa cases",
}

var caseUpsertCmd = &cobra.Command{
	Use:   "upsert",
	Short: "Create a case or update the one with the same country and visa type",
	Args:  cobra.NoArgs,
	RunE:  withApp(runCaseUpsert),
}

var caseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cases",
	Args:  cobra.NoArgs,
	RunE:  withApp(runCaseList),
}

var (
	caseCountry   string
	caseVisaType  string
	caseObjective string
	caseStage     string
)

func init() {
	rootCmd.AddCommand(caseCmd)
	caseCmd.AddCommand(caseUpsertCmd, caseListCmd)

	caseUpsertCmd.Flags().StringVar(&caseCountry, "country", "", "destination country")
	caseUpsertCmd.Flags().StringVar(&caseVisaType, "visa-type", "", "visa type")
	caseUpsertCmd.Flags().StringVar(&caseObjective, "objective", "", "purpose of the trip")
	caseUpsertCmd.Flags().StringVar(&caseStage, "stage", "", "current stage")
}

func runCaseUpsert(cmd *cobra.Command, _ []string, a *app) error {
	id, err := a.store.UpsertCase(cmd.Context(), caseCountry, caseVisaType, caseObjective, timeline.Stage(caseStage))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runCaseList(cmd *cobra.Command, _ []string, a *app) error {
	out := cmd.OutOrStdout()
	cases := a.store.Cases()
	if len(cases) == 0 {
		fmt.Fprintln(out, a.formatter.FormatDim("No cases."))
		return nil
	}
	for _, c := range cases {
		fmt.Fprintf(out, "%s  %s · %s  %s\n", a.formatter.FormatDim(c.ID), c.Country, c.VisaType, c.Stage)
	}
	return nil
}
