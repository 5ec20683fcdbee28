package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/formfill-cli/internal/export"
	"github.com/sells-group/formfill-cli/internal/form"
	"github.com/sells-group/formfill-cli/internal/pipeline"
)

var (
	networkingInput  string
	networkingFormat string
	networkingOut    string
)

var networkingCmd = &cobra.Command{
	Use:   "networking",
	Short: "Turn a meeting note into one contact card per person",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		text, err := readTranscript(networkingInput)
		if err != nil {
			return err
		}

		env, err := initFiller(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		flow, err := pipeline.NewNetworking(env.Filler)
		if err != nil {
			return err
		}
		entries, err := flow.Run(ctx, text)
		if err != nil {
			return err
		}

		printEntries(cmd.OutOrStdout(), entries)

		var records []export.Record
		for _, e := range entries {
			if e.ShowFullContactCard() {
				records = append(records, export.Record{Source: e.Name, Data: e.Form})
			}
		}
		if len(records) > 0 && networkingOut != "" {
			if err := writeRecords(networkingFormat, networkingOut, records); err != nil {
				return err
			}
		}
		env.Report(cmd.ErrOrStderr())
		return nil
	},
}

var foodLogCmd = &cobra.Command{
	Use:   "food-log",
	Short: "Turn a spoken food diary entry into one row per item eaten",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readTranscript(networkingInput)
		if err != nil {
			return err
		}

		env, err := initFiller(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		flow, err := pipeline.NewFoodLog(env.Filler)
		if err != nil {
			return err
		}
		rows, err := flow.Run(cmd.Context(), text)
		if err != nil && !isExtractionError(err) {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No food items found.")
			return nil
		}

		records := make([]export.Record, len(rows))
		for i, d := range rows {
			records[i] = export.Record{Source: networkingInput, Data: d}
		}
		if err := writeRecords(networkingFormat, networkingOut, records); err != nil {
			return err
		}
		env.Report(cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{networkingCmd, foodLogCmd} {
		c.Flags().StringVar(&networkingInput, "input", "-", "transcript file, - for stdin")
		c.Flags().StringVar(&networkingFormat, "output", formatYAML, "output format: json, yaml or xlsx")
		rootCmd.AddCommand(c)
	}
	networkingCmd.Flags().StringVar(&networkingOut, "out", "", "also export the contact cards to this file")
	foodLogCmd.Flags().StringVar(&networkingOut, "out", "", "output file (default stdout)")
}

// printEntries renders the networking result for the terminal: contact
// cards as label/value lines, then the draft, then entries without a card.
func printEntries(w io.Writer, entries []pipeline.PersonEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Nobody mentioned in the note.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "== %s\n", e.Name)
		if !e.ShowFullContactCard() {
			fmt.Fprintln(w, e.ParsingError)
			fmt.Fprintln(w)
			continue
		}
		fmt.Fprintln(w, form.FormatTuples(e.Form.ToDisplayTuples()))
		if e.Draft != "" {
			fmt.Fprintf(w, "\nDraft:\n%s\n", e.Draft)
		}
		fmt.Fprintln(w)
	}
}
