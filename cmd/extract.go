package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/formfill-cli/internal/export"
	"github.com/sells-group/formfill-cli/internal/extract"
	"github.com/sells-group/formfill-cli/internal/form"
	"github.com/sells-group/formfill-cli/internal/formlib"
)

var (
	extractForm   string
	extractInput  string
	extractMulti  bool
	extractTime   bool
	extractFormat string
	extractOut    string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fill a form from one transcript",
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := formlib.Get(extractForm)
		if err != nil {
			return err
		}
		text, err := readTranscript(extractInput)
		if err != nil {
			return err
		}

		env, err := initFiller(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		rows, err := fillTranscript(cmd.Context(), env.Filler, def, text, fillRequest{Multi: extractMulti, CurrentTime: extractTime})
		if err != nil && !isExtractionError(err) {
			return err
		}
		if err != nil {
			zap.L().Warn("model answer could not be parsed, writing empty record", zap.Error(err))
		}

		records := make([]export.Record, len(rows))
		for i, d := range rows {
			records[i] = export.Record{Source: extractInput, Data: d}
		}
		if err := writeRecords(extractFormat, extractOut, records); err != nil {
			return err
		}
		env.Report(cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractForm, "form", formlib.Contacts, "form to fill (see `forms list`)")
	extractCmd.Flags().StringVar(&extractInput, "input", "-", "transcript file, - for stdin")
	extractCmd.Flags().BoolVar(&extractMulti, "multi", false, "extract a list of entries instead of one")
	extractCmd.Flags().BoolVar(&extractTime, "current-time", false, "tell the model the current time so relative dates resolve")
	extractCmd.Flags().StringVar(&extractFormat, "output", formatJSON, "output format: json, yaml or xlsx")
	extractCmd.Flags().StringVar(&extractOut, "out", "", "output file (default stdout)")
	rootCmd.AddCommand(extractCmd)
}

// fillRequest selects the extraction mode.
type fillRequest struct {
	Multi       bool `json:"multi"`
	CurrentTime bool `json:"current_time"`
}

// fillTranscript runs one extraction. Single-entry extraction always
// returns one record, empty when the model answer could not be parsed.
func fillTranscript(ctx context.Context, filler *extract.Filler, def *form.Definition, text string, req fillRequest) ([]*form.Data, error) {
	var opts []extract.FillOption
	if req.CurrentTime {
		opts = append(opts, extract.WithCurrentTime())
	}
	if req.Multi {
		return filler.FillInMultiEntryForm(ctx, def, text, opts...)
	}
	d, err := filler.FillInForm(ctx, def, text, opts...)
	if d == nil {
		return nil, err
	}
	return []*form.Data{d}, err
}

func readTranscript(path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "" || path == "-" {
		b, err = io.ReadAll(os.Stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", eris.Wrapf(err, "read transcript %s", path)
	}
	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", eris.Errorf("transcript %s is empty", path)
	}
	return text, nil
}

func isExtractionError(err error) bool {
	var xerr *extract.ExtractionError
	return errors.As(err, &xerr)
}
