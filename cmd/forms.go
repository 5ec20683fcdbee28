package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/formfill-cli/internal/export"
	"github.com/sells-group/formfill-cli/internal/formlib"
)

var formsCmd = &cobra.Command{
	Use:   "forms",
	Short: "Inspect the built-in form definitions",
}

var formsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List form names",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range formlib.Names() {
			def, err := formlib.Get(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %d fields\n", name, len(def.Fields()))
		}
		return nil
	},
}

var formsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a form definition as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := formlib.Get(args[0])
		if err != nil {
			return err
		}
		return export.Encode(cmd.OutOrStdout(), export.Schema(def))
	},
}

func init() {
	formsCmd.AddCommand(formsListCmd, formsShowCmd)
	rootCmd.AddCommand(formsCmd)
}
