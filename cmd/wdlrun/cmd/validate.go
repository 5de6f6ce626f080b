package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wdlrun/wdlrun/internal/docload"
)

var checkQuant bool

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document>",
		Short: "Parse, resolve, and type-check a WDL document",
		Long: `Parse a WDL document, resolve its imports and names, and
type-check every task and its workflow.

If the document is invalid, plain output exits non-zero with the error;
--output json prints {"valid": false, "error": ...} and exits zero.`,
		Args: cobra.ExactArgs(1),
		Example: `  wdlrun validate workflow.wdl
  wdlrun validate --check-quant=false workflow.wdl`,
		RunE: runValidate,
	}
	cmd.Flags().BoolVar(&checkQuant, "check-quant", true, "enforce strict optional/non-empty type checking")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	uri := args[0]
	printVerbose(cmd, "Validating %s\n", uri)

	loader := docload.New(checkQuant)
	doc, err := loader.Load(uri)
	if err != nil {
		if outputFormat == "json" {
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			encoder.Encode(map[string]any{"valid": false, "error": err.Error()})
			return nil
		}
		return fmt.Errorf("validate: %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]any{
			"valid":    true,
			"tasks":    len(doc.Tasks),
			"workflow": doc.Workflow != nil,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d task(s)", uri, len(doc.Tasks))
	if doc.Workflow != nil {
		fmt.Fprintf(cmd.OutOrStdout(), ", workflow %q", doc.Workflow.Name)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
