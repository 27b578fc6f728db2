package main

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/nishad/isakit/internal/validator"
)

func newTabToJSONCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tab-to-json INPUT_DIR [OUTPUT_FILE]",
		Short: "Convert an ISA-Tab bundle to an ISA-JSON document",
		Long: `Convert the ISA-Tab bundle in INPUT_DIR into one ISA-JSON document.

The directory must hold exactly one investigation file matching the
tab.investigation_glob setting (i_*.txt by default). The document is written
to OUTPUT_FILE, or to standard output when it is omitted. Nothing is written
when any table of the bundle fails to parse.`,
		Example: `  isakit tab-to-json ./BII-I-1 bii.json
  isakit tab-to-json ./BII-I-1 | jq .studies[0].identifier`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv := newConverter()
			if len(args) == 1 {
				var buf bytes.Buffer
				if err := conv.TabToJSON(args[0], &buf); err != nil {
					return err
				}
				_, err := stdout.Write(buf.Bytes())
				return err
			}
			if err := conv.TabToJSONFile(args[0], args[1]); err != nil {
				return err
			}
			printSuccess("Wrote %s", args[1])
			return nil
		},
	}
}

func newJSONToTabCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "json-to-tab INPUT_JSON OUTPUT_DIR",
		Short: "Convert an ISA-JSON document to an ISA-Tab bundle",
		Long: `Convert the ISA-JSON document INPUT_JSON into an ISA-Tab bundle written to
OUTPUT_DIR, which is created when missing. The investigation file and one
table per study and assay are written; existing files of the same name are
replaced.`,
		Example: `  isakit json-to-tab bii.json ./BII-I-1-copy`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newConverter().JSONToTabDir(args[0], args[1]); err != nil {
				return err
			}
			printSuccess("Wrote bundle to %s", args[1])
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate JSON_FILE [SCHEMA_FILE]",
		Short: "Validate an ISA-JSON document",
		Long: `Validate JSON_FILE against the ISA-JSON investigation schema and check that
every @id reference resolves.

SCHEMA_FILE selects an external investigation schema; relative $ref entries
resolve against its directory. Without it the validator.schema_path setting
is used, and when that is empty the schema built into isakit.`,
		Example: `  isakit validate bii.json
  isakit validate bii.json ./schemas/investigation_schema.json --strict`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := env.Config
			vc := validator.ValidationConfig{
				SchemaPath:         cfg.Validator.SchemaPath,
				ValidateReferences: true,
				StrictMode:         cfg.Validator.Strict || strict,
			}
			if len(args) == 2 {
				vc.SchemaPath = args[1]
			}
			v, err := validator.NewValidator(vc)
			if err != nil {
				return err
			}
			result, err := v.ValidateFile(args[0])
			if err != nil {
				return err
			}
			for _, w := range result.Warnings {
				printWarning("%s: %s", w.Field, w.Message)
			}
			for _, e := range result.Errors {
				if e.Field != "" {
					fmt.Fprintf(stderr, "  %s: %s\n", colorize(colorYellow, e.Field), e.Message)
				} else {
					fmt.Fprintf(stderr, "  %s\n", e.Message)
				}
			}
			if err := result.Err(); err != nil {
				return err
			}
			printSuccess("%s is valid (%d references checked)", args[0], result.Stats.ReferencesChecked)
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Report unresolved references as errors")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check INPUT_DIR",
		Short: "Report every error of an ISA-Tab bundle",
		Long: `Parse every table of the bundle in INPUT_DIR independently and report all
errors found, instead of stopping at the first one as tab-to-json does.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := newConverter().CheckBundle(args[0])
			var merr *multierror.Error
			if errors.As(err, &merr) {
				for _, e := range merr.Errors {
					fmt.Fprintf(stderr, "  %v\n", e)
				}
				return fmt.Errorf("%d problem(s) in %s: %w", len(merr.Errors), args[0], merr.Errors[0])
			}
			if err != nil {
				return err
			}
			printSuccess("%s is consistent", args[0])
			return nil
		},
	}
}
