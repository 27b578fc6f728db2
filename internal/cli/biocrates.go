package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nishad/isakit/internal/biocrates"
)

// NewBiocratesCmd creates the merge-biocrates command.
func NewBiocratesCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "merge-biocrates INPUT_DIR OUTPUT_FILE",
		Short: "Merge Biocrates result XML files into one document",
		Long: `Collect the metabolite, plate, project, sample and contact elements of
every *.xml file in INPUT_DIR, drop exact duplicates and write them under a
single data root to OUTPUT_FILE. Every unreadable input is reported and
nothing is written when any input fails.`,
		Example: `  isakit merge-biocrates ./plates merged.xml`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := biocrates.MergeFile(args[0], args[1], biocrates.Options{Logger: env.logger()}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged %s into %s\n", args[0], args[1])
			return nil
		},
	}
}
