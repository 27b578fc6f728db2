package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nishad/isakit/internal/sra"
	"github.com/nishad/isakit/internal/ui"
)

// NewSRACmd creates the sra2tab command.
func NewSRACmd(env *Env) *cobra.Command {
	var (
		java      string
		processor string
		parallel  int
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sra2tab ACCESSION... OUTPUT_DIR",
		Short: "Convert SRA/ENA study or submission accessions to ISA-Tab",
		Long: `Convert archive accessions into ISA-Tab bundles with the ENA stylesheets.

Study accessions (SRA, ERA) and submission accessions (SRP, ERP) are accepted,
separated by spaces or commas. Each accession is transformed in its own
temporary directory by an XSLT 2.0 processor run through java, and the
resulting bundle is copied to OUTPUT_DIR/<accession>. Several assay files
with the same header are merged into a_<accession>.txt.

The processor jar defaults to the sra.xslt_processor setting and can be
overridden with ISAKIT_XSLT_PROCESSOR.`,
		Example: `  isakit sra2tab ERA000001 ./bundles
  isakit sra2tab SRP000123,SRP000124 ./bundles -j 4`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := env.config()
			accessions, err := sra.ParseAccessions(args[:len(args)-1])
			if err != nil {
				return err
			}
			outputDir := args[len(args)-1]

			opts := sra.Options{
				Java:           cfg.SRA.Java,
				Processor:      cfg.SRA.XSLTProcessor,
				StylesheetsDir: cfg.SRA.StylesheetsDir,
				WorkDir:        cfg.SRA.WorkDir,
				Parallelism:    cfg.SRA.Parallelism,
				Timeout:        time.Duration(cfg.SRA.TimeoutSeconds) * time.Second,
				Logger:         env.logger(),
			}
			if cmd.Flags().Changed("java") {
				opts.Java = java
			}
			if cmd.Flags().Changed("processor") {
				opts.Processor = processor
			}
			if cmd.Flags().Changed("parallel") {
				opts.Parallelism = parallel
			}
			if cmd.Flags().Changed("timeout") {
				opts.Timeout = timeout
			}

			conv := sra.New(opts)
			if err := conv.Check(); err != nil {
				return err
			}

			var results []sra.Result
			msg := fmt.Sprintf("converting %d accession(s)", len(accessions))
			err = ui.Run(cmd.ErrOrStderr(), msg, func() error {
				var err error
				results, err = conv.Convert(cmd.Context(), accessions, outputDir)
				return err
			})
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d files\n", r.Accession, r.Dir, len(r.Files))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&java, "java", "java", "Java binary used to run the processor")
	cmd.Flags().StringVar(&processor, "processor", "", "XSLT 2.0 processor jar (default from config)")
	cmd.Flags().IntVarP(&parallel, "parallel", "j", 2, "Accessions converted at once")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Time limit per accession")
	return cmd
}
