package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nishad/isakit/internal/cli"
	"github.com/nishad/isakit/internal/database"
	"github.com/nishad/isakit/internal/search"
	"github.com/nishad/isakit/internal/service"
	"github.com/nishad/isakit/internal/ui"
)

// Catalog flags
var (
	catalogFormat   string
	catalogLimit    int
	catalogOffset   int
	catalogOrder    string
	searchOrganism  string
	searchTech      string
	searchMeasure   string
	searchFuzzy     bool
	searchFacets    bool
	searchHighlight bool
)

func newCatalogCmd() *cobra.Command {
	catalogFormat, catalogLimit, catalogOffset, catalogOrder = "table", 0, 0, ""
	searchOrganism, searchTech, searchMeasure = "", "", ""
	searchFuzzy, searchFacets, searchHighlight = false, false, false

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the local catalog of converted investigations",
		Long: `The catalog keeps converted investigations in a SQLite database together with
a full-text index of their titles, factors, protocols, measurement types,
organisms and node names. Entries are identified by an id derived from the
path they were added from; adding the same path again replaces the entry.`,
	}

	add := &cobra.Command{
		Use:   "add BUNDLE_DIR|JSON_FILE...",
		Short: "Add ISA-Tab bundles or ISA-JSON documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: withCatalog(func(cmd *cobra.Command, args []string, svc *service.CatalogService, _ *search.BleveIndex) error {
			var rows []*database.Investigation
			err := ui.Run(stderr, fmt.Sprintf("adding %d path(s)", len(args)), func() error {
				var err error
				rows, err = svc.AddAll(cmd.Context(), args)
				return err
			})
			if err != nil {
				return err
			}
			for _, r := range rows {
				fmt.Fprintf(stdout, "%s\t%s\t%s\n", r.ID, r.Identifier, r.Source)
			}
			return nil
		}),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List catalogued investigations",
		Args:  cobra.NoArgs,
		RunE: withCatalog(func(cmd *cobra.Command, args []string, svc *service.CatalogService, _ *search.BleveIndex) error {
			rows, err := svc.List(cmd.Context(), catalogOrder, catalogLimit, catalogOffset)
			if err != nil {
				return err
			}
			if catalogFormat == "json" {
				return writeJSON(rows)
			}
			if len(rows) == 0 {
				printInfo("The catalog is empty")
				return nil
			}
			w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				colorize(colorBold, "ID"), colorize(colorBold, "IDENTIFIER"),
				colorize(colorBold, "TITLE"), colorize(colorBold, "STUDIES"), colorize(colorBold, "ASSAYS"))
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
					colorize(colorCyan, r.ID), r.Identifier, truncate(r.Title, 40), r.StudyCount, r.AssayCount)
			}
			return w.Flush()
		}),
	}
	list.Flags().StringVarP(&catalogFormat, "format", "f", "table", "Output format (table|json)")
	list.Flags().IntVarP(&catalogLimit, "limit", "l", 50, "Maximum entries to list")
	list.Flags().IntVar(&catalogOffset, "offset", 0, "Entries to skip")
	list.Flags().StringVar(&catalogOrder, "order", "created_at", "Sort column (created_at|identifier|title)")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show one catalogued investigation",
		Args:  cobra.ExactArgs(1),
		RunE: withCatalog(func(cmd *cobra.Command, args []string, svc *service.CatalogService, _ *search.BleveIndex) error {
			row, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if catalogFormat == "json" {
				return writeJSON(row)
			}
			fmt.Fprintf(stdout, "%s %s\n", colorize(colorBold, row.Identifier), row.Title)
			fmt.Fprintf(stdout, "  id:     %s\n  source: %s\n", row.ID, row.Source)
			for _, st := range row.Studies {
				fmt.Fprintf(stdout, "  study %s (%s): %d samples, factors %s\n",
					st.Identifier, st.Filename, st.SampleCount, st.Factors)
				for _, a := range st.Assays {
					fmt.Fprintf(stdout, "    assay %s: %s / %s, %d data files\n",
						a.Filename, a.MeasurementType, a.TechnologyType, a.DataFileCount)
				}
			}
			return nil
		}),
	}
	get.Flags().StringVarP(&catalogFormat, "format", "f", "table", "Output format (table|json)")

	searchCmd := &cobra.Command{
		Use:   "search [QUERY]",
		Short: "Search catalogued investigations",
		Long: `Search the catalog index. Queries accept free text, quoted phrases, AND, OR,
NOT, wildcards and field prefixes such as organism:, factor:, protocol:,
measurement:, tech: and node:.`,
		Example: `  isakit catalog search liver
  isakit catalog search 'factor:dose AND NOT yeast'
  isakit catalog search --organism "Mus musculus" --facets`,
		Args: cobra.MaximumNArgs(1),
		RunE: withCatalog(func(cmd *cobra.Command, args []string, _ *service.CatalogService, index *search.BleveIndex) error {
			req := &service.SearchRequest{
				Limit:     catalogLimit,
				Offset:    catalogOffset,
				Fuzzy:     searchFuzzy,
				Highlight: searchHighlight,
				Filters:   map[string]string{},
			}
			if len(args) == 1 {
				req.Query = args[0]
			}
			for field, v := range map[string]string{
				"organisms":         searchOrganism,
				"technology_types":  searchTech,
				"measurement_types": searchMeasure,
			} {
				if v != "" {
					req.Filters[field] = v
				}
			}
			resp, err := service.NewSearchService(index, env.Config.Catalog.SearchLimit).Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			if catalogFormat == "json" {
				return writeJSON(resp)
			}
			printSearchResults(resp)
			return nil
		}),
	}
	searchCmd.Flags().StringVarP(&searchOrganism, "organism", "o", "", "Filter by organism")
	searchCmd.Flags().StringVar(&searchTech, "technology", "", "Filter by technology type")
	searchCmd.Flags().StringVar(&searchMeasure, "measurement", "", "Filter by measurement type")
	searchCmd.Flags().IntVarP(&catalogLimit, "limit", "l", 0, "Maximum results (default from config)")
	searchCmd.Flags().IntVar(&catalogOffset, "offset", 0, "Results to skip")
	searchCmd.Flags().StringVarP(&catalogFormat, "format", "f", "table", "Output format (table|json)")
	searchCmd.Flags().BoolVar(&searchFuzzy, "fuzzy", false, "Tolerate one typo per term")
	searchCmd.Flags().BoolVar(&searchFacets, "facets", false, "Show counts by organism and technology")
	searchCmd.Flags().BoolVar(&searchHighlight, "highlight", false, "Show matching fragments")
	cli.SetupGroupedHelp(searchCmd,
		cli.FlagGroup{Title: "FILTERS", Flags: []string{"organism", "technology", "measurement"}},
		cli.FlagGroup{Title: "OUTPUT", Flags: []string{"limit", "offset", "format", "facets", "highlight"}},
		cli.FlagGroup{Title: "SEARCH MODES", Flags: []string{"fuzzy"}},
	)

	export := &cobra.Command{
		Use:   "export ID OUTPUT_DIR",
		Short: "Write a catalogued investigation as an ISA-Tab bundle",
		Args:  cobra.ExactArgs(2),
		RunE: withCatalog(func(cmd *cobra.Command, args []string, svc *service.CatalogService, _ *search.BleveIndex) error {
			names, err := svc.Export(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printSuccess("Wrote %s to %s", strings.Join(names, ", "), args[1])
			return nil
		}),
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Remove an investigation from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: withCatalog(func(cmd *cobra.Command, args []string, svc *service.CatalogService, _ *search.BleveIndex) error {
			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			printSuccess("Deleted %s", args[0])
			return nil
		}),
	}

	reindex := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the catalog database",
		Args:  cobra.NoArgs,
		RunE: withCatalog(func(cmd *cobra.Command, args []string, svc *service.CatalogService, _ *search.BleveIndex) error {
			var n int
			err := ui.Run(stderr, "rebuilding index", func() error {
				var err error
				n, err = svc.Reindex(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}
			printSuccess("Indexed %d investigation(s)", n)
			return nil
		}),
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		Args:  cobra.NoArgs,
		RunE: withCatalog(func(cmd *cobra.Command, args []string, svc *service.CatalogService, _ *search.BleveIndex) error {
			s, err := svc.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if catalogFormat == "json" {
				return writeJSON(s)
			}
			fmt.Fprintf(stdout, "Investigations:  %d\n", s.TotalInvestigations)
			fmt.Fprintf(stdout, "Studies:         %d\n", s.TotalStudies)
			fmt.Fprintf(stdout, "Assays:          %d\n", s.TotalAssays)
			fmt.Fprintf(stdout, "Indexed:         %d\n", s.IndexedDocuments)
			fmt.Fprintf(stdout, "Database size:   %d bytes\n", s.DatabaseSize)
			return nil
		}),
	}
	stats.Flags().StringVarP(&catalogFormat, "format", "f", "table", "Output format (table|json)")

	cmd.AddCommand(add, list, get, searchCmd, export, del, reindex, stats)
	return cmd
}

type catalogRunFunc func(cmd *cobra.Command, args []string, svc *service.CatalogService, index *search.BleveIndex) error

// withCatalog opens the configured database and index around fn.
func withCatalog(fn catalogRunFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := env.Config
		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}
		db, err := database.Open(cfg.Catalog.DBPath, database.Options{JournalMode: cfg.Catalog.JournalMode})
		if err != nil {
			return err
		}
		defer db.Close()
		index, err := search.InitBleveIndex(cfg.Catalog.IndexPath)
		if err != nil {
			return err
		}
		svc := service.NewCatalogService(service.Options{
			DB:        db,
			Index:     index,
			Converter: newConverter(),
			Logger:    env.Logger,
			BatchSize: cfg.Catalog.BatchSize,
		})
		defer svc.Close()
		return fn(cmd, args, svc, index)
	}
}

func printSearchResults(resp *service.SearchResponse) {
	if len(resp.Results) == 0 {
		printInfo("No results found for %q", resp.Query)
		return
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		colorize(colorBold, "ID"), colorize(colorBold, "IDENTIFIER"),
		colorize(colorBold, "TITLE"), colorize(colorBold, "SCORE"))
	for _, r := range resp.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.3f\n", colorize(colorCyan, r.ID), r.Identifier, truncate(r.Title, 40), r.Score)
		if searchHighlight {
			for field, frags := range r.Highlights {
				for _, f := range frags {
					fmt.Fprintf(w, "\t%s\t%s\t\n", colorize(colorGray, field), f)
				}
			}
		}
	}
	w.Flush()

	if searchFacets {
		for _, name := range []string{"organisms", "technology_types", "measurement_types"} {
			counts := resp.Facets[name]
			if len(counts) == 0 {
				continue
			}
			fmt.Fprintf(stdout, "\n%s\n", colorize(colorBold, name))
			for _, c := range counts {
				fmt.Fprintf(stdout, "  %-40s %d\n", c.Name, c.Count)
			}
		}
	}
	if !quiet {
		fmt.Fprintf(stdout, "\n%s\n", colorize(colorGray,
			fmt.Sprintf("Found %d results (showing %d) in %dms", resp.TotalResults, len(resp.Results), resp.TimeTaken)))
	}
}

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
