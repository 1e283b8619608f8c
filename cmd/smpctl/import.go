package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-smp/internal/bulk"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	var (
		overwrite    bool
		cards        bool
		defaultOwner string
		workers      int
	)

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import service groups and business cards from an smp-data XML file",
		Long: `Import service groups, service information, redirects and business cards
from an <smp-data> XML file.

The file is analysed completely before anything is changed. Any analysis
error aborts the import. Existing service groups are skipped unless
--overwrite is given.

Examples:
  smpctl import export.xml
  smpctl import --overwrite --default-owner admin export.xml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, root)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			opts := a.ImportOptions()
			opts.Overwrite = overwrite
			if cmd.Flags().Changed("business-cards") {
				opts.BusinessCards = cards
			}
			if defaultOwner != "" {
				opts.DefaultOwner = defaultOwner
			}
			if workers > 0 {
				opts.Workers = workers
			}

			res, err := a.Importer.ImportReader(cmd.Context(), f, opts)
			if err != nil {
				return err
			}
			a.Metrics.ObserveImport(res)
			printResult(cmd, res)
			return res.Err()
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace existing service groups and business cards")
	cmd.Flags().BoolVar(&cards, "business-cards", false, "import business cards (default: directory.enabled)")
	cmd.Flags().StringVar(&defaultOwner, "default-owner", "", "owner for service groups with a missing or unknown owner")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers per phase (default: import.workers)")
	return cmd
}

func printResult(cmd *cobra.Command, res *bulk.Result) {
	out := cmd.OutOrStdout()
	for _, e := range res.Log.Entries() {
		if e.Level == bulk.LevelInfo {
			continue
		}
		line := fmt.Sprintf("%-8s %s", e.Level, e.Message)
		if e.Participant != "" {
			line = fmt.Sprintf("%-8s [%s] %s", e.Level, e.Participant, e.Message)
		}
		if e.Err != nil {
			line += ": " + e.Err.Error()
		}
		fmt.Fprintln(out, line)
	}

	fmt.Fprintf(out, "\nimport %s: %s\n", res.ID, res.Status)
	for _, action := range res.Summary.Actions() {
		c := res.Summary.Get(action)
		fmt.Fprintf(out, "  %-22s %5d ok %5d failed\n", action, c.Success, c.Error)
	}
}
