package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-smp/internal/storage"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		output string
		owner  string
		cards  bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export service groups as smp-data XML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, root)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			var groups []*storage.ServiceGroup
			if owner != "" {
				groups = a.Managers.ServiceGroups.GetAllOfOwner(owner)
			} else {
				groups = a.Managers.ServiceGroups.GetAll()
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			_, err = a.Exporter.WriteTo(w, groups, cards)
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&owner, "owner", "", "export only service groups of this owner")
	cmd.Flags().BoolVar(&cards, "business-cards", false, "include business cards")
	return cmd
}
