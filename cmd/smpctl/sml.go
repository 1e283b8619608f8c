package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newSMLCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sml",
		Short: "SML integration",
	}
	cmd.AddCommand(newSMLVerifyCmd(root))
	return cmd
}

func newSMLVerifyCmd(root *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "verify [PARTICIPANT...]",
		Short: "Check that participants are published in the SML DNS zone",
		Long: `Look up the CNAME (B-<md5>) and U-NAPTR records of participants in the
zone configured as sml.dns.zone. With --all every local service group is
checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, root)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			if a.Verifier == nil {
				return errors.New("sml.dns.zone is not configured")
			}

			pids := make([]string, 0, len(args))
			pids = append(pids, args...)
			if all {
				for _, sg := range a.Managers.ServiceGroups.GetAll() {
					pids = append(pids, sg.ParticipantID.URIEncoded())
				}
			}
			if len(pids) == 0 {
				return errors.New("no participants given")
			}

			missing := 0
			out := cmd.OutOrStdout()
			for _, s := range pids {
				pid, err := a.Factory.ParseParticipant(s)
				if err != nil {
					return err
				}
				v, err := a.Verifier.Verify(cmd.Context(), pid)
				if err != nil {
					return err
				}
				state := "missing"
				if v.Published() {
					state = "published"
				} else {
					missing++
				}
				fmt.Fprintf(out, "%s\t%s\n", pid, state)
				if v.CNAMEPublished() {
					fmt.Fprintf(out, "  CNAME %s -> %s\n", v.CNAMEName, v.CNAMETarget)
				}
				if v.NAPTRPublished() {
					fmt.Fprintf(out, "  NAPTR %s -> %s\n", v.NAPTRName, v.SMPURL)
				}
			}
			if missing > 0 {
				return fmt.Errorf("%d of %d participants are not published", missing, len(pids))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "verify every local service group")
	return cmd
}
