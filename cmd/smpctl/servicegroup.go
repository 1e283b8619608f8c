package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newServiceGroupCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "servicegroup",
		Aliases: []string{"sg"},
		Short:   "Manage service groups",
	}
	cmd.AddCommand(
		newServiceGroupCreateCmd(root),
		newServiceGroupDeleteCmd(root),
		newServiceGroupListCmd(root),
	)
	return cmd
}

func newServiceGroupCreateCmd(root *rootOptions) *cobra.Command {
	var (
		owner     string
		extension string
		noSML     bool
	)

	cmd := &cobra.Command{
		Use:     "create PARTICIPANT",
		Short:   "Create a service group and register it in the SML",
		Example: `  smpctl servicegroup create --owner admin iso6523-actorid-upis::9915:test`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, root)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			pid, err := a.Factory.ParseParticipant(args[0])
			if err != nil {
				return err
			}
			if _, ok := a.Users.Resolve(cmd.Context(), owner); !ok {
				return fmt.Errorf("unknown owner %q", owner)
			}
			sg, err := a.Managers.ServiceGroups.Create(cmd.Context(), owner, pid, extension, !noSML)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", sg.ParticipantID)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owning user ID")
	cmd.Flags().StringVar(&extension, "extension", "", "extension XML")
	cmd.Flags().BoolVar(&noSML, "no-sml", false, "do not register the participant in the SML")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newServiceGroupDeleteCmd(root *rootOptions) *cobra.Command {
	var noSML bool

	cmd := &cobra.Command{
		Use:   "delete PARTICIPANT",
		Short: "Delete a service group with its service information and redirects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, root)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			pid, err := a.Factory.ParseParticipant(args[0])
			if err != nil {
				return err
			}
			deleted, err := a.Managers.ServiceGroups.Delete(cmd.Context(), pid, !noSML)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("service group %s not found", pid)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", pid)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSML, "no-sml", false, "keep the SML registration")
	return cmd
}

func newServiceGroupListCmd(root *rootOptions) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List service groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, root)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			groups := a.Managers.ServiceGroups.GetAll()
			if owner != "" {
				groups = a.Managers.ServiceGroups.GetAllOfOwner(owner)
			}
			for _, sg := range groups {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\t%d\n", sg.ParticipantID, sg.OwnerID,
					len(a.Managers.ServiceInformation.GetAllOfServiceGroup(sg.ParticipantID)),
					len(a.Managers.Redirects.GetAllOfServiceGroup(sg.ParticipantID)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "list only service groups of this owner")
	return cmd
}
