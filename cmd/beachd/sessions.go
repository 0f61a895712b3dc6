package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/beachshare/beach/pkg/session"
)

func sessionsCmd(configPath, controlDir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "list sessions known to a control directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := session.NewManager(*controlDir)
			infos, err := mgr.ListSessions()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tPID\tSTARTED")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", info.ID, info.Name, info.Status, info.Pid, info.StartedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "remove exited sessions from the control directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return session.NewManager(*controlDir).RemoveExitedSessions()
		},
	})
	return cmd
}
