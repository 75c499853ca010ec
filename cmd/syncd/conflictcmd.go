package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type conflictRecordView struct {
	ID               int64
	ResourceID       string
	ResourceType     string
	ConflictType     string
	ResolutionStatus string
	CreatedAt        time.Time
}

func newConflictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflict",
		Short: "List and resolve pending conflicts",
	}
	cmd.AddCommand(newConflictPendingCmd())
	cmd.AddCommand(newConflictResolveCmd())
	return cmd
}

func newConflictPendingCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List unresolved conflicts, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []conflictRecordView
			if err := newClient().Call("conflict.pending", map[string]int{"limit": limit}, &records); err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no pending conflicts")
				return nil
			}
			for _, r := range records {
				fmt.Printf("%-6d %-12s %s/%s\n", r.ID, r.ConflictType, r.ResourceType, r.ResourceID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum conflicts to list")
	return cmd
}

func newConflictResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <id> <local_wins|server_wins|skip>",
		Short: "Apply a manual resolution to a pending conflict",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			params := map[string]any{"id": id, "resolution": args[1]}
			if err := newClient().Call("conflict.resolve", params, nil); err != nil {
				return err
			}
			fmt.Printf("resolved conflict %d as %s\n", id, args[1])
			return nil
		},
	}
}
