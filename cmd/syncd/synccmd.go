package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type syncStatusView struct {
	State        string
	Stats        map[string]int
	LastSyncTime string
}

type syncLogEntryView struct {
	ID        int64
	QueueID   *int64
	EventType string
	Message   string
	Meta      string
	CreatedAt time.Time
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Trigger or inspect the sync engine",
	}
	cmd.AddCommand(newSyncForceCmd())
	cmd.AddCommand(newSyncStatusCmd())
	cmd.AddCommand(newSyncLogCmd())
	return cmd
}

func newSyncForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force",
		Short: "Run a drain pass immediately instead of waiting for the next tick",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().Call("sync.force", nil, nil); err != nil {
				return err
			}
			fmt.Println("sync triggered")
			return nil
		},
	}
}

func newSyncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the engine's state, queue counts, and last sync time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var status syncStatusView
			if err := newClient().Call("sync.status", nil, &status); err != nil {
				return err
			}
			fmt.Printf("state:          %s\n", status.State)
			fmt.Printf("last sync time: %s\n", status.LastSyncTime)
			for _, s := range []string{"pending", "completed", "failed"} {
				fmt.Printf("%-12s %d\n", s, status.Stats[s])
			}
			return nil
		},
	}
}

func newSyncLogCmd() *cobra.Command {
	var limit int
	var queueID int64
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the engine's audit trail: completed, conflict, retry, and state-change events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := struct {
				Limit   int    `json:"limit"`
				QueueID *int64 `json:"queue_id"`
			}{Limit: limit}
			if queueID != 0 {
				params.QueueID = &queueID
			}
			var entries []syncLogEntryView
			if err := newClient().Call("sync.log", params, &entries); err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no log entries")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %-16s %s\n", e.CreatedAt.Format(time.RFC3339), e.EventType, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries to return (ignored with --queue-id)")
	cmd.Flags().Int64Var(&queueID, "queue-id", 0, "restrict to log entries for one queue entry")
	return cmd
}
