package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type queueEntryView struct {
	ID           int64
	Method       string
	URL          string
	Status       string
	RetryCount   int
	ErrorMessage string
	CreatedAt    time.Time
}

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the durable request queue",
	}
	cmd.AddCommand(newQueueStatsCmd())
	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueueRemoveCmd())
	cmd.AddCommand(newQueueRetryCmd())
	return cmd
}

func newQueueStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue row counts by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats map[string]int
			if err := newClient().Call("queue.stats", nil, &stats); err != nil {
				return err
			}
			for _, status := range []string{"pending", "processing", "completed", "failed"} {
				fmt.Printf("%-12s %d\n", status, stats[status])
			}
			return nil
		},
	}
}

func newQueueListCmd() *cobra.Command {
	var limit int
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue rows, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]any{"limit": limit, "status": status}
			var entries []queueEntryView
			if err := newClient().Call("queue.list", params, &entries); err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("queue is empty")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%-6d %-6s %-10s retries=%-3d %s\n", e.ID, e.Method, e.Status, e.RetryCount, e.URL)
				if e.ErrorMessage != "" {
					fmt.Printf("       error: %s\n", e.ErrorMessage)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to list")
	cmd.Flags().StringVar(&status, "status", "", "filter by status: pending, completed, failed")
	return cmd
}

func newQueueRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a queue row by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := newClient().Call("queue.remove", map[string]int64{"id": id}, nil); err != nil {
				return err
			}
			fmt.Printf("removed queue entry %d\n", id)
			return nil
		},
	}
}

func newQueueRetryCmd() *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "retry <id>",
		Short: "Move a failed row back to pending so the next tick retries it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			params := map[string]any{"id": id, "reset_retry_count": reset}
			if err := newClient().Call("queue.retry", params, nil); err != nil {
				return err
			}
			fmt.Printf("requeued entry %d\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset-retry-count", false, "also reset retry_count to zero")
	return cmd
}

func newSweepCmd() *cobra.Command {
	var olderThanDays int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete queue rows of any status created before a retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Removed int64 `json:"removed"`
			}
			params := map[string]int{"older_than_days": olderThanDays}
			if err := newClient().Call("queue.sweep", params, &result); err != nil {
				return err
			}
			fmt.Printf("removed %d rows\n", result.Removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&olderThanDays, "older-than-days", 0, "retention window in days (default from config)")
	return cmd
}

func parseID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
