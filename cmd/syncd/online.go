package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOnlineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "online",
		Short: "Read or override the daemon's online/offline flag",
	}
	cmd.AddCommand(newOnlineGetCmd())
	cmd.AddCommand(newOnlineSetCmd())
	return cmd
}

func newOnlineGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the current online/offline state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Online bool `json:"online"`
			}
			if err := newClient().Call("online.get", nil, &result); err != nil {
				return err
			}
			if result.Online {
				fmt.Println("online")
			} else {
				fmt.Println("offline")
			}
			return nil
		},
	}
}

func newOnlineSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <online|offline>",
		Short: "Force the online/offline flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var online bool
			switch args[0] {
			case "online":
				online = true
			case "offline":
				online = false
			default:
				return fmt.Errorf("argument must be %q or %q", "online", "offline")
			}
			params := map[string]bool{"online": online}
			if err := newClient().Call("online.set", params, nil); err != nil {
				return err
			}
			fmt.Printf("set %s\n", args[0])
			return nil
		},
	}
}
