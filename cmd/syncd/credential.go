package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the outgoing authorization header",
	}
	cmd.AddCommand(newCredentialSetCmd())
	cmd.AddCommand(newCredentialClearCmd())
	cmd.AddCommand(newCredentialGetCmd())
	return cmd
}

func newCredentialSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <header> <value>",
		Short: "Install the header added to every outgoing request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := map[string]string{"key": args[0], "value": args[1]}
			if err := newClient().Call("credential.set", params, nil); err != nil {
				return err
			}
			fmt.Println("credential installed")
			return nil
		},
	}
}

func newCredentialClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the installed credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().Call("credential.clear", nil, nil); err != nil {
				return err
			}
			fmt.Println("credential cleared")
			return nil
		},
	}
}

func newCredentialGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show whether a credential is installed, and its header name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Key   string `json:"key"`
				IsSet bool   `json:"is_set"`
			}
			if err := newClient().Call("credential.get", nil, &result); err != nil {
				return err
			}
			if !result.IsSet {
				fmt.Println("no credential installed")
				return nil
			}
			fmt.Printf("header: %s\n", result.Key)
			return nil
		},
	}
}
