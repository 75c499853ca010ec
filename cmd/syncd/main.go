// Command syncd is the local-first sync engine daemon: it hosts the
// durable request queue, the periodic drain loop, the conflict resolver,
// and an operator control-plane socket, plus a CLI front-end for that
// socket.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/localsync/syncd/internal/config"
)

var (
	dbPath     string
	configPath string
	socketPath string
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "syncd",
		Short: "Local-first sync engine daemon and control-plane client",
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "syncd.db", "path to the SQLite database")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (yaml)")
	root.PersistentFlags().StringVar(&socketPath, "socket", "", "operator control-plane socket path (default $XDG_RUNTIME_DIR/syncd/control.sock or .syncd/control.sock)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newCredentialCmd())
	root.AddCommand(newQueueCmd())
	root.AddCommand(newOnlineCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newConflictCmd())
	root.AddCommand(newSweepCmd())
	return root
}

// resolveSocketPath applies the same file/env/flag precedence as the rest
// of the layered config: an explicit --socket flag wins outright, then the
// config file/environment's socket_path, then the XDG-style default every
// CLI subcommand and the daemon itself agree on without needing to share
// a running process.
func resolveSocketPath() string {
	if socketPath != "" {
		return socketPath
	}
	w, err := config.Load(configPath)
	if err == nil {
		if sp := w.Current().SocketPath; sp != "" {
			return sp
		}
	}
	return defaultSocketPath()
}

func defaultSocketPath() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "syncd", "control.sock")
	}
	return filepath.Join(".syncd", "control.sock")
}
