package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/localsync/syncd/internal/cache"
	"github.com/localsync/syncd/internal/conflict"
	"github.com/localsync/syncd/internal/config"
	"github.com/localsync/syncd/internal/daemonlock"
	"github.com/localsync/syncd/internal/eventbus"
	"github.com/localsync/syncd/internal/interceptor"
	"github.com/localsync/syncd/internal/metadata"
	"github.com/localsync/syncd/internal/queue"
	"github.com/localsync/syncd/internal/rpc"
	"github.com/localsync/syncd/internal/storage/sqlite"
	"github.com/localsync/syncd/internal/synclog"
	"github.com/localsync/syncd/internal/syncengine"
)

var (
	runForeground bool
	runLogPath    string
	runJSONLogs   bool
	runLogLevel   string
	runH2C        bool
	runWSAddr     string
)

// components holds every collaborator the daemon wires together, threaded
// into the RPC handlers so they share the exact instances the engine uses.
type components struct {
	store       *sqlite.Store
	queue       *queue.Queue
	cache       *cache.Cache
	online      *interceptor.AtomicOnlineState
	credentials *interceptor.MapCredentialSource
	interceptor *interceptor.Interceptor
	conflicts   *conflict.Store
	hooks       *conflict.Hooks
	resolver    *conflict.Resolver
	metadata    *metadata.Store
	synclog     *synclog.Log
	bus         *eventbus.Bus
	engine      *syncengine.Engine
	watcher     *config.Watcher
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon in this process, logging to stderr or a rotated log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&runForeground, "foreground", true, "log to stderr instead of a rotated log file")
	cmd.Flags().StringVar(&runLogPath, "log-file", "", "path to the rotated log file (default <db>.log, beside the database)")
	cmd.Flags().BoolVar(&runJSONLogs, "json-logs", false, "emit structured JSON log lines instead of text")
	cmd.Flags().StringVar(&runLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&runH2C, "h2c", false, "speak plaintext HTTP/2 (h2c) to the remote instead of negotiating TLS, for loopback test remotes")
	cmd.Flags().StringVar(&runWSAddr, "ws-addr", "", "address to serve the event bus observer websocket on, e.g. 127.0.0.1:8901 (disabled if empty)")
	return cmd
}

func runDaemon(ctx context.Context) error {
	level := parseLogLevel(runLogLevel)
	var logger daemonLogger
	if runForeground {
		logger = stderrLogger(runJSONLogs, level)
	} else {
		logPath := runLogPath
		if logPath == "" {
			logPath = dbPath + ".log"
		}
		_, logger = setupDaemonLogger(logPath, runJSONLogs, level)
	}

	dir := filepath.Dir(dbPath)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	lock, err := daemonlock.Acquire(dir, dbPath)
	if err != nil {
		if errors.Is(err, daemonlock.ErrLocked) {
			return fmt.Errorf("another syncd is already running against %s", dbPath)
		}
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	defer func() { _ = lock.Release() }()

	c, err := wireComponents(ctx, logger, runH2C)
	if err != nil {
		return err
	}
	defer func() { _ = c.store.Close() }()

	server := rpc.NewServer(resolveSocketPath(), 16)
	registerHandlers(server, c)

	var wsServer *http.Server
	if runWSAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/events", eventbus.NewWSBridge(c.bus, nil))
		wsServer = &http.Server{Addr: runWSAddr, Handler: mux}
		go func() {
			if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("event bus observer server exited unexpectedly", "error", err)
			}
		}()
		logger.Info("event bus observer listening", "addr", runWSAddr)
	}

	c.engine.Start()
	logger.Info("sync engine started", "db", dbPath)

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.Start(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-serverErrCh:
		if err != nil {
			logger.Error("rpc server exited unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.watcher.Current().Engine.SafeShutdownTimeout+5*time.Second)
	defer cancel()
	if err := c.engine.SafeShutdown(shutdownCtx); err != nil {
		logger.Warn("safe shutdown did not complete cleanly", "error", err)
	}
	if err := server.Stop(); err != nil {
		logger.Warn("rpc server stop error", "error", err)
	}
	if wsServer != nil {
		if err := wsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("event bus observer stop error", "error", err)
		}
	}
	logger.Info("sync engine stopped")
	return nil
}

func wireComponents(ctx context.Context, logger daemonLogger, h2c bool) (*components, error) {
	store, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	watcher, err := config.Load(configPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load config: %w", err)
	}

	q := queue.New(store)
	ch := cache.New(store)
	online := interceptor.NewOnlineState(true)
	creds := interceptor.NewMapCredentialSource()
	var transport interceptor.NetworkTransport = http.DefaultClient
	if h2c {
		transport = interceptor.NewH2CClient()
	}
	ic := interceptor.New(online, creds, transport, ch, q, watcher.Current().RemoteBaseURL)

	conflictStore := conflict.NewStore(store)
	hooks := conflict.NewHooks()
	log := synclog.New(store)
	resolver := conflict.NewResolver(conflictStore, hooks, q, log, nil)

	meta := metadata.New(store)
	bus := eventbus.New()

	engine := syncengine.New(q, ic, online, resolver, meta, log, bus, watcher.Current().Engine)

	c := &components{
		store:       store,
		queue:       q,
		cache:       ch,
		online:      online,
		credentials: creds,
		interceptor: ic,
		conflicts:   conflictStore,
		hooks:       hooks,
		resolver:    resolver,
		metadata:    meta,
		synclog:     log,
		bus:         bus,
		engine:      engine,
		watcher:     watcher,
	}

	watcher.WatchAndReload(func(snap config.Snapshot) {
		logger.Info("configuration reloaded", "batch_size", snap.Engine.BatchSize, "tick_interval", snap.Engine.TickInterval)
	})

	return c, nil
}
