// Package config loads the engine's tunables from a config file, environment
// variables (SYNCD_ prefix), and flags, in that increasing order of
// precedence, and hot-reloads the file layer on change.
package config

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/localsync/syncd/internal/syncengine"
)

// Keys are the enumerated configuration keys from the operator-facing
// surface; each has a default matching syncengine.DefaultConfig plus the
// three keys (sweep_age_days, remote_base_url, socket_path) that live
// outside Config.
const (
	KeyBaseRetryDelayMS      = "base_retry_delay_ms"
	KeyMaxRetryDelayMS       = "max_retry_delay_ms"
	KeyMaxRetries            = "max_retries"
	KeyTickIntervalMS        = "tick_interval_ms"
	KeyBatchSize             = "batch_size"
	KeySafeShutdownTimeoutMS = "safe_shutdown_timeout_ms"
	KeySweepAgeDays          = "sweep_age_days"
	KeyRemoteBaseURL         = "remote_base_url"
	KeySocketPath            = "socket_path"
)

// Snapshot is an immutable read of every configuration key at one instant.
type Snapshot struct {
	Engine         syncengine.Config
	SweepAgeDays   int
	RemoteBaseURL  string
	SocketPath     string
}

// Watcher layers file, env, and flag config, exposing torn-update-free
// reads via an atomically-swapped Snapshot. Construct with Load, then call
// WatchAndReload to pick up file edits without a restart.
type Watcher struct {
	v        *viper.Viper
	current  atomic.Value // Snapshot
	onChange func(Snapshot)
}

// Load reads configPath (if non-empty and present) plus SYNCD_-prefixed
// environment variables, applies defaults for any unset key, and returns a
// Watcher holding the first Snapshot. configPath may be empty to use
// environment/defaults only.
func Load(configPath string) (*Watcher, error) {
	v := viper.New()
	v.SetEnvPrefix("syncd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	defaults := syncengine.DefaultConfig()
	v.SetDefault(KeyBaseRetryDelayMS, defaults.BaseRetryDelay.Milliseconds())
	v.SetDefault(KeyMaxRetryDelayMS, defaults.MaxRetryDelay.Milliseconds())
	v.SetDefault(KeyMaxRetries, defaults.MaxRetries)
	v.SetDefault(KeyTickIntervalMS, defaults.TickInterval.Milliseconds())
	v.SetDefault(KeyBatchSize, defaults.BatchSize)
	v.SetDefault(KeySafeShutdownTimeoutMS, defaults.SafeShutdownTimeout.Milliseconds())
	v.SetDefault(KeySweepAgeDays, 7)
	v.SetDefault(KeyRemoteBaseURL, "")
	v.SetDefault(KeySocketPath, "")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read %s: %w", configPath, err)
			}
		}
	}

	w := &Watcher{v: v}
	w.current.Store(snapshotFrom(v))
	return w, nil
}

// Current returns the most recently loaded Snapshot.
func (w *Watcher) Current() Snapshot {
	return w.current.Load().(Snapshot)
}

// WatchAndReload watches the config file for changes and atomically
// swaps in a fresh Snapshot on every write, invoking onChange (if non-nil)
// with the new value. A no-op if the Watcher was constructed without a
// config file.
func (w *Watcher) WatchAndReload(onChange func(Snapshot)) {
	w.onChange = onChange
	if w.v.ConfigFileUsed() == "" {
		return
	}
	w.v.OnConfigChange(func(_ fsnotify.Event) {
		snap := snapshotFrom(w.v)
		w.current.Store(snap)
		if w.onChange != nil {
			w.onChange(snap)
		}
	})
	w.v.WatchConfig()
}

func snapshotFrom(v *viper.Viper) Snapshot {
	return Snapshot{
		Engine: syncengine.Config{
			BaseRetryDelay:      time.Duration(v.GetInt64(KeyBaseRetryDelayMS)) * time.Millisecond,
			MaxRetryDelay:       time.Duration(v.GetInt64(KeyMaxRetryDelayMS)) * time.Millisecond,
			MaxRetries:          v.GetInt(KeyMaxRetries),
			TickInterval:        time.Duration(v.GetInt64(KeyTickIntervalMS)) * time.Millisecond,
			BatchSize:           v.GetInt(KeyBatchSize),
			SafeShutdownTimeout: time.Duration(v.GetInt64(KeySafeShutdownTimeoutMS)) * time.Millisecond,
		},
		SweepAgeDays:  v.GetInt(KeySweepAgeDays),
		RemoteBaseURL: v.GetString(KeyRemoteBaseURL),
		SocketPath:    v.GetString(KeySocketPath),
	}
}
