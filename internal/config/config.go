package config

import (
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Dialogue    DialogueConfig    `koanf:"dialogue"`
	Negotiation NegotiationConfig `koanf:"negotiation"`
	Tracker     TrackerConfig     `koanf:"tracker"`
	Store       StoreConfig       `koanf:"store"`
	Notify      NotifyConfig      `koanf:"notify"`
	Activity    ActivityConfig    `koanf:"activity"`
	Enforce     EnforceConfig     `koanf:"enforce"`
	Quiet       QuietConfig       `koanf:"quiet"`
	Memory      MemoryConfig      `koanf:"memory"`
	Daemon      DaemonConfig      `koanf:"daemon"`
}

type ServerConfig struct {
	LogLevel string `koanf:"log_level"`
}

type DialogueConfig struct {
	Provider       string `koanf:"provider"`
	Fallback       string `koanf:"fallback"`
	Model          string `koanf:"model"`
	APIKey         string `koanf:"api_key"`
	BaseURL        string `koanf:"base_url"`
	RequestTimeout string `koanf:"request_timeout"`
	RetryBackoff   string `koanf:"retry_backoff"`
}

type NegotiationConfig struct {
	MaxRounds      int    `koanf:"max_rounds"`
	PolicyPath     string `koanf:"policy_path"`
	ShortDefault   string `koanf:"short_default"`
	MinimalDefault string `koanf:"minimal_default"`
}

type TrackerConfig struct {
	TickInterval         string `koanf:"tick_interval"`
	GracePeriod          string `koanf:"grace_period"`
	WarningThreshold     string `koanf:"warning_threshold"`
	CallTimeout          string `koanf:"call_timeout"`
	ShutdownTimeout      string `koanf:"shutdown_timeout"`
	InFlightPollInterval string `koanf:"in_flight_poll_interval"`
	NotifyTTL            string `koanf:"notify_ttl"`
}

type StoreConfig struct {
	Path         string `koanf:"path"`
	LockTimeout  string `koanf:"lock_timeout"`
	LockRetry    string `koanf:"lock_retry"`
	LockMaxRetry int    `koanf:"lock_max_retry"`
}

type NotifyConfig struct {
	Slack    SlackNotifyConfig    `koanf:"slack"`
	Telegram TelegramNotifyConfig `koanf:"telegram"`
}

type SlackNotifyConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
	Channel  string `koanf:"channel"`
}

type TelegramNotifyConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token"`
	ChatID   int64  `koanf:"chat_id"`
}

type EnforceConfig struct {
	Command string `koanf:"command"`
	Timeout string `koanf:"timeout"`
}

// ActivityConfig points at the external probe that answers "is the
// subject still active". Exit code 0 means active.
type ActivityConfig struct {
	Command string `koanf:"command"`
}

type QuietConfig struct {
	Windows []QuietWindowConfig `koanf:"windows"`
}

type QuietWindowConfig struct {
	Start    string `koanf:"start"` // cron spec, e.g. "0 22 * * *"
	Duration string `koanf:"duration"`
}

type MemoryConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Path           string `koanf:"path"`
	EmbeddingModel string `koanf:"embedding_model"`
}

type DaemonConfig struct {
	ShutdownTimeout     string `koanf:"shutdown_timeout"`
	HealthCheckInterval string `koanf:"health_check_interval"`
	WorkspacePath       string `koanf:"workspace_path"`
}

const (
	DefaultServerLogLevel            = "info"
	DefaultDialogueProvider          = "static"
	DefaultDialogueFallback          = "static"
	DefaultDialogueModel             = "gpt-4o-mini"
	DefaultDialogueRequestTimeout    = "5s"
	DefaultDialogueRetryBackoff      = "500ms"
	DefaultNegotiationMaxRounds      = 3
	DefaultNegotiationShortDefault   = "5m"
	DefaultNegotiationMinimalDefault = "2m"
	DefaultTrackerTickInterval       = "2s"
	DefaultTrackerGracePeriod        = "30s"
	DefaultTrackerWarningThreshold   = "1m"
	DefaultTrackerCallTimeout        = "3s"
	DefaultTrackerShutdownTimeout    = "30s"
	DefaultTrackerInFlightPoll       = "100ms"
	DefaultTrackerNotifyTTL          = "24h"
	DefaultStoreLockTimeout          = "30s"
	DefaultStoreLockRetry            = "100ms"
	DefaultStoreLockMaxRetry         = 300
	DefaultEnforceTimeout            = "5s"
	DefaultMemoryEnabled             = false
	DefaultMemoryEmbeddingModel      = "text-embedding-3-small"
	DefaultDaemonShutdownTimeout     = "30s"
	DefaultDaemonHealthCheckInterval = "30s"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"server.log_level":                DefaultServerLogLevel,
		"dialogue.provider":               DefaultDialogueProvider,
		"dialogue.fallback":               DefaultDialogueFallback,
		"dialogue.model":                  DefaultDialogueModel,
		"dialogue.request_timeout":        DefaultDialogueRequestTimeout,
		"dialogue.retry_backoff":          DefaultDialogueRetryBackoff,
		"negotiation.max_rounds":          DefaultNegotiationMaxRounds,
		"negotiation.short_default":       DefaultNegotiationShortDefault,
		"negotiation.minimal_default":     DefaultNegotiationMinimalDefault,
		"tracker.tick_interval":           DefaultTrackerTickInterval,
		"tracker.grace_period":            DefaultTrackerGracePeriod,
		"tracker.warning_threshold":       DefaultTrackerWarningThreshold,
		"tracker.call_timeout":            DefaultTrackerCallTimeout,
		"tracker.shutdown_timeout":        DefaultTrackerShutdownTimeout,
		"tracker.in_flight_poll_interval": DefaultTrackerInFlightPoll,
		"tracker.notify_ttl":              DefaultTrackerNotifyTTL,
		"store.lock_timeout":              DefaultStoreLockTimeout,
		"store.lock_retry":                DefaultStoreLockRetry,
		"store.lock_max_retry":            DefaultStoreLockMaxRetry,
		"enforce.timeout":                 DefaultEnforceTimeout,
		"memory.enabled":                  DefaultMemoryEnabled,
		"memory.embedding_model":          DefaultMemoryEmbeddingModel,
		"daemon.shutdown_timeout":         DefaultDaemonShutdownTimeout,
		"daemon.health_check_interval":    DefaultDaemonHealthCheckInterval,
		"daemon.workspace_path":           filepath.Join(os.Getenv("HOME"), ".yakusoku"),
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".yakusoku", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables
	k.Load(env.Provider("YAKUSOKU_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "YAKUSOKU_")), "_", ".", -1)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Post-Process: Inject standard Env Vars if missing
	if cfg.Dialogue.APIKey == "" {
		switch cfg.Dialogue.Provider {
		case "openai":
			cfg.Dialogue.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.Dialogue.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "gemini":
			cfg.Dialogue.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(cfg.Daemon.WorkspacePath, "agreements")
	}
	if cfg.Memory.Path == "" {
		cfg.Memory.Path = filepath.Join(cfg.Daemon.WorkspacePath, "memory")
	}

	return &cfg, nil
}
