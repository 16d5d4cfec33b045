package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/harunnryd/yakusoku/internal/config"
	"github.com/harunnryd/yakusoku/internal/daemon"
	"github.com/harunnryd/yakusoku/internal/notify"
)

// NotifierComponent assembles the notification fan-out from config. The
// slog sink is always present; Slack and Telegram join when enabled.
type NotifierComponent struct {
	cfg *config.NotifyConfig

	mu       sync.RWMutex
	notifier notify.Notifier
	sinks    []string
}

func NewNotifierComponent(cfg *config.NotifyConfig) *NotifierComponent {
	return &NotifierComponent{cfg: cfg}
}

func (n *NotifierComponent) Name() string {
	return "Notifier"
}

func (n *NotifierComponent) Dependencies() []string {
	return nil
}

func (n *NotifierComponent) Init(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	sinks := []notify.Notifier{notify.LogNotifier{}}
	names := []string{"log"}

	if n.cfg.Slack.Enabled {
		if n.cfg.Slack.BotToken == "" || n.cfg.Slack.Channel == "" {
			return fmt.Errorf("slack notifier enabled but bot_token or channel missing")
		}
		sinks = append(sinks, notify.NewSlackNotifier(n.cfg.Slack.BotToken, n.cfg.Slack.Channel))
		names = append(names, "slack")
	}

	if n.cfg.Telegram.Enabled {
		if n.cfg.Telegram.BotToken == "" || n.cfg.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram notifier enabled but bot_token or chat_id missing")
		}
		tg, err := notify.NewTelegramNotifier(n.cfg.Telegram.BotToken, n.cfg.Telegram.ChatID)
		if err != nil {
			return fmt.Errorf("create telegram notifier: %w", err)
		}
		sinks = append(sinks, tg)
		names = append(names, "telegram")
	}

	n.notifier = notify.NewMulti(sinks...)
	n.sinks = names

	slog.Info("Notifier initialized", "component", n.Name(), "sinks", names)
	return nil
}

func (n *NotifierComponent) Start(ctx context.Context) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.notifier == nil {
		return fmt.Errorf("notifier not initialized")
	}
	return nil
}

func (n *NotifierComponent) Stop(ctx context.Context) error {
	return nil
}

func (n *NotifierComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.notifier == nil {
		return &daemon.ComponentHealth{Name: n.Name(), Healthy: false, Error: fmt.Errorf("not initialized")}, nil
	}
	return &daemon.ComponentHealth{Name: n.Name(), Healthy: true}, nil
}

func (n *NotifierComponent) GetNotifier() notify.Notifier {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.notifier
}
