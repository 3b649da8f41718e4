package transport

import (
	"context"
	"fmt"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// TelegramConfig is the typed configuration for telegram channels. The bot
// token is service-wide configuration, not per-channel.
type TelegramConfig struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

type telegramTransport struct {
	cfg  TelegramConfig
	deps Deps
}

func newTelegram(ch *models.Channel, deps Deps) (Transport, error) {
	var cfg TelegramConfig
	if err := parseConfig(ch, &cfg); err != nil {
		return nil, err
	}
	if cfg.ID == 0 {
		return nil, fmt.Errorf("telegram channel config: chat id is required")
	}
	return &telegramTransport{cfg: cfg, deps: deps}, nil
}

func (t *telegramTransport) IsNoOp(check *models.Check) bool {
	return false
}

func (t *telegramTransport) Notify(ctx context.Context, check *models.Check, n *models.Notification) error {
	token := t.deps.Cfg.TelegramToken
	if token == "" {
		return permanentError("telegram is not configured")
	}

	if t.deps.Limiter != nil {
		ok, err := t.deps.Limiter.AuthorizeTelegram(ctx, t.cfg.ID)
		if err != nil {
			return transientError("rate limit check failed: %v", err)
		}
		if !ok {
			return transientError("rate limit exceeded")
		}
	}

	payload := map[string]any{
		"chat_id":    t.cfg.ID,
		"text":       fmt.Sprintf("<b>%s</b>\n\n%s", subject(check), details(check)),
		"parse_mode": "HTML",
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", token)
	return postJSON(ctx, url, payload)
}
