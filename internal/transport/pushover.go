package transport

import (
	"context"
	"fmt"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

const pushoverMessagesURL = "https://api.pushover.net/1/messages.json"

// PushoverConfig is the typed configuration for pushover channels.
// Priorities follow the pushover scale (-2 lowest .. 2 emergency).
type PushoverConfig struct {
	UserKey    string `json:"user_key"`
	Priority   int    `json:"priority"`
	PriorityUp int    `json:"priority_up"`
}

type pushoverTransport struct {
	cfg  PushoverConfig
	deps Deps
}

func newPushover(ch *models.Channel, deps Deps) (Transport, error) {
	var cfg PushoverConfig
	if err := parseConfig(ch, &cfg); err != nil {
		return nil, err
	}
	if cfg.UserKey == "" {
		return nil, fmt.Errorf("pushover channel config: user_key is required")
	}
	return &pushoverTransport{cfg: cfg, deps: deps}, nil
}

func (t *pushoverTransport) IsNoOp(check *models.Check) bool {
	return false
}

func (t *pushoverTransport) Notify(ctx context.Context, check *models.Check, n *models.Notification) error {
	token := t.deps.Cfg.PushoverToken
	if token == "" {
		return permanentError("pushover is not configured")
	}

	if t.deps.Limiter != nil {
		ok, err := t.deps.Limiter.AuthorizePushover(ctx, t.cfg.UserKey)
		if err != nil {
			return transientError("rate limit check failed: %v", err)
		}
		if !ok {
			return transientError("rate limit exceeded")
		}
	}

	priority := t.cfg.Priority
	if check.Status == models.StatusUp {
		priority = t.cfg.PriorityUp
	}

	payload := map[string]any{
		"token":    token,
		"user":     t.cfg.UserKey,
		"title":    subject(check),
		"message":  details(check),
		"priority": priority,
	}
	if priority == 2 {
		// Emergency priority requires retry/expire parameters.
		payload["retry"] = 300
		payload["expire"] = 86400
	}

	return postJSON(ctx, pushoverMessagesURL, payload)
}
