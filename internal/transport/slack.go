package transport

import (
	"context"
	"fmt"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// SlackConfig is the typed configuration for slack and mattermost channels
// (both speak the incoming-webhook format).
type SlackConfig struct {
	URL string `json:"url"`
}

type slackTransport struct {
	cfg SlackConfig
}

func newSlack(ch *models.Channel) (Transport, error) {
	var cfg SlackConfig
	if err := parseConfig(ch, &cfg); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%s channel config: url is required", ch.Kind)
	}
	return &slackTransport{cfg: cfg}, nil
}

func (t *slackTransport) IsNoOp(check *models.Check) bool {
	return false
}

func (t *slackTransport) Notify(ctx context.Context, check *models.Check, n *models.Notification) error {
	color := "danger"
	if check.Status == models.StatusUp {
		color = "good"
	}

	payload := map[string]any{
		"text": subject(check),
		"attachments": []map[string]any{{
			"color":     color,
			"fallback":  subject(check),
			"text":      details(check),
			"mrkdwn_in": []string{"text"},
		}},
	}

	return postJSON(ctx, t.cfg.URL, payload)
}
