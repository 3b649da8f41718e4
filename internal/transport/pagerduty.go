package transport

import (
	"context"
	"fmt"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDutyConfig is the typed configuration for pagerduty channels.
type PagerDutyConfig struct {
	ServiceKey string `json:"service_key"`
}

type pagerDutyTransport struct {
	cfg PagerDutyConfig
}

func newPagerDuty(ch *models.Channel) (Transport, error) {
	var cfg PagerDutyConfig
	if err := parseConfig(ch, &cfg); err != nil {
		return nil, err
	}
	if cfg.ServiceKey == "" {
		return nil, fmt.Errorf("pagerduty channel config: service_key is required")
	}
	return &pagerDutyTransport{cfg: cfg}, nil
}

func (t *pagerDutyTransport) IsNoOp(check *models.Check) bool {
	return false
}

func (t *pagerDutyTransport) Notify(ctx context.Context, check *models.Check, n *models.Notification) error {
	// A "down" flip opens an incident, the matching "up" flip resolves it
	// via the shared dedup key.
	eventAction := "trigger"
	if check.Status == models.StatusUp {
		eventAction = "resolve"
	}

	payload := map[string]any{
		"routing_key":  t.cfg.ServiceKey,
		"event_action": eventAction,
		"dedup_key":    check.Code,
		"payload": map[string]any{
			"summary":  subject(check),
			"source":   check.Code,
			"severity": "critical",
			"custom_details": map[string]any{
				"status": check.Status,
			},
		},
	}

	return postJSON(ctx, pagerDutyEventsURL, payload)
}
