package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// WebhookConfig is the typed configuration for webhook channels. Separate
// URLs and bodies per direction; an empty URL means no request for that
// direction.
type WebhookConfig struct {
	Method   string            `json:"method"`
	URLDown  string            `json:"url_down"`
	URLUp    string            `json:"url_up"`
	BodyDown string            `json:"body_down"`
	BodyUp   string            `json:"body_up"`
	Headers  map[string]string `json:"headers"`
}

type webhookTransport struct {
	cfg WebhookConfig
}

func newWebhook(ch *models.Channel) (Transport, error) {
	var cfg WebhookConfig
	if err := parseConfig(ch, &cfg); err != nil {
		return nil, err
	}
	if cfg.URLDown == "" && cfg.URLUp == "" {
		return nil, fmt.Errorf("webhook channel config: url_down or url_up is required")
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	return &webhookTransport{cfg: cfg}, nil
}

func (t *webhookTransport) spec(check *models.Check) (url, body string) {
	if check.Status == models.StatusUp {
		return t.cfg.URLUp, t.cfg.BodyUp
	}
	return t.cfg.URLDown, t.cfg.BodyDown
}

func (t *webhookTransport) IsNoOp(check *models.Check) bool {
	url, _ := t.spec(check)
	return url == ""
}

// expand substitutes the runtime placeholders supported in webhook URLs
// and bodies.
func expand(s string, check *models.Check) string {
	name := check.Name
	if name == "" {
		name = check.Code
	}
	r := strings.NewReplacer(
		"$CODE", check.Code,
		"$NAME", name,
		"$STATUS", check.Status,
		"$NOW", time.Now().UTC().Format(time.RFC3339),
	)
	return r.Replace(s)
}

func (t *webhookTransport) Notify(ctx context.Context, check *models.Check, n *models.Notification) error {
	url, body := t.spec(check)

	req, err := http.NewRequestWithContext(ctx, t.cfg.Method, expand(url, check),
		strings.NewReader(expand(body, check)))
	if err != nil {
		return permanentError("failed to create request: %v", err)
	}
	for key, value := range t.cfg.Headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" && body != "" {
		req.Header.Set("Content-Type", "text/plain")
	}

	return do(req)
}
