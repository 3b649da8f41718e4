// Package transport delivers notifications to their destination, one
// implementation per channel kind.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/models"
	"github.com/pulsewatch/pulsewatch/internal/ratelimit"
)

// Error is a notification delivery failure. Permanent failures (invalid
// destination, revoked credentials) cause the channel to be auto-disabled;
// transient failures (network or provider hiccups) leave it enabled.
type Error struct {
	Message   string
	Permanent bool
}

func (e *Error) Error() string {
	return e.Message
}

func transientError(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

func permanentError(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Permanent: true}
}

// Transport is the per-channel-kind delivery capability. The core never
// inspects per-kind payload formats; it only consumes this interface.
type Transport interface {
	// IsNoOp reports whether notifying about the check's current status
	// would do nothing (e.g. the channel opted out of "up" alerts).
	IsNoOp(check *models.Check) bool
	Notify(ctx context.Context, check *models.Check, n *models.Notification) error
}

// Deps carries the shared collaborators transports need.
type Deps struct {
	Cfg     *config.Config
	Limiter *ratelimit.Limiter
}

// ForChannel selects and constructs the transport for the channel's kind,
// parsing and validating its typed configuration. Selection happens here,
// once, never by string comparison in dispatch logic.
func ForChannel(ch *models.Channel, deps Deps) (Transport, error) {
	switch ch.Kind {
	case models.KindEmail:
		return newEmail(ch, deps.Cfg.SMTP)
	case models.KindWebhook:
		return newWebhook(ch)
	case models.KindSlack, models.KindMattermost:
		return newSlack(ch)
	case models.KindDiscord:
		return newDiscord(ch)
	case models.KindTelegram:
		return newTelegram(ch, deps)
	case models.KindPagerDuty:
		return newPagerDuty(ch)
	case models.KindPushover:
		return newPushover(ch, deps)
	default:
		return nil, fmt.Errorf("unknown channel kind: %q", ch.Kind)
	}
}

// ValidateConfig checks a channel's JSON value against its kind's schema.
// Called at the channel creation/update boundary so dispatch never sees a
// malformed config.
func ValidateConfig(kind, value string) error {
	ch := &models.Channel{Kind: kind, Value: value}
	_, err := ForChannel(ch, Deps{Cfg: &config.Config{}})
	return err
}

func parseConfig(ch *models.Channel, dst any) error {
	if err := json.Unmarshal([]byte(ch.Value), dst); err != nil {
		return fmt.Errorf("%s channel config: %w", ch.Kind, err)
	}
	return nil
}

// subject builds the one-line alert summary for a check.
func subject(check *models.Check) string {
	name := check.Name
	if name == "" {
		name = check.Code
	}
	if check.Status == models.StatusUp {
		return fmt.Sprintf("%s is UP", name)
	}
	return fmt.Sprintf("%s is DOWN", name)
}

// details builds the multi-line alert body for a check.
func details(check *models.Check) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s\n\n", subject(check))
	fmt.Fprintf(&b, "Check: %s\n", check.Code)
	if check.LastPing != nil {
		fmt.Fprintf(&b, "Last ping: %s\n", check.LastPing.UTC().Format(time.RFC3339))
	}
	return b.String()
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

// postJSON sends a JSON payload and classifies the response: 2xx is
// success, 4xx is permanent, anything else transient.
func postJSON(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return permanentError("failed to marshal payload: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return permanentError("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req)
}

func do(req *http.Request) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return transientError("connection failed: %v", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return permanentError("received status %d", resp.StatusCode)
	default:
		return transientError("received status %d", resp.StatusCode)
	}
}
