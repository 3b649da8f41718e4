package transport

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/models"
)

// EmailConfig is the typed configuration for email channels.
type EmailConfig struct {
	Value string `json:"value"`
	Up    bool   `json:"up"`
	Down  bool   `json:"down"`
}

type emailTransport struct {
	cfg  EmailConfig
	smtp config.SMTPConfig
}

func newEmail(ch *models.Channel, smtpCfg config.SMTPConfig) (Transport, error) {
	var cfg EmailConfig
	if err := parseConfig(ch, &cfg); err != nil {
		return nil, err
	}
	if cfg.Value == "" {
		return nil, fmt.Errorf("email channel config: recipient address is required")
	}
	return &emailTransport{cfg: cfg, smtp: smtpCfg}, nil
}

func (t *emailTransport) IsNoOp(check *models.Check) bool {
	if check.Status == models.StatusUp {
		return !t.cfg.Up
	}
	return !t.cfg.Down
}

func (t *emailTransport) Notify(ctx context.Context, check *models.Check, n *models.Notification) error {
	if t.smtp.Host == "" {
		return transientError("smtp is not configured")
	}

	msg := fmt.Sprintf("From: %s\r\n", t.smtp.From)
	msg += fmt.Sprintf("To: %s\r\n", t.cfg.Value)
	msg += fmt.Sprintf("Subject: %s\r\n", subject(check))
	msg += "MIME-Version: 1.0\r\n"
	msg += "Content-Type: text/plain; charset=UTF-8\r\n"
	msg += "\r\n"
	msg += details(check)

	addr := fmt.Sprintf("%s:%d", t.smtp.Host, t.smtp.Port)
	var auth smtp.Auth
	if t.smtp.Username != "" && t.smtp.Password != "" {
		auth = smtp.PlainAuth("", t.smtp.Username, t.smtp.Password, t.smtp.Host)
	}

	if err := smtp.SendMail(addr, auth, t.smtp.From, []string{t.cfg.Value}, []byte(msg)); err != nil {
		return transientError("failed to send email: %v", err)
	}
	return nil
}
