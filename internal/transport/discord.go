package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/pulsewatch/pulsewatch/internal/models"
)

// DiscordConfig is the typed configuration for discord channels.
type DiscordConfig struct {
	URL string `json:"url"`
}

type discordTransport struct {
	cfg DiscordConfig
}

func newDiscord(ch *models.Channel) (Transport, error) {
	var cfg DiscordConfig
	if err := parseConfig(ch, &cfg); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("discord channel config: url is required")
	}
	// Discord dropped the discordapp.com domain for webhooks.
	cfg.URL = strings.Replace(cfg.URL, "https://discordapp.com/", "https://discord.com/", 1)
	return &discordTransport{cfg: cfg}, nil
}

func (t *discordTransport) IsNoOp(check *models.Check) bool {
	return false
}

func (t *discordTransport) Notify(ctx context.Context, check *models.Check, n *models.Notification) error {
	color := 0xE01E5A
	if check.Status == models.StatusUp {
		color = 0x2EB67D
	}

	payload := map[string]any{
		"embeds": []map[string]any{{
			"title":       subject(check),
			"description": details(check),
			"color":       color,
		}},
	}

	return postJSON(ctx, t.cfg.URL, payload)
}
