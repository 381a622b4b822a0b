package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Embed colours by alert kind.
const (
	colorBlocked = 0xE74C3C
	colorWarning = 0xF1C40F
	colorInfo    = 0x3498DB
)

// DiscordSender posts alerts to a Discord webhook as a single embed.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for webhookURL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: defaultHTTPTimeout},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Send posts the alert. Discord answers 204 on success.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	payload := map[string]any{
		"embeds": []discordEmbed{{
			Title:       title,
			Description: message,
			Color:       embedColor(title),
		}},
	}
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

func (d *DiscordSender) Name() string { return "discord" }

func embedColor(title string) int {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "blocked"), strings.Contains(t, "paused"):
		return colorBlocked
	case strings.Contains(t, "warning"), strings.Contains(t, "failed"):
		return colorWarning
	default:
		return colorInfo
	}
}
