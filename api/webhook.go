package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// BotAPIBase is the Bot API endpoint; tests point it at a local server.
var BotAPIBase = "https://api.telegram.org"

// WebhookURL is the public address Telegram posts updates to.
func WebhookURL(base, secret string) string {
	return strings.TrimRight(base, "/") + "/webhook/" + secret
}

// SetWebhook registers url with the Bot API for message and channel post updates.
func SetWebhook(ctx context.Context, token, url string) error {
	body, err := json.Marshal(map[string]any{
		"url":             url,
		"allowed_updates": []string{"message", "channel_post"},
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/bot%s/setWebhook", BotAPIBase, token), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	defer resp.Body.Close()
	var out struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("setWebhook: decode response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("setWebhook: %s", out.Description)
	}
	return nil
}
