package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"marmite-orders/internal/pkg/config"
)

// ChatNotifier posts order lifecycle announcements to a chat webhook.
// Strictly best-effort: failures are logged and swallowed, and the caller
// never waits on delivery.
type ChatNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func NewChatNotifier(cfg config.NotifyConfig, logger *slog.Logger) *ChatNotifier {
	return &ChatNotifier{
		url:    cfg.ChatWebhookURL,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// NotifyOrderEvent fires a one-way notification. Runs in its own goroutine;
// the primary transaction must never block on or fail because of it.
func (n *ChatNotifier) NotifyOrderEvent(topic string, payload map[string]any) {
	if n.url == "" {
		return
	}

	go func() {
		body, err := json.Marshal(map[string]any{
			"topic": topic,
			"data":  payload,
		})
		if err != nil {
			n.logger.Warn("failed to encode chat notification", "topic", topic, "error", err.Error())
			return
		}

		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, n.url, bytes.NewReader(body))
		if err != nil {
			n.logger.Warn("failed to build chat notification request", "topic", topic, "error", err.Error())
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			n.logger.Warn("chat notification delivery failed", "topic", topic, "error", err.Error())
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			n.logger.Warn("chat notification rejected", "topic", topic, "status", resp.StatusCode)
		}
	}()
}
