package commands

import (
	"context"
	"time"

	"marmite-orders/internal/infra/stripeclient"
	"marmite-orders/internal/infra/webhookmon"
)

// PaymentGateway is the write-side port to the payment provider.
type PaymentGateway interface {
	VerifyNotification(payload []byte, signature string) error
	GetPaymentIntent(ctx context.Context, id string) (*stripeclient.PaymentIntentInfo, error)
}

// WebhookLedger records the fate of every payment notification for the
// admin observability endpoints.
type WebhookLedger interface {
	Track(eventID, eventType, objectID string)
	MarkFailed(eventID, errMsg string)
	MarkUnmatched(eventID, eventType, objectID string)
	WasProcessed(eventID string) bool
	GetStats() webhookmon.Stats
	GetFailedEvents() []webhookmon.FailedEvent
	ClearOlderThan(maxAge time.Duration) int
	Reset()
}

// Notifier announces order lifecycle events to the team chat. Best-effort.
type Notifier interface {
	NotifyOrderEvent(topic string, payload map[string]any)
}
