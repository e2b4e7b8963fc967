package stripeclient

import (
	"context"
	"log/slog"
	"time"

	"marmite-orders/internal/pkg/config"
	"marmite-orders/internal/pkg/errs"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrNotConfigured    = errs.New("stripe client is not configured")
	ErrInvalidSignature = errs.New("invalid webhook signature")
)

// PaymentIntentInfo is the provider-neutral projection of a payment object
// consumed by the sync/pull reconciliation path.
type PaymentIntentInfo struct {
	ID          string
	AmountCents int64
	Currency    string
	Status      string
	CreatedAt   time.Time
}

type Client struct {
	api           *client.API
	webhookSecret string
}

func New(cfg config.StripeConfig) *Client {
	var api *client.API
	if cfg.APIKey != "" {
		api = &client.API{}
		api.Init(cfg.APIKey, nil)
	}

	if cfg.WebhookSecret == "" {
		slog.Warn("stripe webhook secret not set, signature verification disabled")
	}

	return &Client{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
	}
}

// VerifyNotification checks the provider signature on a raw webhook payload.
// With no secret configured (development, tests) verification is skipped,
// matching how the service has always run locally.
func (c *Client) VerifyNotification(payload []byte, signature string) error {
	if c.webhookSecret == "" {
		return nil
	}

	if _, err := webhook.ConstructEvent(payload, signature, c.webhookSecret); err != nil {
		return errs.Mark(err, ErrInvalidSignature)
	}
	return nil
}

// GetPaymentIntent pulls the current payment object from the provider.
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntentInfo, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}

	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	}
	pi, err := c.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, errs.Wrap(err, "failed to retrieve payment intent")
	}

	return &PaymentIntentInfo{
		ID:          pi.ID,
		AmountCents: pi.Amount,
		Currency:    string(pi.Currency),
		Status:      string(pi.Status),
		CreatedAt:   time.Unix(pi.Created, 0).UTC(),
	}, nil
}
