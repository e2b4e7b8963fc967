package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"marmite-orders/internal/infra/metrics"
	"marmite-orders/internal/infra/notify"
	"marmite-orders/internal/infra/stripeclient"
	"marmite-orders/internal/infra/webhookmon"
	"marmite-orders/internal/pkg/clock"
	"marmite-orders/internal/pkg/config"
	"marmite-orders/internal/usecase/commands"

	"go.uber.org/fx"
)

const (
	ledgerSweepInterval = time.Hour
	ledgerRetention     = 24 * time.Hour
)

var InfraModule = fx.Module("infra",
	fx.Provide(
		metrics.New,
		NewWebhookMonitor,
		func(m *webhookmon.Monitor) commands.WebhookLedger { return m },
		NewStripeClient,
		NewChatNotifier,
	),
	fx.Invoke(StartLedgerJanitor),
)

func NewWebhookMonitor(clk clock.Clock) *webhookmon.Monitor {
	return webhookmon.NewMonitor(clk)
}

func NewStripeClient(cfg config.Config) commands.PaymentGateway {
	return stripeclient.New(cfg.Stripe)
}

func NewChatNotifier(cfg config.Config, logger *slog.Logger) commands.Notifier {
	return notify.NewChatNotifier(cfg.Notify, logger)
}

// StartLedgerJanitor periodically drops webhook records older than the
// retention window so the in-memory ledger cannot grow without bound.
func StartLedgerJanitor(lc fx.Lifecycle, monitor *webhookmon.Monitor, logger *slog.Logger) {
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				ticker := time.NewTicker(ledgerSweepInterval)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if removed := monitor.ClearOlderThan(ledgerRetention); removed > 0 {
							logger.Info("swept webhook ledger", "removed", removed)
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			close(done)
			return nil
		},
	})
}
