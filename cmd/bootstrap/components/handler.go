package components

import (
	"time"

	"marmite-orders/internal/handler"
	"marmite-orders/internal/handler/api"
	"marmite-orders/internal/handler/middleware"
	"marmite-orders/internal/pkg/config"
	"marmite-orders/internal/usecase/commands"
	"marmite-orders/internal/usecase/queries"

	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		NewAuthHandler,
		api.NewOrderHandler,
		api.NewBatchHandler,
		api.NewWebhookHandler,
		middleware.NewAuthMiddleware,
	),
	fx.Invoke(handler.NewRouter),
)

func NewAuthHandler(authCommands commands.AuthCommands, userQueries queries.UserQueries, cfg config.Config) *api.AuthHandler {
	tokenDuration, err := time.ParseDuration(cfg.JWT.Duration)
	if err != nil {
		panic("invalid JWT_DURATION: " + err.Error())
	}
	return api.NewAuthHandler(authCommands, userQueries, cfg.Cookie, tokenDuration)
}
