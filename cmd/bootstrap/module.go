package bootstrap

import (
	"marmite-orders/cmd/bootstrap/components"

	"go.uber.org/fx"
)

var Module = fx.Options(
	ConfigModule,
	DBModule,
	JWTModule,
	InfraModule,
	components.PersistenceModule,
	components.UseCaseModule,
	components.HandlerModule,
)
