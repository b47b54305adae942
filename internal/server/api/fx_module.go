package api

import "go.uber.org/fx"

var Module = fx.Module("api",
	fx.Provide(NewListHandlers),
	fx.Provide(NewAccessHandlers),
	fx.Provide(NewCronHandlers),
	fx.Provide(NewSystemHandlers),
)
