package uow

import "go.uber.org/fx"

var Module = fx.Module("uow",
	fx.Provide(New),
)
