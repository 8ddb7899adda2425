package order

import (
	"github.com/datamartgh/datamart/internal/order/repository"
	"github.com/datamartgh/datamart/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
