package wallet

import (
	"github.com/datamartgh/datamart/internal/wallet/repository"
	"github.com/datamartgh/datamart/internal/wallet/service"
	"go.uber.org/fx"
)

var Module = fx.Module("wallet",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
