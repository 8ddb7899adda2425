package commission

import (
	"github.com/datamartgh/datamart/internal/commission/repository"
	"github.com/datamartgh/datamart/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
