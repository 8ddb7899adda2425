package agent

import (
	"github.com/datamartgh/datamart/internal/agent/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("agent",
	fx.Provide(repository.Provide),
)
