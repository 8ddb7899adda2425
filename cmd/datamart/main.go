package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/datamartgh/datamart/internal/agent"
	"github.com/datamartgh/datamart/internal/catalog"
	"github.com/datamartgh/datamart/internal/clock"
	"github.com/datamartgh/datamart/internal/commission"
	"github.com/datamartgh/datamart/internal/config"
	"github.com/datamartgh/datamart/internal/dupcheck"
	"github.com/datamartgh/datamart/internal/events"
	"github.com/datamartgh/datamart/internal/fulfillment"
	"github.com/datamartgh/datamart/internal/locks"
	"github.com/datamartgh/datamart/internal/logger"
	"github.com/datamartgh/datamart/internal/migration"
	"github.com/datamartgh/datamart/internal/notify"
	"github.com/datamartgh/datamart/internal/order"
	"github.com/datamartgh/datamart/internal/rates"
	"github.com/datamartgh/datamart/internal/scheduler"
	"github.com/datamartgh/datamart/internal/server"
	"github.com/datamartgh/datamart/internal/uow"
	"github.com/datamartgh/datamart/internal/wallet"
	"github.com/datamartgh/datamart/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		uow.Module,
		locks.Module,
		migration.Module,

		// Domain
		agent.Module,
		catalog.Module,
		rates.Module,
		dupcheck.Module,
		fulfillment.Module,
		events.Module,
		notify.Module,
		wallet.Module,
		order.Module,
		commission.Module,

		// Surfaces
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
