// Package notify is the outbound edge for domain events. Real deployments
// plug email/push/WebSocket delivery here; the core only logs.
package notify

import (
	"context"

	"github.com/datamartgh/datamart/internal/events"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type LogGateway struct {
	log *zap.Logger
}

func NewLogGateway(log *zap.Logger) events.Gateway {
	return &LogGateway{log: log.Named("notify")}
}

func (g *LogGateway) Deliver(ctx context.Context, event events.OutboxEvent) error {
	g.log.Info("domain event",
		zap.String("event_type", event.EventType),
		zap.String("tenant_id", event.TenantID.String()),
		zap.Any("payload", map[string]any(event.Payload)),
	)
	return nil
}

var Module = fx.Module("notify",
	fx.Provide(NewLogGateway),
)
