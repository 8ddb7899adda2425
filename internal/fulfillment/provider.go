// Package fulfillment is the boundary to the telecom aggregator that loads
// bundles onto recipient numbers. The core ships a simulator; real
// deployments implement Provider against the aggregator API.
package fulfillment

import (
	"fmt"
	"math/rand"
	"sync"

	"context"

	"github.com/datamartgh/datamart/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Request identifies one bundle delivery.
type Request struct {
	OrderNumber    string
	RecipientPhone string
	BundleCode     string
	Provider       string
	DataVolumeMB   int64
}

// Provider fulfills a single order item. A returned error marks the item
// failed; the order state machine handles refunds.
type Provider interface {
	Fulfill(ctx context.Context, req Request) error
}

type Simulator struct {
	log         *zap.Logger
	failureRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator fails a fixed fraction of deliveries at random.
func NewSimulator(cfg config.Config, log *zap.Logger) Provider {
	return &Simulator{
		log:         log.Named("fulfillment.simulator"),
		failureRate: cfg.FulfillmentFailureRate,
		rng:         rand.New(rand.NewSource(rand.Int63())),
	}
}

func (s *Simulator) Fulfill(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	roll := s.rng.Float64()
	s.mu.Unlock()

	if roll < s.failureRate {
		s.log.Warn("simulated fulfillment failure",
			zap.String("order_number", req.OrderNumber),
			zap.String("recipient", req.RecipientPhone),
		)
		return fmt.Errorf("provider %s rejected bundle %s", req.Provider, req.BundleCode)
	}
	return nil
}

var Module = fx.Module("fulfillment",
	fx.Provide(NewSimulator),
)
