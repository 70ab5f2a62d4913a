package circuitbreaker

import (
	"context"

	"go.uber.org/zap"

	"github.com/WYOhellboy/WebhookHub/internal/notify"
)

// ProtectedNotifier wraps a notify.Notifier with a circuit breaker. While
// the circuit is open, Send reports failure without touching the network,
// so a dead destination cannot stall the ingest path for its full timeout
// on every webhook.
type ProtectedNotifier struct {
	inner   notify.Notifier
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// Protect wraps a notifier with its own circuit breaker.
func Protect(inner notify.Notifier, cfg Config, logger *zap.Logger) *ProtectedNotifier {
	return &ProtectedNotifier{
		inner:   inner,
		breaker: New(cfg, logger),
		logger:  logger,
	}
}

func (p *ProtectedNotifier) Name() string {
	return p.inner.Name()
}

func (p *ProtectedNotifier) Configured() bool {
	return p.inner.Configured()
}

// Send attempts the delivery through the circuit breaker. A rejected
// attempt counts as a failed delivery for the caller but is not recorded
// against the breaker.
func (p *ProtectedNotifier) Send(ctx context.Context, d notify.Delivery) bool {
	if !p.breaker.Allow() {
		p.logger.Warn("delivery rejected, circuit open",
			zap.String("destination", p.inner.Name()),
			zap.String("channel", d.Channel.Slug),
		)
		return false
	}

	ok := p.inner.Send(ctx, d)
	if ok {
		p.breaker.RecordSuccess()
	} else {
		p.breaker.RecordFailure()
	}
	return ok
}
