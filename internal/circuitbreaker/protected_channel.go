package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Kevynz/Vantracing-sub000/internal/db"
)

// Channel mirrors the notify.Channel interface to avoid circular imports.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, notif *db.Notification) error
}

// ProtectedChannel wraps a delivery channel with a CircuitBreaker. When
// the downstream service (SES, SNS, a school's webhook endpoint) starts
// failing, the circuit opens and deliveries fail fast instead of piling
// up behind a dead dependency.
type ProtectedChannel struct {
	channel Channel
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedChannel wraps a channel with circuit breaker protection.
func NewProtectedChannel(channel Channel, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedChannel {
	return &ProtectedChannel{
		channel: channel,
		breaker: breaker,
		logger:  logger,
	}
}

// Name delegates to the underlying channel.
func (p *ProtectedChannel) Name() string {
	return p.channel.Name()
}

// Deliver attempts delivery through the circuit breaker. If the circuit
// is open the delivery is rejected immediately with ErrCircuitOpen.
func (p *ProtectedChannel) Deliver(ctx context.Context, notif *db.Notification) error {
	if !p.breaker.Allow() {
		p.logger.Warn("circuit breaker rejected delivery",
			zap.String("breaker", p.breaker.config.Name),
			zap.String("notification_id", notif.ID.String()),
			zap.String("state", p.breaker.GetState().String()),
		)
		return fmt.Errorf("%w: %s channel unavailable", ErrCircuitOpen, p.breaker.config.Name)
	}

	err := p.channel.Deliver(ctx, notif)
	if err != nil {
		p.breaker.RecordFailure()
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

// Breaker returns the underlying circuit breaker for monitoring.
func (p *ProtectedChannel) Breaker() *CircuitBreaker {
	return p.breaker
}
