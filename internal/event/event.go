// Package event carries boleto lifecycle notifications to in-process
// subscribers.
package event

import (
	"context"
	"sync"

	boletodomain "github.com/smallbiznis/cobranca/internal/boleto/domain"
	invoicedomain "github.com/smallbiznis/cobranca/internal/invoice/domain"
	"go.uber.org/zap"
)

type Name string

const (
	BoletoRegistered Name = "boleto.registered"
	BoletoPaid       Name = "boleto.paid"
	BoletoCanceled   Name = "boleto.canceled"
)

// Event is published after the owning transaction commits, so subscribers
// observe persisted state.
type Event struct {
	Name   Name
	Fatura *invoicedomain.Fatura
	Boleto *boletodomain.Boleto
}

type Handler func(ctx context.Context, evt Event)

// Bus dispatches events synchronously in subscription order. A slow
// subscriber delays the publisher, which keeps ordering trivial and is fine
// at this volume.
type Bus struct {
	log *zap.Logger

	mu       sync.RWMutex
	handlers map[Name][]Handler
}

func NewBus(log *zap.Logger) *Bus {
	bus := &Bus{
		log:      log.Named("event.bus"),
		handlers: make(map[Name][]Handler),
	}
	bus.Subscribe(BoletoRegistered, bus.logEvent)
	bus.Subscribe(BoletoPaid, bus.logEvent)
	bus.Subscribe(BoletoCanceled, bus.logEvent)
	return bus
}

func (b *Bus) Subscribe(name Name, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

func (b *Bus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	handlers := b.handlers[evt.Name]
	b.mu.RUnlock()
	for _, handler := range handlers {
		b.dispatch(ctx, evt, handler)
	}
}

// dispatch isolates subscriber panics: one misbehaving subscriber must not
// take the publisher down.
func (b *Bus) dispatch(ctx context.Context, evt Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event subscriber panicked",
				zap.String("event", string(evt.Name)),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, evt)
}

func (b *Bus) logEvent(ctx context.Context, evt Event) {
	fields := []zap.Field{zap.String("event", string(evt.Name))}
	if evt.Fatura != nil {
		fields = append(fields, zap.Int64("fatura_id", int64(evt.Fatura.ID)))
	}
	if evt.Boleto != nil {
		fields = append(fields,
			zap.Int64("boleto_id", int64(evt.Boleto.ID)),
			zap.String("nosso_numero", evt.Boleto.NossoNumero),
			zap.String("status", string(evt.Boleto.Status)),
		)
	}
	b.log.Info("boleto lifecycle event", fields...)
}
