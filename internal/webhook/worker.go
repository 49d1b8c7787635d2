package webhook

import (
	"context"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	queueSize    = 256
	numConsumers = 4
)

// Worker decouples the HTTP boundary from processing: the handler enqueues
// the raw body and answers the bank immediately.
type Worker struct {
	log       *zap.Logger
	processor *Processor

	queue  chan []byte
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

func NewWorker(log *zap.Logger, processor *Processor) *Worker {
	return &Worker{
		log:       log.Named("webhook.worker"),
		processor: processor,
		queue:     make(chan []byte, queueSize),
	}
}

// Enqueue hands a raw webhook body to the consumers. Never blocks: when the
// queue is full the payload is dropped and the reconciliation job picks the
// status change up on its next cycle. Payloads arriving during shutdown are
// rejected the same way.
func (w *Worker) Enqueue(raw []byte) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		w.log.Warn("webhook worker stopped, payload dropped")
		return false
	}
	select {
	case w.queue <- raw:
		return true
	default:
		w.log.Error("webhook queue full, payload dropped",
			zap.Int("queue_size", queueSize),
		)
		return false
	}
}

func (w *Worker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	for i := 0; i < numConsumers; i++ {
		w.wg.Add(1)
		go w.consume(ctx)
	}
}

// Stop drains the queue and waits for the consumers. Safe to call twice; any
// Enqueue racing the shutdown is rejected before the channel closes.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.queue)
	w.wg.Wait()
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Worker) consume(ctx context.Context) {
	defer w.wg.Done()
	for raw := range w.queue {
		if err := w.processor.Process(ctx, raw); err != nil {
			w.log.Error("webhook processing failed", zap.Error(err))
		}
	}
}

var Module = fx.Module("webhook",
	fx.Provide(NewProcessor),
	fx.Provide(NewWorker),
	fx.Invoke(registerWorker),
)

func registerWorker(lc fx.Lifecycle, worker *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			worker.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			worker.Stop()
			return nil
		},
	})
}
