package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/fd1az/crosschain-arb/business/arbitrage/domain"
	chainDomain "github.com/fd1az/crosschain-arb/business/chain/domain"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

// EventKind identifies what an Event carries.
type EventKind int

const (
	EventOpportunityFound EventKind = iota + 1
	EventExecutionFinished
	EventChainHealthChanged
)

// Event is one observer notification.
type Event struct {
	Kind        EventKind
	Opportunity domain.Opportunity
	Result      domain.ExecutionResult
	Chain       string
	Health      chainDomain.HealthStatus
}

// Dispatcher fans events out to reporters from a single goroutine, so every
// reporter sees events in emission order. Emit blocks when the buffer is
// full rather than dropping. Events are only accepted while running, and
// every accepted event is delivered before Close returns.
type Dispatcher struct {
	reporters []Reporter
	logger    logger.LoggerInterface

	ch   chan Event
	stop chan struct{}
	done chan struct{}
	once sync.Once

	// mu is held shared by Emit across its send and exclusively by Close
	// while it stops intake.
	mu      sync.RWMutex
	running bool
}

// NewDispatcher creates a stopped dispatcher.
func NewDispatcher(buffer int, log logger.LoggerInterface, reporters ...Reporter) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		reporters: reporters,
		logger:    log,
		ch:        make(chan Event, buffer),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start begins delivery on a new goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	d.running = true
	d.mu.Unlock()
	go d.run(ctx)
}

// run delivers events until Close, then drains what is buffered.
func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	for {
		select {
		case ev := <-d.ch:
			d.deliver(ctx, ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.ch:
					d.deliver(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

// Emit queues ev. It returns false if the dispatcher is not running or ctx
// ended first.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running {
		return false
	}
	select {
	case d.ch <- ev:
		return true
	case <-ctx.Done():
	}
	d.logger.Warn(ctx, "event not queued", "kind", ev.Kind)
	return false
}

// Close stops accepting events and waits until buffered ones are delivered.
// It must only be called after Start.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		close(d.stop)
	})
	<-d.done
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, r := range d.reporters {
		d.safeDeliver(ctx, r, ev)
	}
}

func (d *Dispatcher) safeDeliver(ctx context.Context, r Reporter, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error(ctx, "reporter panicked", "reporter", fmt.Sprintf("%T", r), "panic", p)
		}
	}()

	switch ev.Kind {
	case EventOpportunityFound:
		r.OpportunityFound(ctx, ev.Opportunity)
	case EventExecutionFinished:
		r.ExecutionFinished(ctx, ev.Result)
	case EventChainHealthChanged:
		r.ChainHealthChanged(ctx, ev.Chain, ev.Health)
	}
}
