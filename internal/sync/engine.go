// Package sync applies push events and remote operation outcomes to the chat
// state. The engine is the single dispatch point: it drains one ordered bus
// subscription and applies each event as one state transition, so events are
// applied in the order they were published.
package sync

import (
	"context"
	"time"

	"github.com/matheus3301/chatmirror/internal/bus"
	"github.com/matheus3301/chatmirror/internal/events"
	"github.com/matheus3301/chatmirror/internal/metrics"
	"github.com/matheus3301/chatmirror/internal/state"
	"go.uber.org/zap"
)

// KindStateChanged is published after every applied event.
const KindStateChanged = "state.changed"

// Change is the payload of a state.changed event.
type Change struct {
	Kind           string `json:"kind"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Options tune the engine.
type Options struct {
	// TypingTTL evicts typers with no fresh typing event for this long.
	// Zero disables eviction.
	TypingTTL time.Duration
	Metrics   *metrics.Metrics
}

// Engine owns all writes to the chat state.
type Engine struct {
	store   *state.Store
	bus     *bus.Bus
	logger  *zap.Logger
	metrics *metrics.Metrics
	ttl     time.Duration
	now     func() time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewEngine creates a new sync engine.
func NewEngine(st *state.Store, b *bus.Bus, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   st,
		bus:     b,
		logger:  logger,
		metrics: opts.Metrics,
		ttl:     opts.TypingTTL,
		now:     time.Now,
	}
}

// Start subscribes to chat events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.SubscribeOrdered(events.Namespace, 256)
	go e.loop(ctx, ch, unsub)
}

func (e *Engine) loop(ctx context.Context, ch <-chan bus.Event, unsub func()) {
	defer close(e.done)
	defer unsub()

	var sweep <-chan time.Time
	if e.ttl > 0 {
		ticker := time.NewTicker(e.sweepInterval())
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case evt := <-ch:
			e.handleEvent(evt)
		case <-sweep:
			e.ExpireTyping()
		case <-ctx.Done():
			e.drain(ch)
			return
		}
	}
}

// drain applies events already buffered when the engine stops, such as the
// failures published for operations cancelled at shutdown.
func (e *Engine) drain(ch <-chan bus.Event) {
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			e.handleEvent(evt)
		default:
			return
		}
	}
}

// Stop stops the engine and waits for the loop to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) sweepInterval() time.Duration {
	if d := e.ttl / 2; d >= 100*time.Millisecond {
		return d
	}
	return 100 * time.Millisecond
}

func (e *Engine) handleEvent(evt bus.Event) {
	ev, ok := evt.Payload.(events.Event)
	if !ok {
		e.metrics.EventDropped(metrics.ReasonUndecoded)
		e.logger.Warn("dropping bus event without chat payload", zap.String("kind", evt.Kind))
		return
	}
	if err := e.Apply(ev); err != nil {
		e.logger.Warn("dropping invalid event", zap.String("kind", ev.Kind()), zap.Error(err))
	}
}

// Apply applies one event to the state as a single transition and announces
// the change. Validation failures leave the state untouched and are returned;
// missing targets are not errors.
func (e *Engine) Apply(ev events.Event) error {
	var (
		convID string
		err    error
	)
	switch ev := ev.(type) {
	case events.SessionStarted:
		e.store.Init(ev.UserID)
	case events.SessionEnded:
		e.store.Reset()
	default:
		now := e.now()
		e.store.Update(func(tx *state.Tx) {
			convID, err = apply(tx, ev, now)
		})
	}
	if err != nil {
		e.metrics.EventDropped(metrics.ReasonInvalid)
		return err
	}

	e.metrics.EventApplied(ev.Kind())
	if op, phase, ok := operationPhase(ev); ok {
		e.metrics.Operation(string(op.Kind), string(phase))
	}
	e.bus.Publish(bus.Event{
		Kind:      KindStateChanged,
		Timestamp: time.Now(),
		Payload:   Change{Kind: ev.Kind(), ConversationID: convID},
	})
	return nil
}

// ExpireTyping evicts typers whose last event is older than the TTL.
func (e *Engine) ExpireTyping() int {
	if e.ttl <= 0 {
		return 0
	}
	cutoff := e.now().Add(-e.ttl)
	var n int
	e.store.Update(func(tx *state.Tx) { n = tx.ExpireTyping(cutoff) })
	if n > 0 {
		e.logger.Debug("typing entries expired", zap.Int("count", n))
		e.bus.Publish(bus.Event{
			Kind:      KindStateChanged,
			Timestamp: time.Now(),
			Payload:   Change{Kind: "typing.expired"},
		})
	}
	return n
}

func operationPhase(ev events.Event) (events.Operation, events.Phase, bool) {
	switch ev := ev.(type) {
	case events.OpRequested:
		return ev.Op, events.PhaseRequested, true
	case events.OpSucceeded:
		return ev.Op, events.PhaseSucceeded, true
	case events.OpFailed:
		return ev.Op, events.PhaseFailed, true
	}
	return events.Operation{}, "", false
}
