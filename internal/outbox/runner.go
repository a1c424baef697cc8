// Package outbox runs remote operations against the chat server and reports
// each one on the bus as requested, then succeeded or failed.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatmirror/internal/bus"
	"github.com/matheus3301/chatmirror/internal/chat"
	"github.com/matheus3301/chatmirror/internal/events"
	"go.uber.org/zap"
)

// ErrStopped is returned by Submit once the runner has stopped.
var ErrStopped = errors.New("outbox runner stopped")

// Result is what a successful remote call returned.
type Result struct {
	Conversation  *chat.Conversation
	Conversations []chat.Conversation
}

// Transport performs one remote operation.
type Transport interface {
	Do(ctx context.Context, op events.Operation) (Result, error)
}

// UserSource reports the active user, used when an operation omits it.
type UserSource interface {
	CurrentUserID() string
}

// Options tune the runner.
type Options struct {
	Workers int
	Queue   int
	Timeout time.Duration
}

// Runner drains submitted operations through the transport.
type Runner struct {
	transport Transport
	users     UserSource
	bus       *bus.Bus
	logger    *zap.Logger
	opts      Options
	queue     chan events.Operation
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewRunner creates a new outbox runner.
func NewRunner(t Transport, users UserSource, b *bus.Bus, logger *zap.Logger, opts Options) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Queue <= 0 {
		opts.Queue = 64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Runner{
		transport: t,
		users:     users,
		bus:       b,
		logger:    logger,
		opts:      opts,
		queue:     make(chan events.Operation, opts.Queue),
	}
}

// Start launches the workers.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	for range r.opts.Workers {
		r.wg.Add(1)
		go r.loop(ctx)
	}
}

// Stop stops the workers and waits for in-flight calls to return. Queued
// operations that never ran are reported as failed.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	for {
		select {
		case op := <-r.queue:
			r.fail(op, fmt.Errorf("%w before %s ran", ErrStopped, op.Kind))
		default:
			return
		}
	}
}

// Submit validates op, fills in its id (and client message id for sends),
// publishes the requested phase and queues the call. It returns the
// operation as queued.
func (r *Runner) Submit(ctx context.Context, op events.Operation) (events.Operation, error) {
	op = r.prepare(op)
	if err := op.Validate(); err != nil {
		return op, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return op, ErrStopped
	}
	r.publish(events.OpRequested{Op: op})
	select {
	case r.queue <- op:
		r.logger.Debug("operation queued", zap.String("op_id", op.ID), zap.String("kind", string(op.Kind)))
		return op, nil
	case <-ctx.Done():
		r.fail(op, ctx.Err())
		return op, ctx.Err()
	}
}

func (r *Runner) prepare(op events.Operation) events.Operation {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.UserID == "" && r.users != nil && needsUser(op.Kind) {
		op.UserID = r.users.CurrentUserID()
	}
	if op.Kind == chat.OpSendMessage {
		if op.ConversationID == "" && op.UserID != "" {
			switch {
			case op.RecipientID != "":
				op.ConversationID = chat.PrivateConversationID(op.UserID, op.RecipientID)
			case op.GroupID != "":
				op.ConversationID = chat.GroupConversationID(op.GroupID)
			}
		}
		if op.MessageID == "" {
			op.MessageID = chat.NewMessageID()
		}
	}
	return op
}

func needsUser(k chat.OpKind) bool {
	switch k {
	case chat.OpFetchUserConversations, chat.OpSendMessage, chat.OpAddReaction,
		chat.OpRemoveReaction, chat.OpMarkUnread:
		return true
	}
	return false
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case op := <-r.queue:
			r.run(ctx, op)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) run(ctx context.Context, op events.Operation) {
	callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	start := time.Now()
	res, err := r.transport.Do(callCtx, op)
	if err != nil {
		r.logger.Warn("operation failed", zap.Error(err),
			zap.String("op_id", op.ID), zap.String("kind", string(op.Kind)))
		r.fail(op, err)
		return
	}

	r.logger.Info("operation succeeded",
		zap.String("op_id", op.ID), zap.String("kind", string(op.Kind)),
		zap.Duration("took", time.Since(start)))
	r.publish(events.OpSucceeded{Op: op, Conversation: res.Conversation, Conversations: res.Conversations})
}

func (r *Runner) fail(op events.Operation, err error) {
	r.publish(events.OpFailed{Op: op, Failure: chat.FailureFrom(err, string(op.Kind), op.Kind.FallbackMessage())})
}

func (r *Runner) publish(ev events.Event) {
	r.bus.Publish(bus.Event{Kind: events.BusKind(ev), Timestamp: time.Now(), Payload: ev})
}
