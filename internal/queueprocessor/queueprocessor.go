// Package queueprocessor implements the QueueProcessor (C9): the
// background loop that drains enqueued deliveries once their target comes
// online, with exponential backoff and periodic exhaustion cleanup, per
// spec.md §4.11. Grounded on the ticker-plus-WaitGroup scheduler loop
// shape used by the rest of the codebase's background task runners.
package queueprocessor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/local/assistantbridge/internal/registry"
	"github.com/local/assistantbridge/internal/store"
)

// DefaultPollInterval and DefaultSweepInterval are the drain and
// exhaustion-sweep cadences from spec.md §4.11.
const (
	DefaultPollInterval  = 5 * time.Second
	DefaultSweepInterval = 5 * time.Minute

	dequeueLimit = 10
	baseRetrySeconds = 30
	maxRetrySeconds  = 3600
)

// assistants is the closed set of assistants the drain loop visits each
// tick, in a stable order so logs read deterministically.
var assistants = []store.AssistantId{store.AssistantClaude, store.AssistantCodex}

// Processor drains QueueEntry rows for assistants that have come online
// and periodically sweeps rows that have exhausted their retry budget.
type Processor struct {
	store        store.Store
	registry     *registry.ClientRegistry
	pollInterval time.Duration
	sweepInterval time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a Processor with the default poll/sweep cadence. Use the
// With* options below to override them (tests shrink both intervals).
func New(st store.Store, reg *registry.ClientRegistry, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store:         st,
		registry:      reg,
		pollInterval:  DefaultPollInterval,
		sweepInterval: DefaultSweepInterval,
		logger:        logger.With("component", "queueprocessor"),
	}
}

// WithPollInterval overrides the drain cadence.
func (p *Processor) WithPollInterval(d time.Duration) *Processor {
	p.pollInterval = d
	return p
}

// WithSweepInterval overrides the exhaustion-sweep cadence.
func (p *Processor) WithSweepInterval(d time.Duration) *Processor {
	p.sweepInterval = d
	return p
}

// Start launches the drain and sweep loops. Safe to call once; a second
// call while already running is a no-op.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(2)
	go p.drainLoop(ctx)
	go p.sweepLoop(ctx)
}

// Stop cancels the background loops and waits for them to exit.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

func (p *Processor) drainLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drainAll(ctx)
		}
	}
}

func (p *Processor) sweepLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

// drainAll implements the Drain task: for each assistant currently online,
// dequeue up to dequeueLimit entries and resolve each one.
func (p *Processor) drainAll(ctx context.Context) {
	for _, target := range assistants {
		if !p.registry.IsOnline(target) {
			continue
		}
		p.drainTarget(ctx, target)
	}
}

func (p *Processor) drainTarget(ctx context.Context, target store.AssistantId) {
	entries, err := p.store.DequeueMessages(ctx, target, dequeueLimit)
	if err != nil {
		p.logger.Error("dequeue failed", "target", target, "error", err)
		return
	}

	for _, entry := range entries {
		p.resolveEntry(ctx, target, entry)
	}
}

// resolveEntry implements the per-entry branch of the Drain task: missing
// message -> removed, target gone offline again -> retry, else delivered.
func (p *Processor) resolveEntry(ctx context.Context, target store.AssistantId, entry *store.QueueEntry) {
	if _, err := p.store.GetMessage(ctx, entry.MessageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if rmErr := p.store.RemoveFromQueue(ctx, entry.MessageID); rmErr != nil {
				p.logger.Error("remove missing queue entry failed", "message_id", entry.MessageID, "error", rmErr)
			}
			return
		}
		p.logger.Error("load queued message failed", "message_id", entry.MessageID, "error", err)
		p.scheduleRetry(ctx, entry)
		return
	}

	if !p.registry.IsOnline(target) {
		p.scheduleRetry(ctx, entry)
		return
	}

	if err := p.store.UpdateMessageStatus(ctx, entry.MessageID, store.MessageDelivered); err != nil {
		p.logger.Error("mark delivered failed", "message_id", entry.MessageID, "error", err)
		p.scheduleRetry(ctx, entry)
		return
	}
	if err := p.store.RemoveFromQueue(ctx, entry.MessageID); err != nil {
		p.logger.Error("remove delivered queue entry failed", "message_id", entry.MessageID, "error", err)
	}
}

// scheduleRetry computes delay = min(30*2^attempts, 3600) seconds and
// bumps the entry's attempt count, per spec.md §8 law 6.
func (p *Processor) scheduleRetry(ctx context.Context, entry *store.QueueEntry) {
	delay := retryDelaySeconds(entry.Attempts)
	if err := p.store.IncrementAttempts(ctx, entry.ID, delay); err != nil {
		p.logger.Error("schedule retry failed", "queue_id", entry.ID, "error", err)
	}
}

func retryDelaySeconds(attempts int) int {
	delay := baseRetrySeconds
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= maxRetrySeconds {
			return maxRetrySeconds
		}
	}
	return delay
}

// sweep implements the Sweep task: delete every queue row that has
// exhausted its retry budget.
func (p *Processor) sweep(ctx context.Context) {
	removed, err := p.store.ClearExhausted(ctx)
	if err != nil {
		p.logger.Error("sweep exhausted queue entries failed", "error", err)
		return
	}
	if removed > 0 {
		p.logger.Info("swept exhausted queue entries", "count", removed)
	}
}

// OnClientOnline performs an immediate drain for one assistant, called
// from Transport's session-initialised hook so a client doesn't wait a
// full poll interval for its backlog (spec.md §4.11).
func (p *Processor) OnClientOnline(ctx context.Context, id store.AssistantId) {
	if !p.registry.IsOnline(id) {
		return
	}
	p.drainTarget(ctx, id)
}
