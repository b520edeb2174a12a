// Package events carries job progress notifications from the pipeline
// workers to websocket subscribers.
package events

import (
	"context"
	"sync"
	"time"
)

type JobEvent struct {
	JobID              string    `json:"job_id"`
	Status             string    `json:"status"`
	ProgressPercentage int       `json:"progress_percentage"`
	CurrentStage       string    `json:"current_stage"`
	ErrorMessage       *string   `json:"error_message,omitempty"`
	PortfolioID        *string   `json:"portfolio_id,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// Terminal reports whether no further events will follow for the job.
func (e JobEvent) Terminal() bool {
	return e.Status == "COMPLETED" || e.Status == "FAILED"
}

// Bus fans job events out to subscribers of that job. Publishers never
// block: a subscriber that falls behind has its channel closed, and a closed
// channel means the subscriber should re-read the job instead of waiting.
type Bus interface {
	Publish(ctx context.Context, event JobEvent) error
	Subscribe(ctx context.Context, jobID string) (<-chan JobEvent, func(), error)
	Close() error
}

const subscriberBuffer = 16

type subscriber struct {
	ch   chan JobEvent
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.ch)
		close(s.done)
	})
}

type memoryBus struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

// NewMemoryBus returns a bus that only reaches subscribers in this process.
func NewMemoryBus() Bus {
	return &memoryBus{subs: make(map[string]map[*subscriber]struct{})}
}

func (b *memoryBus) Publish(_ context.Context, event JobEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[event.JobID] {
		select {
		case sub.ch <- event:
		default:
			b.removeLocked(event.JobID, sub)
		}
	}
	return nil
}

func (b *memoryBus) Subscribe(ctx context.Context, jobID string) (<-chan JobEvent, func(), error) {
	sub := &subscriber{
		ch:   make(chan JobEvent, subscriberBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[*subscriber]struct{})
	}
	b.subs[jobID][sub] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		b.removeLocked(jobID, sub)
		b.mu.Unlock()
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()

	return sub.ch, cancel, nil
}

func (b *memoryBus) removeLocked(jobID string, sub *subscriber) {
	delete(b.subs[jobID], sub)
	if len(b.subs[jobID]) == 0 {
		delete(b.subs, jobID)
	}
	sub.close()
}

func (b *memoryBus) Close() error {
	return nil
}
