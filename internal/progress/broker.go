// Package progress holds the canonical, per-batch generation progress
// state. The server owns this state independently of any one client
// connection: a subscription is just a reader attaching to it, so clients
// may disconnect and resubscribe at any time without losing updates.
package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mealforge/internal/domain"
)

// EventType enumerates the stream event kinds.
type EventType string

const (
	EventProgress           EventType = "progress"
	EventError              EventType = "error"
	EventComplete           EventType = "complete"
	EventFailed             EventType = "failed"
	EventCompleteWithErrors EventType = "complete_with_errors"
)

// Event is one JSON message on a batch's stream.
type Event struct {
	Type             EventType `json:"type"`
	BatchID          string    `json:"batchId"`
	RecipesCompleted int       `json:"recipesCompleted"`
	TotalRequested   int       `json:"totalRequested"`
	ImagesGenerated  int       `json:"imagesGenerated"`
	ImagesFailed     int       `json:"imagesFailed"`
	Phase            string    `json:"phase,omitempty"`
	Error            string    `json:"error,omitempty"`
	ChunkIndex       *int      `json:"chunkIndex,omitempty"`
}

// State is the snapshot of one batch's progress. Counters are monotone
// for the lifetime of the batch.
type State struct {
	BatchID          uuid.UUID
	TotalRequested   int
	RecipesCompleted int
	ImagesGenerated  int
	ImagesFailed     int
	Phase            string
	Errors           []string
	Terminal         EventType // empty while the batch is running
}

// subscriberBuffer bounds each subscriber channel. When a reader lags the
// oldest buffered event is dropped; counters are monotone snapshots, so a
// later event always supersedes a dropped one.
const subscriberBuffer = 32

// retention keeps terminal batch state around so late resubscribers still
// receive the terminal snapshot.
const defaultRetention = time.Hour

type batchState struct {
	state State
	subs  map[int]chan Event
	next  int
}

// Broker tracks one State per active batch. Each batch's state is mutated
// by exactly one worker goroutine; subscribers only ever read snapshots.
type Broker struct {
	mu        sync.Mutex
	batches   map[uuid.UUID]*batchState
	retention time.Duration
}

// NewBroker constructs an empty Broker.
func NewBroker() *Broker {
	return &Broker{
		batches:   make(map[uuid.UUID]*batchState),
		retention: defaultRetention,
	}
}

// StartBatch registers progress state for a batch. Restarting a known
// batch id resets nothing; the existing state wins.
func (b *Broker) StartBatch(batchID uuid.UUID, totalRequested int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.batches[batchID]; ok {
		return
	}
	b.batches[batchID] = &batchState{
		state: State{BatchID: batchID, TotalRequested: totalRequested, Phase: "starting"},
		subs:  make(map[int]chan Event),
	}
}

// SetPhase updates the human-readable phase and publishes a progress event.
func (b *Broker) SetPhase(batchID uuid.UUID, phase string) {
	b.withBatch(batchID, func(bs *batchState) {
		bs.state.Phase = phase
		b.publishLocked(bs, bs.progressEvent())
	})
}

// AddRecipesCompleted bumps the completed counter by n.
func (b *Broker) AddRecipesCompleted(batchID uuid.UUID, n int) {
	if n <= 0 {
		return
	}
	b.withBatch(batchID, func(bs *batchState) {
		bs.state.RecipesCompleted += n
		b.publishLocked(bs, bs.progressEvent())
	})
}

// AddImageGenerated bumps the generated-images counter.
func (b *Broker) AddImageGenerated(batchID uuid.UUID) {
	b.withBatch(batchID, func(bs *batchState) {
		bs.state.ImagesGenerated++
		b.publishLocked(bs, bs.progressEvent())
	})
}

// AddImageFailed bumps the failed-images counter.
func (b *Broker) AddImageFailed(batchID uuid.UUID) {
	b.withBatch(batchID, func(bs *batchState) {
		bs.state.ImagesFailed++
		b.publishLocked(bs, bs.progressEvent())
	})
}

// ReportError records a non-fatal, chunk-scoped error and publishes an
// error event.
func (b *Broker) ReportError(batchID uuid.UUID, chunkIndex int, err error) {
	if err == nil {
		return
	}
	b.withBatch(batchID, func(bs *batchState) {
		msg := fmt.Sprintf("chunk %d: %v", chunkIndex, err)
		bs.state.Errors = append(bs.state.Errors, msg)
		idx := chunkIndex
		event := bs.progressEvent()
		event.Type = EventError
		event.Error = err.Error()
		event.ChunkIndex = &idx
		b.publishLocked(bs, event)
	})
}

// Finish publishes the terminal event, closes all subscriber channels and
// schedules the state for teardown after the retention window.
func (b *Broker) Finish(batchID uuid.UUID, terminal EventType) {
	b.withBatch(batchID, func(bs *batchState) {
		if bs.state.Terminal != "" {
			return
		}
		bs.state.Terminal = terminal
		event := bs.progressEvent()
		event.Type = terminal
		b.publishLocked(bs, event)
		for id, ch := range bs.subs {
			close(ch)
			delete(bs.subs, id)
		}
	})

	time.AfterFunc(b.retention, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.batches, batchID)
	})
}

// TerminalFor maps a batch status to its terminal event type.
func TerminalFor(status domain.BatchStatus) EventType {
	switch status {
	case domain.BatchStatusComplete:
		return EventComplete
	case domain.BatchStatusCompleteWithErrors:
		return EventCompleteWithErrors
	default:
		return EventFailed
	}
}

// Snapshot returns a copy of the current state for a batch.
func (b *Broker) Snapshot(batchID uuid.UUID) (State, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bs, ok := b.batches[batchID]
	if !ok {
		return State{}, false
	}
	return bs.snapshot(), true
}

// Subscribe attaches a new reader to a batch. The returned channel first
// yields the current state (not replayed history), then live events; it
// is closed when the batch finishes. The cancel func detaches the reader.
// For a batch already terminal the channel yields the terminal snapshot
// and is closed immediately.
func (b *Broker) Subscribe(batchID uuid.UUID) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bs, ok := b.batches[batchID]
	if !ok {
		return nil, nil, fmt.Errorf("batch %s: %w", batchID, domain.ErrNotFound)
	}

	ch := make(chan Event, subscriberBuffer)
	snapshot := bs.progressEvent()
	if bs.state.Terminal != "" {
		snapshot.Type = bs.state.Terminal
		ch <- snapshot
		close(ch)
		return ch, func() {}, nil
	}
	ch <- snapshot

	id := bs.next
	bs.next++
	bs.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if cur, ok := b.batches[batchID]; ok {
			if sub, ok := cur.subs[id]; ok {
				delete(cur.subs, id)
				close(sub)
			}
		}
	}
	return ch, cancel, nil
}

func (b *Broker) withBatch(batchID uuid.UUID, fn func(*batchState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bs, ok := b.batches[batchID]; ok {
		fn(bs)
	}
}

// publishLocked delivers an event to every subscriber without ever
// blocking the writer: when a subscriber's buffer is full the oldest
// buffered event is discarded to make room.
func (b *Broker) publishLocked(bs *batchState, event Event) {
	for _, ch := range bs.subs {
		for {
			select {
			case ch <- event:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (bs *batchState) snapshot() State {
	out := bs.state
	out.Errors = append([]string(nil), bs.state.Errors...)
	return out
}

func (bs *batchState) progressEvent() Event {
	return Event{
		Type:             EventProgress,
		BatchID:          bs.state.BatchID.String(),
		RecipesCompleted: bs.state.RecipesCompleted,
		TotalRequested:   bs.state.TotalRequested,
		ImagesGenerated:  bs.state.ImagesGenerated,
		ImagesFailed:     bs.state.ImagesFailed,
		Phase:            bs.state.Phase,
	}
}
