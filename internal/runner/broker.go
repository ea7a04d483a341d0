package runner

import (
	"sync"
	"time"

	"github.com/seantiz/brickrun/internal/model"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 16

// Event is one lifecycle update for an execution: the submission
// announcement (run id and page URL) or a polled run state.
type Event struct {
	RunID      string          `json:"run_id,omitempty"`
	RunPageURL string          `json:"run_page_url,omitempty"`
	State      *model.RunState `json:"state,omitempty"`
	Time       time.Time       `json:"time"`
}

// closedTopicTTL is how long a closed topic is kept as a marker before it
// is pruned. It only needs to outlive the window between an SSE handler's
// status check and its Subscribe call.
const closedTopicTTL = time.Minute

// StateBroker fans lifecycle events out to per-execution subscribers.
// It is safe for concurrent use.
//
// Closed topics are retained as markers so that late subscribers (those
// subscribing after an execution finishes) receive a closed channel instead
// of blocking forever, then pruned after closedTTL so a long-lived process
// does not accumulate one marker per finished execution.
type StateBroker struct {
	closedTTL time.Duration

	mu     sync.Mutex
	topics map[string]*eventTopic
}

type eventTopic struct {
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewStateBroker creates a new broker.
func NewStateBroker() *StateBroker {
	return &StateBroker{
		closedTTL: closedTopicTTL,
		topics:    make(map[string]*eventTopic),
	}
}

// Subscribe returns a channel that receives events for the given execution
// and an unsubscribe function. If the execution has already finished, the
// returned channel is immediately closed.
func (b *StateBroker) Subscribe(execID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[execID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan Event)}
		b.topics[execID] = t
	}

	ch := make(chan Event, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends an event to all subscribers of the given execution.
// Events are dropped for subscribers whose buffers are full.
func (b *StateBroker) Publish(execID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[execID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			// Drop for slow subscribers to avoid blocking the poll loop.
		}
	}
}

// Close signals that no more events will be published for the execution.
// All subscriber channels are closed and future Subscribe calls return a
// closed channel until the marker is pruned after closedTTL.
func (b *StateBroker) Close(execID string) {
	b.mu.Lock()

	t, ok := b.topics[execID]
	if !ok {
		b.topics[execID] = &eventTopic{subs: make(map[int]chan Event), closed: true}
	} else {
		t.closed = true
		for id, ch := range t.subs {
			close(ch)
			delete(t.subs, id)
		}
	}
	b.mu.Unlock()

	time.AfterFunc(b.closedTTL, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if t, ok := b.topics[execID]; ok && t.closed {
			delete(b.topics, execID)
		}
	})
}
