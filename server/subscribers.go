package server

import (
	"sync"

	zap "go.uber.org/zap"

	"github.com/agentmesh/a2a-go/types"
)

// EventQueue is one subscriber's buffered view of a task's event stream.
type EventQueue struct {
	mu     sync.Mutex
	ch     chan types.TaskEvent
	closed bool
}

// newEventQueue creates a queue with the given capacity
func newEventQueue(capacity int) *EventQueue {
	return &EventQueue{ch: make(chan types.TaskEvent, capacity)}
}

// Events exposes the receive side of the queue
func (q *EventQueue) Events() <-chan types.TaskEvent {
	return q.ch
}

// close is idempotent; the registry closes queues when they are detached
func (q *EventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// offer enqueues without blocking. It reports false when the queue is full
// or already closed; the closed check and the send happen under the same
// lock close takes, so a detached queue drops the event instead of
// panicking on a closed channel.
func (q *EventQueue) offer(event types.TaskEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- event:
		return true
	default:
		return false
	}
}

// SubscriberRegistry fans task events out to per-task subscriber queues.
// Subscribing to a task id the registry has never seen is allowed before the
// first event; resubscription additionally requires the task to be known.
type SubscriberRegistry struct {
	mu          sync.Mutex
	subscribers map[string][]*EventQueue
	capacity    int
	logger      *zap.Logger
}

// NewSubscriberRegistry creates an empty registry with the given per-queue capacity
func NewSubscriberRegistry(queueCapacity int, logger *zap.Logger) *SubscriberRegistry {
	if queueCapacity < 1 {
		queueCapacity = 1
	}
	return &SubscriberRegistry{
		subscribers: make(map[string][]*EventQueue),
		capacity:    queueCapacity,
		logger:      logger,
	}
}

// Subscribe attaches a fresh queue to the task's subscriber list. The queue
// only sees events published after it is attached; there is no replay.
// Resubscription presupposes an active publishing context: when resubscribe
// is true and the task has no subscribers, Subscribe fails with
// ErrTaskNotFound.
func (r *SubscriberRegistry) Subscribe(taskID string, resubscribe bool) (*EventQueue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if resubscribe && len(r.subscribers[taskID]) == 0 {
		return nil, ErrTaskNotFound
	}

	queue := newEventQueue(r.capacity)
	r.subscribers[taskID] = append(r.subscribers[taskID], queue)

	r.logger.Debug("subscriber attached", zap.String("task_id", taskID),
		zap.Int("subscribers", len(r.subscribers[taskID])))
	return queue, nil
}

// Publish broadcasts an event to every queue attached to the task. Events
// published to a task with no subscribers are dropped. A subscriber whose
// queue is full loses the event; the stream stays ordered for everyone else.
func (r *SubscriberRegistry) Publish(taskID string, event types.TaskEvent) {
	r.mu.Lock()
	queues := make([]*EventQueue, len(r.subscribers[taskID]))
	copy(queues, r.subscribers[taskID])
	r.mu.Unlock()

	if len(queues) == 0 {
		r.logger.Debug("no subscribers for event", zap.String("task_id", taskID))
		return
	}

	for _, queue := range queues {
		if !queue.offer(event) {
			r.logger.Warn("subscriber queue full or detached, dropping event",
				zap.String("task_id", taskID))
		}
	}
}

// Detach removes the queue from the task's subscriber list and closes it.
// Detaching an already-detached queue is a no-op.
func (r *SubscriberRegistry) Detach(taskID string, queue *EventQueue) {
	r.mu.Lock()
	queues := r.subscribers[taskID]
	for i, q := range queues {
		if q == queue {
			r.subscribers[taskID] = append(queues[:i], queues[i+1:]...)
			break
		}
	}
	if len(r.subscribers[taskID]) == 0 {
		delete(r.subscribers, taskID)
	}
	r.mu.Unlock()

	queue.close()
}

// Len reports how many subscribers a task currently has
func (r *SubscriberRegistry) Len(taskID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers[taskID])
}
