package command

import (
	"errors"
	"sync"
	"time"

	"github.com/rothamp/peppermint/internal/param"
)

// ErrClosed is returned by Send and Receive after Close.
var ErrClosed = errors.New("command queue closed")

// Queue is a bounded multi-producer/single-consumer FIFO. Send never blocks:
// when the bound is reached, parameter updates are coalesced (the oldest
// pending update for the same key is dropped in favor of the new one) and,
// failing that, the oldest pending parameter update of any key makes room.
// Note, mode, reboot and shutdown commands are never dropped; for them the
// bound is soft.
type Queue struct {
	mu      sync.Mutex
	items   []Command
	depth   int
	closed  bool
	dropped uint64

	// signal carries at most one pending wakeup for the consumer.
	signal chan struct{}
}

// NewQueue returns a Queue holding up to depth commands before the
// coalescing policy kicks in.
func NewQueue(depth int) *Queue {
	if depth <= 0 {
		depth = 256
	}
	return &Queue{
		depth:  depth,
		signal: make(chan struct{}, 1),
	}
}

// Send enqueues cmd. It returns ErrClosed after Close and nil otherwise;
// it never blocks the producer.
func (q *Queue) Send(cmd Command) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if len(q.items) >= q.depth {
		if cmd.Kind == KindSetParameter {
			if !q.evictParameterLocked(cmd.Param) {
				// Bound reached by non-coalescible traffic; the update is
				// dropped, the cache catches up on the next one.
				q.dropped++
				q.mu.Unlock()
				return nil
			}
		}
		// Other kinds always enqueue; losing a note-off is worse than
		// briefly exceeding the bound.
	}
	q.items = append(q.items, cmd)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// evictParameterLocked removes the oldest pending SetParameter for key, or
// the oldest pending SetParameter of any key if none match. Reports whether
// room was made.
func (q *Queue) evictParameterLocked(key param.Key) bool {
	match, any := -1, -1
	for i, c := range q.items {
		if c.Kind != KindSetParameter {
			continue
		}
		if any < 0 {
			any = i
		}
		if c.Param == key {
			match = i
			break
		}
	}
	idx := match
	if idx < 0 {
		idx = any
	}
	if idx < 0 {
		return false
	}
	q.items = append(q.items[:idx], q.items[idx+1:]...)
	q.dropped++
	return true
}

// Receive waits up to wait for a command. ok is false when the wait elapsed
// with nothing pending. After Close, any drained commands are still
// delivered, then Receive reports ErrClosed.
func (q *Queue) Receive(wait time.Duration) (cmd Command, ok bool, err error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			cmd = q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return cmd, true, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return Command{}, false, ErrClosed
		}
		select {
		case <-q.signal:
		case <-deadline.C:
			return Command{}, false, nil
		}
	}
}

// Len reports the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped reports how many parameter updates were coalesced or dropped.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close wakes the consumer. Pending commands drain before Receive starts
// reporting ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
