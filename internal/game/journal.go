package game

import (
	"context"
	"sync"
)

// journalQueue holds journal writes queued under the controller lock and
// applies them after the lock is released. Writes run in queue order, one
// drainer at a time.
type journalQueue struct {
	mu       sync.Mutex
	idle     *sync.Cond
	ops      []func(context.Context)
	draining bool
}

func newJournalQueue() *journalQueue {
	q := &journalQueue{}
	q.idle = sync.NewCond(&q.mu)
	return q
}

func (q *journalQueue) push(op func(context.Context)) {
	q.mu.Lock()
	q.ops = append(q.ops, op)
	q.mu.Unlock()
}

// drain applies queued writes until the queue is empty. If another caller
// is already draining it returns at once; that caller picks up the writes.
func (q *journalQueue) drain(ctx context.Context) {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	for len(q.ops) > 0 {
		ops := q.ops
		q.ops = nil
		q.mu.Unlock()
		for _, op := range ops {
			op(ctx)
		}
		q.mu.Lock()
	}
	q.draining = false
	q.idle.Broadcast()
	q.mu.Unlock()
}

// wait returns once every write queued before the call has been applied.
func (q *journalQueue) wait(ctx context.Context) {
	for {
		q.drain(ctx)
		q.mu.Lock()
		for q.draining {
			q.idle.Wait()
		}
		done := len(q.ops) == 0
		q.mu.Unlock()
		if done {
			return
		}
	}
}
