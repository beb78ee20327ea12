package progress

import (
	"context"
	"sync"
)

const DefaultBacklog = 64

// Relay hands decoded events from a producer that must never block to a consumer
// that receives them one at a time, in wire order.
//
// At most backlog events wait for the consumer. When the queue is full the newest
// pending event is overwritten by the next one, so a slow consumer always sees the
// latest state rather than an unbounded history.
type Relay struct {
	mu        sync.Mutex
	queue     []Event
	spare     []Event
	backlog   int
	finished  bool
	err       error
	published uint64
	dropped   uint64
	delivered uint64
	notify    chan struct{}
}

func NewRelay(backlog int) *Relay {
	if backlog <= 0 {
		backlog = 1
	}
	return &Relay{
		backlog: backlog,
		notify:  make(chan struct{}, 1),
	}
}

// Publish queues ev without blocking. It reports false when ev displaced a pending
// event or arrived after Finish.
func (r *Relay) Publish(ev Event) bool {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return false
	}
	r.published++
	kept := true
	if len(r.queue) >= r.backlog {
		r.queue[len(r.queue)-1] = ev
		r.dropped++
		kept = false
	} else {
		r.queue = append(r.queue, ev)
	}
	r.mu.Unlock()
	r.signal()
	return kept
}

// Finish ends the stream. A nil err lets Run drain and deliver one Done event;
// a non-nil err makes Run return it after draining, with no Done.
func (r *Relay) Finish(err error) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.finished = true
	r.err = err
	r.mu.Unlock()
	r.signal()
}

// Run delivers queued events until the relay is finished. deliver is never called
// concurrently with itself.
func (r *Relay) Run(ctx context.Context, deliver func(Event)) error {
	for {
		r.mu.Lock()
		batch := r.queue
		r.queue = r.spare[:0]
		finished, err := r.finished, r.err
		r.mu.Unlock()

		for _, ev := range batch {
			deliver(ev)
		}

		r.mu.Lock()
		r.delivered += uint64(len(batch))
		r.spare = batch[:0]
		r.mu.Unlock()

		if len(batch) > 0 {
			continue
		}
		if finished {
			if err != nil {
				return err
			}
			deliver(Event{Kind: Done})
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.notify:
		}
	}
}

type Stats struct {
	Published uint64
	Delivered uint64
	Dropped   uint64
}

func (r *Relay) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Published: r.published, Delivered: r.delivered, Dropped: r.dropped}
}

func (r *Relay) signal() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}
