package messaging

import (
	"sync"

	"github.com/segmentio/kafka-go"
)

// offsetTracker releases a message for commit only once every message fetched
// before it on the same partition has been handled. Workers finish out of
// order, and a committed group offset covers everything below it.
type offsetTracker struct {
	mu         sync.Mutex
	partitions map[int]*partitionOffsets
}

type partitionOffsets struct {
	pending []int64
	done    map[int64]kafka.Message
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{partitions: make(map[int]*partitionOffsets)}
}

// track must be called in fetch order, before the message reaches a worker.
func (t *offsetTracker) track(msg kafka.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.partitions[msg.Partition]
	if !ok {
		p = &partitionOffsets{done: make(map[int64]kafka.Message)}
		t.partitions[msg.Partition] = p
	}
	if n := len(p.pending); n > 0 && msg.Offset <= p.pending[n-1] {
		// Replayed from an older offset after a rebalance.
		p.pending = p.pending[:0]
		clear(p.done)
	}
	p.pending = append(p.pending, msg.Offset)
}

// markDone records msg as handled and, when that completes a contiguous run
// from the oldest pending offset, passes the last message of the run to
// commit. commit runs under the tracker lock so commits never go backwards.
func (t *offsetTracker) markDone(msg kafka.Message, commit func(kafka.Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.partitions[msg.Partition]
	if !ok {
		return
	}
	p.done[msg.Offset] = msg

	var last kafka.Message
	advanced := false
	for len(p.pending) > 0 {
		m, ok := p.done[p.pending[0]]
		if !ok {
			break
		}
		delete(p.done, p.pending[0])
		p.pending = p.pending[1:]
		last, advanced = m, true
	}
	if advanced {
		commit(last)
	}
}
