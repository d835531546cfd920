package messaging

import (
	"context"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/rl1809/salespoint-inventory/internal/core/domain"
)

// fakeReader hands out queued messages and reports io.EOF once drained.
// Messages without an offset get their fetch position, starting at 1.
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	fetched   int64
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	r.fetched++
	if msg.Offset == 0 {
		msg.Offset = r.fetched
	}
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// lastCommitted returns the last committed offset of partition 0, or -1.
func (r *fakeReader) lastCommitted() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	last := int64(-1)
	for _, m := range r.committed {
		if m.Partition == 0 {
			last = m.Offset
		}
	}
	return last
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	return nil
}

// fakeHandler returns the queued errors in order, then nil.
type fakeHandler struct {
	mu     sync.Mutex
	errs   []error
	events []domain.OrderLifecycleEvent
}

func (h *fakeHandler) Handle(ctx context.Context, event domain.OrderLifecycleEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	if len(h.errs) == 0 {
		return nil
	}
	err := h.errs[0]
	h.errs = h.errs[1:]
	return err
}

func (h *fakeHandler) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}
