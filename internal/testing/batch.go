package testing

import (
	"context"
	"sync"

	"github.com/Alia5/joyrelay/event"
)

// BatchSource is a teleop.Source double. Next hands out queued batches in
// order and blocks when the queue is empty.
type BatchSource struct {
	buttons int
	batches chan event.Batch

	mu     sync.Mutex
	err    error
	failed chan struct{}
	reads  int
}

// NewBatchSource returns a source announcing buttons buttons.
func NewBatchSource(buttons int, batches ...event.Batch) *BatchSource {
	s := &BatchSource{
		buttons: buttons,
		batches: make(chan event.Batch, 1024),
		failed:  make(chan struct{}),
	}
	for _, b := range batches {
		s.batches <- b
	}
	return s
}

// Push queues one batch.
func (s *BatchSource) Push(events ...event.ButtonEvent) {
	s.batches <- event.Batch(events)
}

// Press queues one batch pressing each button.
func (s *BatchSource) Press(buttons ...int) {
	b := make(event.Batch, 0, len(buttons))
	for _, i := range buttons {
		b = append(b, event.Press(i))
	}
	s.batches <- b
}

// Fail makes Next return err once the queue is drained.
func (s *BatchSource) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
		close(s.failed)
	}
}

// Reads returns how many batches were handed out.
func (s *BatchSource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *BatchSource) ButtonCount() int { return s.buttons }

func (s *BatchSource) Next(ctx context.Context) (event.Batch, error) {
	select {
	case b := <-s.batches:
		return s.handout(b), nil
	default:
	}
	select {
	case b := <-s.batches:
		return s.handout(b), nil
	case <-s.failed:
		s.mu.Lock()
		defer s.mu.Unlock()
		return nil, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *BatchSource) handout(b event.Batch) event.Batch {
	s.mu.Lock()
	s.reads++
	s.mu.Unlock()
	return b
}
