package llm

import (
	"errors"
	"io"
	"sync"
)

// errQueueDone signals normal end of a drained queue.
var errQueueDone = errors.New("llm: queue done")

// eventQueue is a bounded single-producer blocking queue. It is the backing
// channel of a StreamBuilder: the backend puller adds events, the consumer
// drains them in order through Stream.Next.
type eventQueue[T any] struct {
	cond       *sync.Cond
	mu         sync.Mutex
	buf        []T
	head, tail int64
	closeWrite bool
	closeErr   error
}

func newEventQueue[T any](size int) *eventQueue[T] {
	q := &eventQueue[T]{buf: make([]T, size)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *eventQueue[T]) add(t T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if q.closeErr != nil {
			return q.closeErr
		}
		if q.closeWrite {
			return io.ErrClosedPipe
		}
		if q.tail-q.head < int64(len(q.buf)) {
			break
		}
		q.cond.Wait()
	}
	q.buf[q.tail%int64(len(q.buf))] = t
	q.tail++
	q.cond.Signal()
	return nil
}

func (q *eventQueue[T]) next() (t T, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == q.tail {
		if q.closeErr != nil {
			return t, q.closeErr
		}
		if q.closeWrite {
			return t, errQueueDone
		}
		q.cond.Wait()
	}
	t = q.buf[q.head%int64(len(q.buf))]
	q.head++
	q.cond.Signal()
	return t, nil
}

func (q *eventQueue[T]) finish() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closeWrite {
		return nil
	}
	q.closeWrite = true
	q.cond.Broadcast()
	return nil
}

func (q *eventQueue[T]) closeWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closeErr != nil {
		return nil
	}
	q.closeErr = err
	q.closeWrite = true
	q.cond.Broadcast()
	return nil
}

type streamEvent struct {
	chunk   *Chunk
	status  Status
	usage   Usage
	refusal string
	err     error
}

// StreamBuilder is the producer side of a Stream. A backend puller goroutine
// adds chunks and finally records exactly one terminal state.
type StreamBuilder struct {
	q *eventQueue[*streamEvent]
}

func NewStreamBuilder(size int) *StreamBuilder {
	return &StreamBuilder{q: newEventQueue[*streamEvent](size)}
}

// Add appends generated chunks to the stream.
func (sb *StreamBuilder) Add(chunks ...*Chunk) error {
	for _, c := range chunks {
		if err := sb.q.add(&streamEvent{chunk: c}); err != nil {
			return err
		}
	}
	return nil
}

func (sb *StreamBuilder) terminate(evt *streamEvent) error {
	if err := sb.q.add(evt); err != nil {
		return err
	}
	return sb.q.finish()
}

// Done marks normal completion.
func (sb *StreamBuilder) Done(usage Usage) error {
	return sb.terminate(&streamEvent{status: StatusDone, usage: usage})
}

// Truncated marks a length-limited completion.
func (sb *StreamBuilder) Truncated(usage Usage) error {
	return sb.terminate(&streamEvent{status: StatusTruncated, usage: usage})
}

// Blocked marks a refusal / safety stop.
func (sb *StreamBuilder) Blocked(usage Usage, refusal string) error {
	return sb.terminate(&streamEvent{status: StatusBlocked, usage: usage, refusal: refusal})
}

// Fail marks an unexpected generation error.
func (sb *StreamBuilder) Fail(usage Usage, err error) error {
	return sb.terminate(&streamEvent{status: StatusError, usage: usage, err: err})
}

// Abort tears the stream down with a transport-level error.
func (sb *StreamBuilder) Abort(err error) error {
	return sb.q.closeWithError(err)
}

// Stream returns the consumer side.
func (sb *StreamBuilder) Stream() Stream {
	return (*streamImpl)(sb)
}

type streamImpl StreamBuilder

func (s *streamImpl) Next() (*Chunk, error) {
	evt, err := s.q.next()
	if err != nil {
		return nil, err
	}
	switch evt.status {
	case StatusOK:
		return evt.chunk, nil
	case StatusDone:
		err = Done(evt.usage)
	case StatusTruncated:
		err = Truncated(evt.usage)
	case StatusBlocked:
		err = Blocked(evt.usage, evt.refusal)
	default:
		err = Failed(evt.usage, evt.err)
	}
	s.q.closeWithError(err)
	return nil, err
}

func (s *streamImpl) Close() error {
	return s.q.closeWithError(io.ErrClosedPipe)
}

func (s *streamImpl) CloseWithError(err error) error {
	return s.q.closeWithError(err)
}
