package handtrack

import (
	"sync"
)

// DefaultStreamBuffers is the number of frame buffers a stream rotates
// through.  Three lets a reader hold the published frame whilst the writer
// fills the next one.
const DefaultStreamBuffers = 3

// streamSlot is a frame buffer and its bookkeeping
type streamSlot[T any] struct {
	frame      T
	frameIndex int
	// pins is the number of readers holding this slot
	pins int
}

// Stream publishes frames of type T from a single writer to any number of
// readers.  The writer fills a free buffer between BeginWrite and EndWrite and
// only completed buffers are ever visible to readers.  When every buffer is
// either published or held by a reader BeginWrite returns nil and the frame is
// skipped.
type Stream[T any] struct {
	mu sync.Mutex
	// free holds the buffers available to the writer
	free chan *streamSlot[T]
	// writing is the buffer between BeginWrite and EndWrite
	writing *streamSlot[T]
	// published is the latest completed buffer
	published   *streamSlot[T]
	connections int
}

// NewStream returns a stream rotating through the given number of buffers,
// each prepared by init when not nil
func NewStream[T any](buffers int, init func(frame *T)) *Stream[T] {

	if buffers < 2 {
		buffers = 2
	}

	s := &Stream[T]{
		free: make(chan *streamSlot[T], buffers),
	}

	for i := 0; i < buffers; i++ {
		slot := &streamSlot[T]{}

		if init != nil {
			init(&slot.frame)
		}

		s.release(slot)
	}

	return s
}

// release returns a slot to the free buffers
func (s *Stream[T]) release(slot *streamSlot[T]) {
	select {
	case s.free <- slot:
	default:
		// free list is full
	}
}

// HasConnections reports whether any reader is connected
func (s *Stream[T]) HasConnections() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections > 0
}

// BeginWrite opens a write transaction for frameIndex and returns the buffer
// to fill, or nil when no buffer is free.  Calling BeginWrite again before
// EndWrite returns the same buffer.
func (s *Stream[T]) BeginWrite(frameIndex int) *T {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writing == nil {
		select {
		case s.writing = <-s.free:
		default:
			return nil
		}
	}

	s.writing.frameIndex = frameIndex
	return &s.writing.frame
}

// EndWrite publishes the buffer opened by BeginWrite.  The previously
// published buffer is freed unless a reader still holds it.
func (s *Stream[T]) EndWrite() {

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writing == nil {
		return
	}

	prev := s.published
	s.published = s.writing
	s.writing = nil

	if prev != nil && prev.pins == 0 {
		s.release(prev)
	}
}

// Connect attaches a new reader to the stream
func (s *Stream[T]) Connect() *StreamReader[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.connections++
	return &StreamReader[T]{stream: s}
}

// StreamReader reads published frames from a Stream.  A reader holds at most
// one frame at a time and is not safe for concurrent use.
type StreamReader[T any] struct {
	stream *Stream[T]
	held   *streamSlot[T]
	closed bool
}

// Acquire returns the latest published frame and its frame index, holding it
// until Release.  It returns false when nothing has been published yet.  Any
// frame already held by the reader is released first.
func (r *StreamReader[T]) Acquire() (*T, int, bool) {

	r.Release()

	s := r.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.closed || s.published == nil {
		return nil, 0, false
	}

	s.published.pins++
	r.held = s.published

	return &r.held.frame, r.held.frameIndex, true
}

// Release gives back the frame returned by Acquire, which must not be used
// afterwards
func (r *StreamReader[T]) Release() {

	if r.held == nil {
		return
	}

	s := r.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := r.held
	r.held = nil
	slot.pins--

	if slot.pins == 0 && slot != s.published && slot != s.writing {
		s.release(slot)
	}
}

// Close releases any held frame and disconnects the reader
func (r *StreamReader[T]) Close() {

	r.Release()

	s := r.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.closed {
		return
	}

	r.closed = true
	s.connections--
}
