// Package queue provides the FIFO that hands decoded frames from the
// receiving goroutine to their consumer.
package queue

import (
	"sync"

	"github.com/omochice/toy-peer-chat/pkg/protocol"
)

// FrameQueue is an unbounded, thread-safe FIFO of frames. Push never
// blocks; a slow consumer makes the queue grow without limit.
type FrameQueue struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	frames   []protocol.Frame
	closed   bool
}

// New creates an empty FrameQueue.
func New() *FrameQueue {
	q := &FrameQueue{}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends f at the tail and wakes one waiting consumer.
// Frames pushed after Close are dropped.
func (q *FrameQueue) Push(f protocol.Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.frames = append(q.frames, f)
	q.nonEmpty.Signal()
}

// Pop removes the frame at the head, waiting until one is available.
// It returns false once the queue has been closed.
func (q *FrameQueue) Pop() (protocol.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.frames) == 0 && !q.closed {
		q.nonEmpty.Wait()
	}
	if q.closed {
		return nil, false
	}
	return q.popLocked(), true
}

// TryPop removes the head frame if there is one.
func (q *FrameQueue) TryPop() (protocol.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 || q.closed {
		return nil, false
	}
	return q.popLocked(), true
}

// IsEmpty reports whether no frames are waiting.
func (q *FrameQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of frames waiting.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Close discards pending frames and releases every blocked Pop.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.frames = nil
	q.nonEmpty.Broadcast()
}

func (q *FrameQueue) popLocked() protocol.Frame {
	f := q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	if len(q.frames) == 0 {
		q.frames = nil
	}
	return f
}
