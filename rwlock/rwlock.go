// Package rwlock provides an asynchronous reader-writer lock with
// upgrade/downgrade support, used to guard one-time, concurrency-safe
// resource initialization such as a lazily created connection pool.
//
//   - Read and write holds are mutually exclusive.
//   - Any number of readers may hold the lock concurrently; at most one writer.
//   - Writers are granted the lock in strict FIFO arrival order.
//   - A reader arriving while a writer is active or queued waits behind that
//     writer, so readers cannot starve a waiting writer.
//
// Acquisition suspends the calling goroutine until the lock is available or
// the context is cancelled; a cancelled waiter is fully removed from the
// queue it was enqueued on.
package rwlock

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrReleased is returned when operating on a handle that no longer holds the lock.
	ErrReleased = errors.New("lock handle is already released")

	// ErrNotReadHold is returned when upgrading a handle that is not a read hold.
	ErrNotReadHold = errors.New("can only upgrade a read hold")

	// ErrNotWriteHold is returned when downgrading a handle that is not a write hold.
	ErrNotWriteHold = errors.New("can only downgrade a write hold")
)

// RWLock is an asynchronous reader-writer lock. The zero value is ready to use.
type RWLock struct {
	mu           sync.Mutex
	readers      int
	writerActive bool
	writerQueue  []*waiter
	readerQueue  []*waiter
}

// waiter.granted is set by the goroutine that hands over the lock, before
// ready is closed; the state transfer happens on the grantor's side so a
// woken waiter never races a newcomer for the lock.
type waiter struct {
	ready   chan struct{}
	granted bool
}

// Handle represents one held read or write lock.
type Handle struct {
	lock      *RWLock
	exclusive bool
	released  bool
}

// New creates an RWLock.
func New() *RWLock {
	return &RWLock{}
}

// RLock acquires a read hold. It suspends while a writer is active or queued.
func (l *RWLock) RLock(ctx context.Context) (*Handle, error) {
	l.mu.Lock()

	if !l.writerActive && len(l.writerQueue) == 0 {
		l.readers++
		l.mu.Unlock()

		return &Handle{lock: l}, nil
	}

	w := &waiter{ready: make(chan struct{})}
	l.readerQueue = append(l.readerQueue, w)
	l.mu.Unlock()

	select {
	case <-w.ready:
		return &Handle{lock: l}, nil

	case <-ctx.Done():
		return nil, l.cancelRead(ctx, w)
	}
}

// Lock acquires the write hold. It suspends while any reader or another
// writer is active, or while earlier writers are queued.
func (l *RWLock) Lock(ctx context.Context) (*Handle, error) {
	l.mu.Lock()

	if !l.writerActive && l.readers == 0 && len(l.writerQueue) == 0 {
		l.writerActive = true
		l.mu.Unlock()

		return &Handle{lock: l, exclusive: true}, nil
	}

	w := &waiter{ready: make(chan struct{})}
	l.writerQueue = append(l.writerQueue, w)
	l.mu.Unlock()

	select {
	case <-w.ready:
		return &Handle{lock: l, exclusive: true}, nil

	case <-ctx.Done():
		return nil, l.cancelWrite(ctx, w)
	}
}

// Release gives up the hold. Releasing an already released handle is a no-op.
// The release wakes the next queued writer if any, else all queued readers.
func (h *Handle) Release() {
	l := h.lock

	l.mu.Lock()
	defer l.mu.Unlock()

	if h.released {
		return
	}
	h.released = true

	if h.exclusive {
		l.writerActive = false
	} else {
		l.readers--
	}

	l.wakeNextLocked()
}

// Upgrade converts a read hold into a write hold: the read hold is released
// and the caller joins the writer queue in one atomic step, so no writer that
// arrives afterward can overtake it. If the context is cancelled while
// waiting, the handle is left released (the read hold is not restored).
func (h *Handle) Upgrade(ctx context.Context) error {
	l := h.lock

	l.mu.Lock()

	if h.released {
		l.mu.Unlock()
		return ErrReleased
	}

	if h.exclusive {
		l.mu.Unlock()
		return ErrNotReadHold
	}

	l.readers--
	h.released = true

	if !l.writerActive && l.readers == 0 && len(l.writerQueue) == 0 {
		l.writerActive = true
		h.exclusive = true
		h.released = false
		l.mu.Unlock()

		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	l.writerQueue = append(l.writerQueue, w)

	// dropping the read hold may have unblocked the queue head
	l.wakeNextLocked()
	l.mu.Unlock()

	select {
	case <-w.ready:
		l.mu.Lock()
		h.exclusive = true
		h.released = false
		l.mu.Unlock()

		return nil

	case <-ctx.Done():
		return l.cancelWrite(ctx, w)
	}
}

// Downgrade converts the write hold into a read hold atomically: there is no
// window in which a third party's write request can acquire the lock in
// between. Queued readers are admitted alongside the downgraded hold unless
// a writer is queued.
func (h *Handle) Downgrade() error {
	l := h.lock

	l.mu.Lock()
	defer l.mu.Unlock()

	if h.released {
		return ErrReleased
	}

	if !h.exclusive {
		return ErrNotWriteHold
	}

	l.writerActive = false
	l.readers++
	h.exclusive = false

	// with a reader active this can only admit more readers, never a writer
	l.wakeNextLocked()

	return nil
}

// wakeNextLocked hands the lock over to queued waiters. Callers must hold mu.
//
// Writers take priority: the queue head is granted once no readers remain.
// Only when no writer is queued are all queued readers admitted at once.
func (l *RWLock) wakeNextLocked() {
	if l.writerActive {
		return
	}

	if len(l.writerQueue) > 0 {
		if l.readers > 0 {
			return
		}

		next := l.writerQueue[0]
		l.writerQueue = l.writerQueue[1:]
		l.writerActive = true
		next.granted = true
		close(next.ready)

		return
	}

	for _, r := range l.readerQueue {
		l.readers++
		r.granted = true
		close(r.ready)
	}
	l.readerQueue = nil
}

// cancelRead removes a cancelled reader from the queue. If the grant raced
// the cancellation the hold is already ours and must be released properly.
func (l *RWLock) cancelRead(ctx context.Context, w *waiter) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w.granted {
		l.readers--
		l.wakeNextLocked()

		return ctx.Err()
	}

	l.readerQueue = removeWaiter(l.readerQueue, w)

	return ctx.Err()
}

// cancelWrite removes a cancelled writer from the queue. Removing a queued
// writer can unblock everything queued behind it.
func (l *RWLock) cancelWrite(ctx context.Context, w *waiter) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if w.granted {
		l.writerActive = false
		l.wakeNextLocked()

		return ctx.Err()
	}

	l.writerQueue = removeWaiter(l.writerQueue, w)
	l.wakeNextLocked()

	return ctx.Err()
}

func removeWaiter(queue []*waiter, w *waiter) []*waiter {
	for i, queued := range queue {
		if queued == w {
			return append(queue[:i], queue[i+1:]...)
		}
	}

	return queue
}
