package ksync

// Semaphore is a counting, non-strict-FIFO semaphore per spec.md §4.1:
// P blocks while the count is zero, V increments and wakes one waiter.
type Semaphore struct {
	name  string
	lock  Spinlock
	wc    *WaitChannel
	count uint32
}

// NewSemaphore returns a semaphore initialized to count.
func NewSemaphore(name string, count uint32) *Semaphore {
	return &Semaphore{name: name, wc: NewWaitChannel(), count: count}
}

// P decrements the semaphore, blocking while the count is zero. Must
// not be called from interrupt context.
func (s *Semaphore) P() {
	s.lock.Acquire()
	for s.count == 0 {
		s.wc.Sleep(&s.lock)
	}
	s.count--
	s.lock.Release()
}

// V increments the semaphore and wakes one waiter.
func (s *Semaphore) V() {
	s.lock.Acquire()
	s.count++
	s.wc.Wake()
	s.lock.Release()
}

// Count returns the current count. Intended for tests/diagnostics.
func (s *Semaphore) Count() uint32 {
	s.lock.Acquire()
	defer s.lock.Release()
	return s.count
}
