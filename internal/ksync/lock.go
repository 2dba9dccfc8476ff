package ksync

// Holder identifies the calling thread for ownership tracking. The
// kernel's real thread layer exposes curthread for this purpose;
// spec.md §6 lists it as an external collaborator, so callers here pass
// whatever comparable token they use to represent "self" (typically the
// calling *proc.Process). Lock never inspects it beyond equality.
type Holder any

// Lock is a binary, owner-tracked mutex per spec.md §4.1. It is not
// reentrant: a holder calling Acquire again deadlocks against itself,
// matching the source semantics.
type Lock struct {
	name   string
	spin   Spinlock
	wc     *WaitChannel
	held   bool
	holder Holder
}

// NewLock returns an unheld lock.
func NewLock(name string) *Lock {
	return &Lock{name: name, wc: NewWaitChannel()}
}

// Acquire blocks until the lock is free, then takes it on behalf of holder.
func (l *Lock) Acquire(holder Holder) {
	l.spin.Acquire()
	for l.held {
		l.wc.Sleep(&l.spin)
	}
	l.held = true
	l.holder = holder
	l.spin.Release()
}

// Release gives up the lock. Panics if holder does not own it, matching
// the assertion failure spec.md prescribes for a non-owner release.
func (l *Lock) Release(holder Holder) {
	l.spin.Acquire()
	if !l.held || l.holder != holder {
		l.spin.Release()
		panic("ksync: Lock " + l.name + " released by non-owner")
	}
	l.held = false
	l.holder = nil
	l.wc.Wake()
	l.spin.Release()
}

// DoIHold reports whether holder currently owns the lock.
func (l *Lock) DoIHold(holder Holder) bool {
	l.spin.Acquire()
	defer l.spin.Release()
	return l.held && l.holder == holder
}

// Destroy panics if waiters remain, matching the source's assertion
// that a lock must be uncontended when torn down.
func (l *Lock) Destroy() {
	if !l.wc.IsEmpty() {
		panic("ksync: Lock " + l.name + " destroyed with waiters")
	}
}
