package funding

import "sync"

// AddressLocker serializes funding runs per source address.
type AddressLocker struct {
	mu    sync.Mutex
	locks map[string]*addressLock
}

type addressLock struct {
	mu   sync.Mutex
	refs int
}

// NewAddressLocker returns an empty locker.
func NewAddressLocker() *AddressLocker {
	return &AddressLocker{locks: make(map[string]*addressLock)}
}

// Lock blocks until address is free and returns the matching unlock func.
func (l *AddressLocker) Lock(address string) func() {
	l.mu.Lock()
	lk, ok := l.locks[address]
	if !ok {
		lk = &addressLock{}
		l.locks[address] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			lk.mu.Unlock()

			l.mu.Lock()
			lk.refs--
			if lk.refs == 0 {
				delete(l.locks, address)
			}
			l.mu.Unlock()
		})
	}
}

// Held returns the number of addresses with a holder or waiter.
func (l *AddressLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
