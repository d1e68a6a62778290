package service

import "sync"

const pairLockStripes = 64

// PairLocks serialises work on an unordered pair of users within this process.
// Pairs hash onto a fixed set of mutexes, so unrelated pairs rarely contend.
type PairLocks struct {
	stripes [pairLockStripes]sync.Mutex
}

// NewPairLocks returns a ready PairLocks.
func NewPairLocks() *PairLocks {
	return &PairLocks{}
}

// Lock acquires the mutex for {a, b} and returns its unlock function.
// Lock(a, b) and Lock(b, a) take the same mutex.
func (p *PairLocks) Lock(a, b uint) func() {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	m := &p.stripes[(uint64(lo)*31+uint64(hi))%pairLockStripes]
	m.Lock()
	return m.Unlock
}
