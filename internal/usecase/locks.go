package usecase

import (
	"sort"
	"sync"
)

// AccountLocks serializes append+recompute passes per account. A
// recompute reads an anchor and blindly overwrites the whole sequence,
// so two concurrent passes on the same account would corrupt
// balance_after. Different accounts proceed in parallel.
type AccountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAccountLocks creates an empty lock registry.
func NewAccountLocks() *AccountLocks {
	return &AccountLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *AccountLocks) get(accountID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[accountID] = m
	}

	return m
}

// Lock acquires the lock for one account and returns its unlock func.
func (l *AccountLocks) Lock(accountID string) func() {
	m := l.get(accountID)
	m.Lock()

	return m.Unlock
}

// LockAll acquires locks for several accounts in sorted id order
// (DEADLOCK PREVENTION) and returns a func releasing them in reverse.
func (l *AccountLocks) LockAll(accountIDs []string) func() {
	ids := make([]string, len(accountIDs))
	copy(ids, accountIDs)
	sort.Strings(ids)

	held := make([]*sync.Mutex, 0, len(ids))
	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}

		m := l.get(id)
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
