package expiry

import (
	"sync"
	"time"
)

type timerEntry struct {
	timer *time.Timer
	gen   uint64
}

// timerTable holds at most one pending timer per case id. Only the Manager
// touches it, and only through schedule, cancelAll and the fire path.
type timerTable struct {
	mu        sync.Mutex
	entries   map[string]timerEntry
	gen       uint64
	afterFunc func(time.Duration, func()) *time.Timer
}

func newTimerTable(afterFunc func(time.Duration, func()) *time.Timer) *timerTable {
	return &timerTable{
		entries:   make(map[string]timerEntry),
		afterFunc: afterFunc,
	}
}

// schedule arms fire after d, replacing any timer already held for caseID.
// The entry is released once fire returns.
func (t *timerTable) schedule(caseID string, d time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.entries[caseID]; ok {
		old.timer.Stop()
	}
	t.gen++
	gen := t.gen
	timer := t.afterFunc(d, func() {
		fire()
		t.release(caseID, gen)
	})
	t.entries[caseID] = timerEntry{timer: timer, gen: gen}
}

// release drops the entry for caseID if it still belongs to generation gen.
// A timer that fires after a reset must not evict its replacement.
func (t *timerTable) release(caseID string, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[caseID]; ok && e.gen == gen {
		delete(t.entries, caseID)
	}
}

func (t *timerTable) cancelAll() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.entries)
	for _, e := range t.entries {
		e.timer.Stop()
	}
	t.entries = make(map[string]timerEntry)
	return n
}

func (t *timerTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *timerTable) has(caseID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[caseID]
	return ok
}
