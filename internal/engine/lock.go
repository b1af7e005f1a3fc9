package engine

import "sync"

// runLocks serializes turns by run identity. The engine assumes at most one
// in-flight turn per run; this enforces that discipline in-process.
type runLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRunLocks() *runLocks {
	return &runLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for runID and returns its release func.
func (l *runLocks) lock(runID string) func() {
	l.mu.Lock()
	m, ok := l.locks[runID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[runID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
