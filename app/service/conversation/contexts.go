package conversation

import "sync"

// contextTable holds the pending goal-flow slot per user, plus a
// per-user exclusion lock so concurrent requests for the same user
// observe the slot serially.
type contextTable struct {
	mu    sync.Mutex
	slots map[string]*Context
	locks map[string]*sync.Mutex
}

func newContextTable() *contextTable {
	return &contextTable{
		slots: make(map[string]*Context),
		locks: make(map[string]*sync.Mutex),
	}
}

// lock acquires the user's exclusion lock and returns its release.
func (t *contextTable) lock(userID string) func() {
	t.mu.Lock()

	userLock, ok := t.locks[userID]
	if !ok {
		userLock = &sync.Mutex{}
		t.locks[userID] = userLock
	}

	t.mu.Unlock()

	userLock.Lock()

	return userLock.Unlock
}

func (t *contextTable) get(userID string) (Context, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot, ok := t.slots[userID]
	if !ok {
		return Context{}, false
	}

	return *slot, true
}

func (t *contextTable) set(userID string, slot Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.slots[userID] = &slot
}

func (t *contextTable) clear(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.slots, userID)
}
