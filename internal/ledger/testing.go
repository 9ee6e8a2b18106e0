package ledger

import "time"

// SeedBalance is a test helper that sets a user's balance directly when using
// the in-memory store.
func SeedBalance(s Store, userID string, credits int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		now := time.Now().UTC()
		mem.balances[userID] = Balance{UserID: userID, Credits: credits, UpdatedAt: &now}
	}
}
