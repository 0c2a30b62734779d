package auth

import (
	"sync"
	"time"
)

// PendingStore holds registrations until they are activated or expire.
type PendingStore struct {
	mu      sync.Mutex
	entries map[string]Pending
	now     func() time.Time
}

// NewPendingStore builds an empty PendingStore.
func NewPendingStore() *PendingStore {
	return &PendingStore{
		entries: make(map[string]Pending),
		now:     time.Now,
	}
}

// PutIfAbsent stores p unless an unexpired registration for the same e-mail
// is already parked. It reports whether p was stored.
func (s *PendingStore) PutIfAbsent(p Pending) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.entries[p.Email]; ok && s.now().Before(cur.ExpiresAt) {
		return false
	}
	s.entries[p.Email] = p
	return true
}

// Discard removes the registration for p.Email only while it is still p.
// Salted hashes tell two registrations of one address apart.
func (s *PendingStore) Discard(p Pending) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entries[p.Email]
	if !ok || cur.PasswordHash != p.PasswordHash {
		return false
	}
	delete(s.entries, p.Email)
	return true
}

// Has reports whether an unexpired registration exists for email.
func (s *PendingStore) Has(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[email]
	if ok && !s.now().Before(p.ExpiresAt) {
		delete(s.entries, email)
		return false
	}
	return ok
}

// Take removes and returns the registration for email if it has not expired.
func (s *PendingStore) Take(email string) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.entries[email]
	if !ok {
		return Pending{}, false
	}
	delete(s.entries, email)
	if !s.now().Before(p.ExpiresAt) {
		return Pending{}, false
	}
	return p, true
}

// Sweep drops expired registrations.
func (s *PendingStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for email, p := range s.entries {
		if !now.Before(p.ExpiresAt) {
			delete(s.entries, email)
			removed++
		}
	}
	return removed
}
