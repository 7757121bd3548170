package auth

import (
	"context"
	"sync"
	"time"
)

// MemorySessionStore keeps sessions in process. It backs dev mode without
// Redis and tests.
type MemorySessionStore struct {
	mu    sync.Mutex
	now   func() time.Time
	byID  map[string]Session
	byUID map[string]map[string]struct{}
}

func NewMemorySessionStore(now func() time.Time) *MemorySessionStore {
	if now == nil {
		now = time.Now
	}
	return &MemorySessionStore{
		now:   now,
		byID:  map[string]Session{},
		byUID: map[string]map[string]struct{}{},
	}
}

func (m *MemorySessionStore) Create(_ context.Context, sid, userID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.byID[sid] = Session{UserID: userID, IssuedAt: now.Unix(), ExpiresAt: now.Add(ttl).Unix()}
	if m.byUID[userID] == nil {
		m.byUID[userID] = map[string]struct{}{}
	}
	m.byUID[userID][sid] = struct{}{}
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, sid string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.byID[sid]
	if !ok || m.now().Unix() >= sess.ExpiresAt {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.byID[sid]; ok {
		delete(m.byUID[sess.UserID], sid)
	}
	delete(m.byID, sid)
	return nil
}

func (m *MemorySessionStore) RevokeAllForUser(ctx context.Context, userID string) error {
	return m.RevokeOthers(ctx, userID, "")
}

func (m *MemorySessionStore) RevokeOthers(_ context.Context, userID, keepSID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sid := range m.byUID[userID] {
		if sid == keepSID {
			continue
		}
		delete(m.byID, sid)
		delete(m.byUID[userID], sid)
	}
	return nil
}

// Count is the number of live sessions of a user.
func (m *MemorySessionStore) Count(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUID[userID])
}
