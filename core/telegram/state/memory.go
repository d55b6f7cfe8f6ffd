package state

import "sync"

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryManager constructs an in-memory Manager.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[int64]*Session),
	}
}

func newSession() *Session {
	return &Session{State: StateIdle, ResumeState: StateIdle}
}

// Get returns the session for a chat, creating an idle one on first access.
func (m *memoryManager) Get(chatID int64) Session {
	m.mu.RLock()
	session, ok := m.sessions[chatID]
	if ok {
		out := *session
		m.mu.RUnlock()
		return out
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok = m.sessions[chatID]; !ok {
		session = newSession()
		m.sessions[chatID] = session
	}
	return *session
}

// Update merges p into the chat session and returns the result.
func (m *memoryManager) Update(chatID int64, p Patch) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[chatID]
	if !ok {
		session = newSession()
		m.sessions[chatID] = session
	}
	p.apply(session)
	return *session
}

// Clear resets the chat session to its empty idle value.
func (m *memoryManager) Clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[chatID] = newSession()
}
