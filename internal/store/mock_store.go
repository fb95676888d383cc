// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite and to inject write failures

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	agents   map[string]*Agent         // keyed by agent ID
	order    []string                  // agent IDs in insertion order
	sessions map[string]*ChatSession   // keyed by session ID
	messages map[string][]*ChatMessage // keyed by session ID
	seq      int64

	// Injected failures; nil means succeed. AppendErr only applies once
	// AppendErrAfter appends have succeeded.
	AppendErr      error
	AppendErrAfter int
	LivenessErr    error

	appends       int
	livenessCalls int
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		agents:   make(map[string]*Agent),
		sessions: make(map[string]*ChatSession),
		messages: make(map[string][]*ChatMessage),
	}
}

// UpsertAgent stores a copy of the agent, keeping an existing endpoint.
func (m *MockStore) UpsertAgent(ctx context.Context, agent *Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.agents {
		if id != agent.ID && existing.LoginToken == agent.LoginToken {
			return ErrDuplicateAgent
		}
	}

	a := copyAgent(agent)
	if existing, ok := m.agents[a.ID]; ok {
		a.EndpointURL = existing.EndpointURL
		a.RegisteredAt = existing.RegisteredAt
	} else {
		m.order = append(m.order, a.ID)
	}
	m.agents[a.ID] = a
	return nil
}

// GetAgentByID retrieves an agent by ID.
func (m *MockStore) GetAgentByID(ctx context.Context, id string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAgent(a), nil
}

// GetAgentByToken retrieves the agent holding a login token.
func (m *MockStore) GetAgentByToken(ctx context.Context, token string) (*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if token == "" {
		return nil, ErrNotFound
	}
	for _, a := range m.agents {
		if a.LoginToken == token {
			return copyAgent(a), nil
		}
	}
	return nil, ErrNotFound
}

// ListAgents returns all agents in insertion order.
func (m *MockStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agents := make([]*Agent, 0, len(m.order))
	for _, id := range m.order {
		agents = append(agents, copyAgent(m.agents[id]))
	}
	return agents, nil
}

// UpdateLiveness records a probe result.
func (m *MockStore) UpdateLiveness(ctx context.Context, id string, online bool, latencyMs *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.livenessCalls++
	if m.LivenessErr != nil {
		return m.LivenessErr
	}

	a, ok := m.agents[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	a.IsOnline = online
	a.LastPingedAt = &now
	if latencyMs != nil {
		v := *latencyMs
		a.AvgResponseMs = &v
	}
	return nil
}

// AppendMessage appends a transcript entry, creating the session on first use.
func (m *MockStore) AppendMessage(ctx context.Context, msg *ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AppendErr != nil && m.appends >= m.AppendErrAfter {
		return m.AppendErr
	}
	m.appends++

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	session, ok := m.sessions[msg.SessionID]
	if !ok {
		label := msg.CompanyLabel
		if label == "" {
			label = DefaultCompanyLabel
		}
		session = &ChatSession{
			SessionID:    msg.SessionID,
			AgentID:      msg.AgentID,
			CompanyLabel: label,
			StartedAt:    msg.CreatedAt,
		}
		m.sessions[msg.SessionID] = session
	} else if session.AgentID != msg.AgentID {
		return ErrSessionConflict
	}
	session.LastMessageAt = msg.CreatedAt

	m.seq++
	msg.Seq = m.seq
	c := *msg
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], &c)
	return nil
}

// ListSessions returns the agent's sessions, most recently active first.
func (m *MockStore) ListSessions(ctx context.Context, agentID string) ([]*ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*ChatSession
	for _, s := range m.sessions {
		if s.AgentID == agentID {
			result = append(result, m.copySession(s))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].LastMessageAt.Equal(result[j].LastMessageAt) {
			return result[i].SessionID < result[j].SessionID
		}
		return result[i].LastMessageAt.After(result[j].LastMessageAt)
	})
	return result, nil
}

// GetSession returns one session and its transcript.
func (m *MockStore) GetSession(ctx context.Context, agentID, sessionID string) (*ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.AgentID != agentID {
		return nil, ErrNotFound
	}
	return m.copySession(s), nil
}

// Messages returns every message of a session in append order.
func (m *MockStore) Messages(sessionID string) []*ChatMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := make([]*ChatMessage, 0, len(m.messages[sessionID]))
	for _, msg := range m.messages[sessionID] {
		c := *msg
		msgs = append(msgs, &c)
	}
	return msgs
}

// LivenessCalls counts UpdateLiveness invocations, including failed ones.
func (m *MockStore) LivenessCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.livenessCalls
}

// Ping always succeeds.
func (m *MockStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// copySession must be called with mu held.
func (m *MockStore) copySession(s *ChatSession) *ChatSession {
	c := *s
	c.Messages = make([]*ChatMessage, 0, len(m.messages[s.SessionID]))
	for _, msg := range m.messages[s.SessionID] {
		mc := *msg
		c.Messages = append(c.Messages, &mc)
	}
	return &c
}

func copyAgent(a *Agent) *Agent {
	c := *a
	c.Skills = append([]string(nil), a.Skills...)
	if a.MinimumSalary != nil {
		v := *a.MinimumSalary
		c.MinimumSalary = &v
	}
	if a.AvgResponseMs != nil {
		v := *a.AvgResponseMs
		c.AvgResponseMs = &v
	}
	if a.LastPingedAt != nil {
		t := *a.LastPingedAt
		c.LastPingedAt = &t
	}
	return &c
}

// Ensure MockStore implements Store
var _ Store = (*MockStore)(nil)
