// ABOUTME: Store interfaces and data types for agentlink-gateway persistence
// ABOUTME: Defines Agent, ChatMessage, ChatSession and the directory/session log interfaces

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateAgent is returned when a login token is already bound to another agent
var ErrDuplicateAgent = errors.New("agent already exists")

// ErrSessionConflict is returned when a session ID is already owned by a different agent
var ErrSessionConflict = errors.New("session belongs to another agent")

// Role identifies who authored a chat log entry
type Role string

const (
	RoleCompany   Role = "company"   // Recruiter writing through the relay
	RoleRecruiter Role = "recruiter" // Alias accepted from newer clients
	RoleAgent     Role = "agent"     // Reply produced by the remote agent
	RoleTalent    Role = "talent"    // Agent owner posting directly
	RoleSystem    Role = "system"    // Gateway-generated notice
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCompany, RoleRecruiter, RoleAgent, RoleTalent, RoleSystem:
		return true
	}
	return false
}

// DefaultCompanyLabel is used for sessions opened without an explicit label
const DefaultCompanyLabel = "company"

// Agent is a directory entry for a registered remote agent endpoint.
type Agent struct {
	ID            string
	AgentName     string
	OwnerName     string
	Title         string
	EndpointURL   string // immutable once registered
	LoginToken    string // credential; never leaves the gateway except at registration
	Skills        []string
	MinimumSalary *int
	WorkStyle     string
	Bio           string
	Portfolio     string
	Region        string
	BirthDate     string
	Nationality   string
	Education     json.RawMessage
	WorkHistory   json.RawMessage
	ManifestYAML  string
	RegisteredAt  time.Time

	// Liveness is advisory and may be stale
	IsOnline      bool
	AvgResponseMs *int
	LastPingedAt  *time.Time
}

// ChatMessage is one append-only entry in a session transcript.
type ChatMessage struct {
	ID           string
	Seq          int64
	SessionID    string
	AgentID      string
	Role         Role
	Content      string
	CompanyLabel string // only used when the append opens a new session
	CreatedAt    time.Time
}

// ChatSession groups the transcript of one recruiter/agent conversation.
type ChatSession struct {
	SessionID     string
	AgentID       string
	CompanyLabel  string
	StartedAt     time.Time
	LastMessageAt time.Time
	Messages      []*ChatMessage
}

// DirectoryStore persists registered agents and their liveness.
type DirectoryStore interface {
	// UpsertAgent inserts or replaces an agent record. The endpoint of an
	// existing record is never changed.
	UpsertAgent(ctx context.Context, agent *Agent) error

	// GetAgentByID returns ErrNotFound if no agent has the ID.
	GetAgentByID(ctx context.Context, id string) (*Agent, error)

	// GetAgentByToken returns ErrNotFound if no agent holds the token.
	GetAgentByToken(ctx context.Context, token string) (*Agent, error)

	// ListAgents returns all agents in registration order.
	ListAgents(ctx context.Context) ([]*Agent, error)

	// UpdateLiveness records a probe result. latencyMs is only written when non-nil.
	UpdateLiveness(ctx context.Context, id string, online bool, latencyMs *int) error
}

// SessionLogStore persists chat transcripts.
type SessionLogStore interface {
	// AppendMessage appends an entry, creating the session on first use.
	AppendMessage(ctx context.Context, msg *ChatMessage) error

	// ListSessions returns the agent's sessions, most recently active first.
	ListSessions(ctx context.Context, agentID string) ([]*ChatSession, error)

	// GetSession returns ErrNotFound if the session is unknown or owned by another agent.
	GetSession(ctx context.Context, agentID, sessionID string) (*ChatSession, error)
}

// Store combines both persistence concerns with lifecycle management.
type Store interface {
	DirectoryStore
	SessionLogStore

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}
