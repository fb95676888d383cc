// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides agent directory and chat transcript persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single connection: concurrent liveness writes queue here, and :memory: stays one database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS agents (
			agent_id        TEXT PRIMARY KEY,
			agent_name      TEXT NOT NULL,
			owner_name      TEXT NOT NULL,
			title           TEXT NOT NULL DEFAULT '',
			endpoint_url    TEXT NOT NULL,
			login_token     TEXT NOT NULL UNIQUE,
			skills          TEXT NOT NULL DEFAULT '[]',
			minimum_salary  INTEGER,
			work_style      TEXT,
			bio             TEXT,
			portfolio       TEXT,
			region          TEXT,
			birth_date      TEXT,
			nationality     TEXT,
			education       TEXT,
			work_history    TEXT,
			registered_at   TEXT NOT NULL,
			is_online       INTEGER NOT NULL DEFAULT 0,
			avg_response_ms INTEGER,
			last_pinged_at  TEXT
		);

		CREATE TABLE IF NOT EXISTS chat_sessions (
			session_id    TEXT PRIMARY KEY,
			agent_id      TEXT NOT NULL,
			company_label TEXT NOT NULL,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL,
			FOREIGN KEY (agent_id) REFERENCES agents(agent_id)
		);

		CREATE INDEX IF NOT EXISTS idx_chat_sessions_agent
			ON chat_sessions(agent_id, updated_at);

		CREATE TABLE IF NOT EXISTS chat_messages (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES chat_sessions(session_id),
			CHECK (role IN ('company', 'recruiter', 'agent', 'talent', 'system'))
		);

		CREATE INDEX IF NOT EXISTS idx_chat_messages_session
			ON chat_messages(session_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies additive column changes to databases created by older builds.
func (s *SQLiteStore) runMigrations() error {
	// SQLite doesn't support ADD COLUMN IF NOT EXISTS, so we check first
	migrations := []struct {
		check  string
		apply  string
		column string
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('agents') WHERE name = 'manifest_yaml'`,
			apply:  `ALTER TABLE agents ADD COLUMN manifest_yaml TEXT`,
			column: "manifest_yaml",
		},
	}

	for _, m := range migrations {
		var exists int
		err := s.db.QueryRow(m.check).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking %s column: %w", m.column, err)
		}
		if _, err := s.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to agents: %w", m.column, err)
		}
		s.logger.Info("applied migration", "column", m.column, "table", "agents")
	}

	return nil
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if an error is a SQLite constraint violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "constraint failed")
}

const agentColumns = `agent_id, agent_name, owner_name, title, endpoint_url, login_token, skills,
	minimum_salary, work_style, bio, portfolio, region, birth_date, nationality,
	education, work_history, manifest_yaml, registered_at, is_online, avg_response_ms, last_pinged_at`

// UpsertAgent inserts a new agent or refreshes an existing one.
// endpoint_url is left untouched on conflict.
func (s *SQLiteStore) UpsertAgent(ctx context.Context, agent *Agent) error {
	skills, err := json.Marshal(nonNilStrings(agent.Skills))
	if err != nil {
		return fmt.Errorf("encoding skills: %w", err)
	}

	query := `
		INSERT INTO agents (` + agentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			agent_name = excluded.agent_name,
			owner_name = excluded.owner_name,
			title = excluded.title,
			login_token = excluded.login_token,
			skills = excluded.skills,
			minimum_salary = excluded.minimum_salary,
			work_style = excluded.work_style,
			bio = excluded.bio,
			portfolio = excluded.portfolio,
			region = excluded.region,
			birth_date = excluded.birth_date,
			nationality = excluded.nationality,
			education = excluded.education,
			work_history = excluded.work_history,
			manifest_yaml = excluded.manifest_yaml,
			is_online = excluded.is_online,
			avg_response_ms = excluded.avg_response_ms,
			last_pinged_at = excluded.last_pinged_at
	`

	_, err = s.db.ExecContext(ctx, query,
		agent.ID,
		agent.AgentName,
		agent.OwnerName,
		agent.Title,
		agent.EndpointURL,
		agent.LoginToken,
		string(skills),
		nullInt(agent.MinimumSalary),
		nullString(agent.WorkStyle),
		nullString(agent.Bio),
		nullString(agent.Portfolio),
		nullString(agent.Region),
		nullString(agent.BirthDate),
		nullString(agent.Nationality),
		nullString(string(agent.Education)),
		nullString(string(agent.WorkHistory)),
		nullString(agent.ManifestYAML),
		agent.RegisteredAt.UTC().Format(timeLayout),
		agent.IsOnline,
		nullInt(agent.AvgResponseMs),
		nullTime(agent.LastPingedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateAgent
		}
		return fmt.Errorf("upserting agent: %w", err)
	}

	s.logger.Debug("upserted agent", "agent_id", agent.ID, "online", agent.IsOnline)
	return nil
}

// GetAgentByID retrieves an agent by its ID.
// Returns ErrNotFound if the agent doesn't exist.
func (s *SQLiteStore) GetAgentByID(ctx context.Context, id string) (*Agent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE agent_id = ?`, id)
	return scanAgent(row)
}

// GetAgentByToken retrieves the agent holding a login token.
// Returns ErrNotFound if no agent has the token.
func (s *SQLiteStore) GetAgentByToken(ctx context.Context, token string) (*Agent, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE login_token = ?`, token)
	return scanAgent(row)
}

// ListAgents returns every agent ordered by registration time.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]*Agent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY registered_at ASC, agent_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying agents: %w", err)
	}
	defer rows.Close()

	var agents []*Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agents: %w", err)
	}

	return agents, nil
}

// UpdateLiveness records the outcome of a probe against an agent.
func (s *SQLiteStore) UpdateLiveness(ctx context.Context, id string, online bool, latencyMs *int) error {
	now := time.Now().UTC().Format(timeLayout)

	var (
		result sql.Result
		err    error
	)
	if latencyMs != nil {
		result, err = s.db.ExecContext(ctx,
			`UPDATE agents SET is_online = ?, last_pinged_at = ?, avg_response_ms = ? WHERE agent_id = ?`,
			online, now, *latencyMs, id)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE agents SET is_online = ?, last_pinged_at = ? WHERE agent_id = ?`,
			online, now, id)
	}
	if err != nil {
		return fmt.Errorf("updating liveness: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage appends a transcript entry, creating the session if needed.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	created := msg.CreatedAt.UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT agent_id FROM chat_sessions WHERE session_id = ?`, msg.SessionID).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		label := msg.CompanyLabel
		if label == "" {
			label = DefaultCompanyLabel
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_sessions (session_id, agent_id, company_label, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			msg.SessionID, msg.AgentID, label, created, created); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
	case err != nil:
		return fmt.Errorf("looking up session: %w", err)
	case owner != msg.AgentID:
		return ErrSessionConflict
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE chat_sessions SET updated_at = ? WHERE session_id = ?`, created, msg.SessionID); err != nil {
			return fmt.Errorf("touching session: %w", err)
		}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, string(msg.Role), msg.Content, created)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}

	if seq, err := result.LastInsertId(); err == nil {
		msg.Seq = seq
	}

	s.logger.Debug("appended message", "id", msg.ID, "session_id", msg.SessionID, "role", msg.Role)
	return nil
}

// ListSessions returns the agent's sessions with their messages, newest activity first.
func (s *SQLiteStore) ListSessions(ctx context.Context, agentID string) ([]*ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, agent_id, company_label, created_at, updated_at
		FROM chat_sessions
		WHERE agent_id = ?
		ORDER BY updated_at DESC, session_id ASC
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}

	var sessions []*ChatSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	rows.Close()

	// Messages are loaded after the session cursor closes; the pool holds one connection.
	for _, session := range sessions {
		msgs, err := s.sessionMessages(ctx, session)
		if err != nil {
			return nil, err
		}
		session.Messages = msgs
	}

	return sessions, nil
}

// GetSession returns one session with its full transcript.
func (s *SQLiteStore) GetSession(ctx context.Context, agentID, sessionID string) (*ChatSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, agent_id, company_label, created_at, updated_at
		FROM chat_sessions
		WHERE session_id = ? AND agent_id = ?
	`, sessionID, agentID)

	session, err := scanSession(row)
	if err != nil {
		return nil, err
	}

	msgs, err := s.sessionMessages(ctx, session)
	if err != nil {
		return nil, err
	}
	session.Messages = msgs
	return session, nil
}

func (s *SQLiteStore) sessionMessages(ctx context.Context, session *ChatSession) ([]*ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, session_id, role, content, created_at
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY seq ASC
	`, session.SessionID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*ChatMessage
	for rows.Next() {
		var (
			msg       ChatMessage
			role      string
			createdAt string
		)
		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.SessionID, &role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Role = Role(role)
		msg.AgentID = session.AgentID
		msg.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		msgs = append(msgs, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return msgs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*Agent, error) {
	var (
		agent                                      Agent
		skills                                     string
		minSalary, avgMs                           sql.NullInt64
		workStyle, bio, portfolio, region          sql.NullString
		birthDate, nationality, education, history sql.NullString
		manifestYAML, lastPinged                   sql.NullString
		registeredAt                               string
	)

	err := row.Scan(
		&agent.ID, &agent.AgentName, &agent.OwnerName, &agent.Title, &agent.EndpointURL, &agent.LoginToken,
		&skills, &minSalary, &workStyle, &bio, &portfolio, &region, &birthDate, &nationality,
		&education, &history, &manifestYAML, &registeredAt, &agent.IsOnline, &avgMs, &lastPinged,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning agent: %w", err)
	}

	if err := json.Unmarshal([]byte(skills), &agent.Skills); err != nil {
		return nil, fmt.Errorf("decoding skills for %s: %w", agent.ID, err)
	}
	agent.MinimumSalary = intPtr(minSalary)
	agent.AvgResponseMs = intPtr(avgMs)
	agent.WorkStyle = workStyle.String
	agent.Bio = bio.String
	agent.Portfolio = portfolio.String
	agent.Region = region.String
	agent.BirthDate = birthDate.String
	agent.Nationality = nationality.String
	agent.ManifestYAML = manifestYAML.String
	if education.Valid {
		agent.Education = json.RawMessage(education.String)
	}
	if history.Valid {
		agent.WorkHistory = json.RawMessage(history.String)
	}

	agent.RegisteredAt, err = parseTime(registeredAt)
	if err != nil {
		return nil, fmt.Errorf("parsing registered_at: %w", err)
	}
	if lastPinged.Valid {
		t, err := parseTime(lastPinged.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_pinged_at: %w", err)
		}
		agent.LastPingedAt = &t
	}

	return &agent, nil
}

func scanSession(row rowScanner) (*ChatSession, error) {
	var (
		session          ChatSession
		created, updated string
	)
	err := row.Scan(&session.SessionID, &session.AgentID, &session.CompanyLabel, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	if session.StartedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if session.LastMessageAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &session, nil
}

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// nullString returns nil for empty strings, otherwise the string
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
