// ABOUTME: Keyword-driven mock agent endpoint for manual and end-to-end testing
// ABOUTME: Speaks the agent protocol: POST {message, session_id} -> {response}

package mockagent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// Persona is the candidate the mock agent speaks for.
type Persona struct {
	Name      string
	Title     string
	Skills    []string
	Years     int
	Salary    string
	Available string
	Portfolio string
	Bio       string
}

// DefaultPersona is used when no persona is configured.
var DefaultPersona = Persona{
	Name:      "Taro Tanaka",
	Title:     "full-stack AI engineer",
	Skills:    []string{"Python", "TypeScript", "Go", "Next.js", "FastAPI", "Docker", "Kubernetes"},
	Years:     5,
	Salary:    "8,000,000 JPY or more, negotiable for the right project",
	Available: "next month",
	Portfolio: "https://github.com/tanaka-example",
	Bio:       "Builds LLM products: RAG pipelines, agent architectures and the infrastructure under them.",
}

// Reply picks a canned answer for message by keyword.
func (p Persona) Reply(message string) string {
	msg := strings.ToLower(message)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(msg, w) {
				return true
			}
		}
		return false
	}

	switch {
	case has("ping"):
		return "pong"
	case has("hello", "hi ", "connection test"):
		return fmt.Sprintf("Hello! I'm %s's agent. Ask me anything about skills, experience or salary.", p.Name)
	case has("skill", "stack", "experience"):
		return fmt.Sprintf("%s works with %s and has %d years in the industry. %s",
			p.Name, strings.Join(p.Skills, ", "), p.Years, p.Bio)
	case has("salary", "pay", "compensation"):
		return "Desired salary is " + p.Salary + "."
	case has("portfolio", "project", "github"):
		return "Portfolio: " + p.Portfolio
	case has("available", "start", "when"):
		return p.Name + " can start " + p.Available + "."
	case has("team"):
		return p.Name + " has led teams of five to ten engineers using scrum."
	}

	return fmt.Sprintf("Thanks for the question about %q. %s is a %s with %d years of experience. Ask about skills, salary or portfolio for details.",
		message, p.Name, p.Title, p.Years)
}

// Options tunes the mock endpoint.
type Options struct {
	Persona  Persona
	MinDelay time.Duration // simulated thinking time
	MaxDelay time.Duration
	Logger   *slog.Logger
}

type request struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// Handler serves the agent protocol with canned replies.
func Handler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mockagent")

	persona := opts.Persona
	if persona.Name == "" {
		persona = DefaultPersona
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}

		if d := delay(opts.MinDelay, opts.MaxDelay); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}

		reply := persona.Reply(req.Message)
		logger.Debug("mock reply", "session_id", req.SessionID, "message", req.Message)
		writeJSON(w, http.StatusOK, map[string]string{"response": reply})
	})
}

func delay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
