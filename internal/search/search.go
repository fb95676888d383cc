// ABOUTME: Directory search: filters agents by skill, salary and free text
// ABOUTME: Matching agents are re-probed and ranked by the liveness aggregator

package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/agentlink-gateway/internal/liveness"
	"github.com/2389/agentlink-gateway/internal/store"
)

// Query selects agents from the directory. Zero values disable a filter.
type Query struct {
	SkillFilter []string `json:"skillFilter"`
	MaxSalary   *int     `json:"maxSalary"`
	OnlineOnly  bool     `json:"onlineOnly"`
	Text        string   `json:"query"`
}

// Result is a ranked page of listings.
type Result struct {
	Agents []liveness.Listing `json:"agents"`
	Total  int                `json:"total"`
}

// Ranker probes and orders agents.
type Ranker interface {
	RankAgents(ctx context.Context, agents []*store.Agent) []liveness.Listing
}

// AgentLister supplies the directory to search.
type AgentLister interface {
	ListAgents(ctx context.Context) ([]*store.Agent, error)
}

// Service answers directory searches.
type Service struct {
	agents AgentLister
	ranker Ranker
	logger *slog.Logger
}

// NewService creates a search Service. logger may be nil.
func NewService(agents AgentLister, ranker Ranker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		agents: agents,
		ranker: ranker,
		logger: logger.With("component", "search"),
	}
}

// Search filters the directory, probes every match, and returns the matches
// ranked online-first. With OnlineOnly set, offline agents are dropped after
// probing so their liveness is still refreshed.
func (s *Service) Search(ctx context.Context, q Query) (*Result, error) {
	all, err := s.agents.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}

	matches := Filter(all, q)
	listings := s.ranker.RankAgents(ctx, matches)

	if q.OnlineOnly {
		online := listings[:0]
		for _, l := range listings {
			if l.IsOnline {
				online = append(online, l)
			}
		}
		listings = online
	}

	s.logger.Debug("search complete",
		"directory", len(all),
		"matched", len(matches),
		"returned", len(listings))

	return &Result{Agents: listings, Total: len(listings)}, nil
}

// Filter returns the agents matching every active filter, in directory order.
func Filter(agents []*store.Agent, q Query) []*store.Agent {
	skills := normalize(q.SkillFilter)
	text := strings.ToLower(strings.TrimSpace(q.Text))

	out := make([]*store.Agent, 0, len(agents))
	for _, a := range agents {
		if len(skills) > 0 && !hasAnySkill(a, skills) {
			continue
		}
		if q.MaxSalary != nil && a.MinimumSalary != nil && *a.MinimumSalary > *q.MaxSalary {
			continue
		}
		if text != "" && !matchesText(a, text) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func normalize(filter []string) []string {
	out := make([]string, 0, len(filter))
	for _, f := range filter {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// hasAnySkill reports whether any wanted term is a substring of any skill.
func hasAnySkill(a *store.Agent, wanted []string) bool {
	for _, w := range wanted {
		for _, s := range a.Skills {
			if strings.Contains(strings.ToLower(s), w) {
				return true
			}
		}
	}
	return false
}

func matchesText(a *store.Agent, text string) bool {
	for _, field := range []string{a.AgentName, a.OwnerName, a.Title, a.Bio} {
		if strings.Contains(strings.ToLower(field), text) {
			return true
		}
	}
	for _, s := range a.Skills {
		if strings.Contains(strings.ToLower(s), text) {
			return true
		}
	}
	return false
}
