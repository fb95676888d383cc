// ABOUTME: Concurrent liveness probing and deterministic ranking of directory agents
// ABOUTME: Produces credential-free Listings; liveness writes are best-effort

package liveness

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/agentlink-gateway/internal/metrics"
	"github.com/2389/agentlink-gateway/internal/probe"
	"github.com/2389/agentlink-gateway/internal/store"
)

const (
	probeMessage   = "ping"
	probeSessionID = "health-check"

	// unknownLatencyMs ranks online agents without a latency after all others.
	unknownLatencyMs = 99999

	livenessWriteTimeout = 5 * time.Second
)

// Listing is the public projection of an agent used in search results. It has
// no login token field, so a Listing can be serialized to clients as is.
type Listing struct {
	ID            string     `json:"id"`
	AgentName     string     `json:"agentName"`
	OwnerName     string     `json:"ownerName"`
	Title         string     `json:"title,omitempty"`
	Skills        []string   `json:"skills"`
	MinimumSalary *int       `json:"minimumSalary,omitempty"`
	WorkStyle     string     `json:"workStyle,omitempty"`
	Region        string     `json:"region,omitempty"`
	Bio           string     `json:"bio,omitempty"`
	Portfolio     string     `json:"portfolio,omitempty"`
	RegisteredAt  time.Time  `json:"registeredAt"`
	IsOnline      bool       `json:"isOnline"`
	AvgResponseMs *int       `json:"avgResponseMs,omitempty"`
	LastPingMs    *int       `json:"lastPingMs,omitempty"`
	Outcome       probe.Kind `json:"probeOutcome,omitempty"`
}

// NewListing projects a directory agent without probing it.
func NewListing(a *store.Agent) Listing {
	l := Listing{
		ID:           a.ID,
		AgentName:    a.AgentName,
		OwnerName:    a.OwnerName,
		Title:        a.Title,
		Skills:       append([]string{}, a.Skills...),
		WorkStyle:    a.WorkStyle,
		Region:       a.Region,
		Bio:          a.Bio,
		Portfolio:    a.Portfolio,
		RegisteredAt: a.RegisteredAt,
		IsOnline:     a.IsOnline,
	}
	if a.MinimumSalary != nil {
		v := *a.MinimumSalary
		l.MinimumSalary = &v
	}
	if a.AvgResponseMs != nil {
		v := *a.AvgResponseMs
		l.AvgResponseMs = &v
	}
	return l
}

// Prober is the probing capability the Aggregator needs.
type Prober interface {
	Probe(ctx context.Context, req probe.Request) probe.Outcome
}

// Config controls probe fan-out.
type Config struct {
	Timeout        time.Duration // per-probe deadline
	MaxConcurrency int           // 0 means one goroutine per agent
}

// Aggregator probes agents concurrently and ranks them.
type Aggregator struct {
	prober  Prober
	store   store.DirectoryStore
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewAggregator creates an Aggregator. m and logger may be nil.
func NewAggregator(prober Prober, s store.DirectoryStore, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		prober:  prober,
		store:   s,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With("component", "liveness"),
	}
}

// RankAgents probes every agent, records the results, and returns the agents
// ranked online-first by ascending latency. It waits for every probe and never
// fails; agents that could not be probed are simply offline.
func (a *Aggregator) RankAgents(ctx context.Context, agents []*store.Agent) []Listing {
	listings := make([]Listing, len(agents))

	var g errgroup.Group
	if a.cfg.MaxConcurrency > 0 {
		g.SetLimit(a.cfg.MaxConcurrency)
	}

	start := time.Now()
	for i, agent := range agents {
		g.Go(func() error {
			listings[i] = a.probeOne(ctx, agent)
			return nil
		})
	}
	_ = g.Wait()

	rank(listings)

	a.logger.Debug("ranked agents",
		"count", len(listings),
		"online", countOnline(listings),
		"duration", time.Since(start))
	return listings
}

// probeOne probes a single agent and folds the outcome into its listing.
func (a *Aggregator) probeOne(ctx context.Context, agent *store.Agent) Listing {
	out := a.prober.Probe(ctx, probe.Request{
		Endpoint:  agent.EndpointURL,
		Message:   probeMessage,
		SessionID: probeSessionID,
		Timeout:   a.cfg.Timeout,
	})
	a.metrics.ObserveProbe(metrics.PurposeSearch, out)

	l := NewListing(agent)
	l.Outcome = out.Kind
	l.IsOnline = out.Online()

	var latency *int
	if out.Online() {
		ms := out.LatencyMs()
		latency = &ms
		l.AvgResponseMs = &ms
		last := ms
		l.LastPingMs = &last
	}

	a.recordLiveness(ctx, agent.ID, out.Online(), latency)
	return l
}

// recordLiveness writes the probe result to the directory. Failures are logged
// and dropped; the ranking does not depend on them.
func (a *Aggregator) recordLiveness(ctx context.Context, agentID string, online bool, latencyMs *int) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), livenessWriteTimeout)
	defer cancel()

	if err := a.store.UpdateLiveness(writeCtx, agentID, online, latencyMs); err != nil {
		a.logger.Warn("failed to record liveness",
			"agent_id", agentID,
			"online", online,
			"error", err)
	}
}

// rank orders listings in place: online before offline, online agents by
// ascending AvgResponseMs, ties and offline agents in input order.
func rank(listings []Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		li, lj := listings[i], listings[j]
		if li.IsOnline != lj.IsOnline {
			return li.IsOnline
		}
		if !li.IsOnline {
			return false
		}
		return sortLatency(li) < sortLatency(lj)
	})
}

func sortLatency(l Listing) int {
	if l.AvgResponseMs == nil {
		return unknownLatencyMs
	}
	return *l.AvgResponseMs
}

func countOnline(listings []Listing) int {
	n := 0
	for _, l := range listings {
		if l.IsOnline {
			n++
		}
	}
	return n
}
