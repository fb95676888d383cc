// ABOUTME: Tests for concurrent liveness fan-out and ranking
// ABOUTME: Includes a wall-clock check that probes run in parallel

package liveness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentlink-gateway/internal/metrics"
	"github.com/2389/agentlink-gateway/internal/probe"
	"github.com/2389/agentlink-gateway/internal/store"
)

// fakeProber returns canned outcomes keyed by endpoint and tracks concurrency.
type fakeProber struct {
	mu       sync.Mutex
	outcomes map[string]probe.Outcome
	delay    time.Duration
	requests []probe.Request

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeProber() *fakeProber {
	return &fakeProber{outcomes: make(map[string]probe.Outcome)}
}

func (f *fakeProber) Probe(ctx context.Context, req probe.Request) probe.Outcome {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	out, ok := f.outcomes[req.Endpoint]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return probe.Outcome{Kind: probe.KindTimeout}
		}
	}
	if !ok {
		return probe.Outcome{Kind: probe.KindNetworkFailure, Detail: "no route"}
	}
	return out
}

func online(ms int) probe.Outcome {
	return probe.Outcome{Kind: probe.KindOnline, Latency: time.Duration(ms) * time.Millisecond, Sample: "pong"}
}

func seedAgent(t *testing.T, s *store.MockStore, id, endpoint string) *store.Agent {
	t.Helper()
	a := &store.Agent{
		ID:           id,
		AgentName:    "Agent " + id,
		OwnerName:    "Owner " + id,
		EndpointURL:  endpoint,
		LoginToken:   "token-" + id,
		Skills:       []string{"go"},
		RegisteredAt: time.Now().UTC(),
	}
	require.NoError(t, s.UpsertAgent(context.Background(), a))
	got, err := s.GetAgentByID(context.Background(), id)
	require.NoError(t, err)
	return got
}

func ids(listings []Listing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.ID
	}
	return out
}

func TestRankAgents_OnlineFirstByLatency(t *testing.T) {
	s := store.NewMockStore()
	p := newFakeProber()
	p.outcomes["http://a"] = online(50)
	p.outcomes["http://b"] = probe.Outcome{Kind: probe.KindErrorStatus, HTTPStatus: 500}
	p.outcomes["http://c"] = online(150)

	agents := []*store.Agent{
		seedAgent(t, s, "a", "http://a"),
		seedAgent(t, s, "b", "http://b"),
		seedAgent(t, s, "c", "http://c"),
	}

	agg := NewAggregator(p, s, Config{Timeout: time.Second}, nil, nil)
	listings := agg.RankAgents(context.Background(), agents)

	require.Len(t, listings, 3)
	assert.Equal(t, []string{"a", "c", "b"}, ids(listings))
	assert.True(t, listings[0].IsOnline)
	require.NotNil(t, listings[0].AvgResponseMs)
	assert.Equal(t, 50, *listings[0].AvgResponseMs)
	assert.Equal(t, 50, *listings[0].LastPingMs)
	assert.False(t, listings[2].IsOnline)
	assert.Equal(t, probe.KindErrorStatus, listings[2].Outcome)
	assert.Nil(t, listings[2].LastPingMs)
}

func TestRankAgents_ProbeRequest(t *testing.T) {
	s := store.NewMockStore()
	p := newFakeProber()
	p.outcomes["http://a"] = online(10)

	agg := NewAggregator(p, s, Config{Timeout: 5 * time.Second}, nil, nil)
	agg.RankAgents(context.Background(), []*store.Agent{seedAgent(t, s, "a", "http://a")})

	require.Len(t, p.requests, 1)
	assert.Equal(t, probe.Request{
		Endpoint:  "http://a",
		Message:   "ping",
		SessionID: "health-check",
		Timeout:   5 * time.Second,
	}, p.requests[0])
}

func TestRankAgents_OfflineKeepInputOrder(t *testing.T) {
	s := store.NewMockStore()
	p := newFakeProber()
	p.outcomes["http://on"] = online(20)

	agents := []*store.Agent{
		seedAgent(t, s, "z", "http://z"),
		seedAgent(t, s, "y", "http://y"),
		seedAgent(t, s, "on", "http://on"),
		seedAgent(t, s, "x", "http://x"),
	}

	listings := NewAggregator(p, s, Config{Timeout: time.Second}, nil, nil).RankAgents(context.Background(), agents)

	assert.Equal(t, []string{"on", "z", "y", "x"}, ids(listings))
}

func TestRankAgents_EqualLatencyIsStable(t *testing.T) {
	s := store.NewMockStore()
	p := newFakeProber()
	for _, id := range []string{"p", "q", "r"} {
		p.outcomes["http://"+id] = online(40)
	}

	agents := []*store.Agent{
		seedAgent(t, s, "p", "http://p"),
		seedAgent(t, s, "q", "http://q"),
		seedAgent(t, s, "r", "http://r"),
	}

	for range 5 {
		listings := NewAggregator(p, s, Config{Timeout: time.Second}, nil, nil).RankAgents(context.Background(), agents)
		assert.Equal(t, []string{"p", "q", "r"}, ids(listings))
	}
}

func TestRank_NilLatencySortsLast(t *testing.T) {
	fast, slow := 10, 500
	listings := []Listing{
		{ID: "unknown", IsOnline: true},
		{ID: "slow", IsOnline: true, AvgResponseMs: &slow},
		{ID: "offline", IsOnline: false, AvgResponseMs: &fast},
		{ID: "fast", IsOnline: true, AvgResponseMs: &fast},
	}

	rank(listings)

	assert.Equal(t, []string{"fast", "slow", "unknown", "offline"}, ids(listings))
}

func TestRankAgents_RecordsLiveness(t *testing.T) {
	s := store.NewMockStore()
	p := newFakeProber()
	p.outcomes["http://up"] = online(42)

	up := seedAgent(t, s, "up", "http://up")
	down := seedAgent(t, s, "down", "http://down")
	prev := 300
	require.NoError(t, s.UpdateLiveness(context.Background(), "down", true, &prev))
	down, err := s.GetAgentByID(context.Background(), "down")
	require.NoError(t, err)

	listings := NewAggregator(p, s, Config{Timeout: time.Second}, nil, nil).RankAgents(context.Background(), []*store.Agent{down, up})
	assert.Equal(t, []string{"up", "down"}, ids(listings))

	gotUp, err := s.GetAgentByID(context.Background(), "up")
	require.NoError(t, err)
	assert.True(t, gotUp.IsOnline)
	require.NotNil(t, gotUp.AvgResponseMs)
	assert.Equal(t, 42, *gotUp.AvgResponseMs)
	assert.NotNil(t, gotUp.LastPingedAt)

	gotDown, err := s.GetAgentByID(context.Background(), "down")
	require.NoError(t, err)
	assert.False(t, gotDown.IsOnline)
	require.NotNil(t, gotDown.AvgResponseMs, "offline probe must not clear the previous latency")
	assert.Equal(t, 300, *gotDown.AvgResponseMs)
}

func TestRankAgents_StoreFailureDoesNotFailRanking(t *testing.T) {
	s := store.NewMockStore()
	p := newFakeProber()
	p.outcomes["http://a"] = online(5)
	p.outcomes["http://b"] = online(1)

	agents := []*store.Agent{seedAgent(t, s, "a", "http://a"), seedAgent(t, s, "b", "http://b")}
	s.LivenessErr = errors.New("disk full")

	listings := NewAggregator(p, s, Config{Timeout: time.Second}, nil, nil).RankAgents(context.Background(), agents)

	assert.Equal(t, []string{"b", "a"}, ids(listings))
	assert.Equal(t, 2, s.LivenessCalls())
}

func TestRankAgents_Empty(t *testing.T) {
	agg := NewAggregator(newFakeProber(), store.NewMockStore(), Config{Timeout: time.Second}, nil, nil)

	listings := agg.RankAgents(context.Background(), nil)

	assert.NotNil(t, listings)
	assert.Empty(t, listings)
}

func TestRankAgents_MaxConcurrency(t *testing.T) {
	s := store.NewMockStore()
	p := newFakeProber()
	p.delay = 20 * time.Millisecond

	var agents []*store.Agent
	for i := range 12 {
		id := fmt.Sprintf("agent-%02d", i)
		p.outcomes["http://"+id] = online(i)
		agents = append(agents, seedAgent(t, s, id, "http://"+id))
	}

	listings := NewAggregator(p, s, Config{Timeout: time.Second, MaxConcurrency: 3}, nil, nil).RankAgents(context.Background(), agents)

	assert.Len(t, listings, 12)
	assert.LessOrEqual(t, p.maxInFlight.Load(), int32(3))
}

func TestRankAgents_CancelledContext(t *testing.T) {
	s := store.NewMockStore()
	p := newFakeProber()
	p.delay = 10 * time.Second
	p.outcomes["http://a"] = online(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	listings := NewAggregator(p, s, Config{Timeout: time.Second}, nil, nil).RankAgents(ctx, []*store.Agent{seedAgent(t, s, "a", "http://a")})

	require.Len(t, listings, 1)
	assert.False(t, listings[0].IsOnline)
	assert.Equal(t, probe.KindTimeout, listings[0].Outcome)
	// The liveness write is detached from the cancelled request
	got, err := s.GetAgentByID(context.Background(), "a")
	require.NoError(t, err)
	assert.NotNil(t, got.LastPingedAt)
}

func TestRankAgents_ConcurrentFanOut(t *testing.T) {
	// Every agent answers just under the probe deadline; a serial
	// implementation would take len(agents) times longer.
	const (
		agentCount = 50
		timeout    = time.Second
		hang       = 800 * time.Millisecond
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(hang):
		case <-r.Context().Done():
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "pong"})
	}))
	defer srv.Close()

	s := store.NewMockStore()
	var agents []*store.Agent
	for i := range agentCount {
		agents = append(agents, seedAgent(t, s, fmt.Sprintf("agent-%02d", i), srv.URL))
	}

	client := &http.Client{Transport: &http.Transport{MaxConnsPerHost: 0, MaxIdleConnsPerHost: agentCount}}
	agg := NewAggregator(probe.New(client), s, Config{Timeout: timeout}, metrics.New(), nil)

	start := time.Now()
	listings := agg.RankAgents(context.Background(), agents)
	elapsed := time.Since(start)

	require.Len(t, listings, agentCount)
	assert.Less(t, elapsed, timeout+time.Second, "probes must run concurrently")
	for _, l := range listings {
		assert.True(t, l.IsOnline, "agent %s", l.ID)
	}
	assert.Equal(t, agentCount, s.LivenessCalls())
}

func TestListing_HasNoCredential(t *testing.T) {
	a := &store.Agent{ID: "a", AgentName: "A", LoginToken: "secret-token", Skills: []string{"go"}}

	data, err := json.Marshal(NewListing(a))
	require.NoError(t, err)

	assert.NotContains(t, string(data), "secret-token")
	assert.NotContains(t, string(data), "loginToken")
}
