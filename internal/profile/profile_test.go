// ABOUTME: Tests for profile projection and markdown bio rendering
// ABOUTME: Verifies owner-only fields stay hidden from public views

package profile

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/agentlink-gateway/internal/store"
)

func sampleAgent() *store.Agent {
	salary := 8000000
	return &store.Agent{
		ID:            "agent-1",
		AgentName:     "Taro's Agent",
		OwnerName:     "Taro Tanaka",
		Title:         "Engineer",
		EndpointURL:   "http://localhost:8888/chat",
		LoginToken:    "secret-login-token",
		Skills:        []string{"go", "python"},
		MinimumSalary: &salary,
		Bio:           "Building **LLM** products.",
		BirthDate:     "1994-05-01",
		Education:     json.RawMessage(`[{"school":"TIT"}]`),
		ManifestYAML:  "agent_settings:\n  name: x\n",
		RegisteredAt:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRenderBio(t *testing.T) {
	r := NewRenderer()

	out, err := r.RenderBio("Building **LLM** products.\nSee https://example.com")
	require.NoError(t, err)

	assert.Contains(t, out, "<strong>LLM</strong>")
	assert.Contains(t, out, `<a href="https://example.com">`)
	assert.Contains(t, out, "<br")
}

func TestRenderBio_Empty(t *testing.T) {
	out, err := NewRenderer().RenderBio("")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRenderBio_DropsRawHTML(t *testing.T) {
	out, err := NewRenderer().RenderBio("hello <script>alert(1)</script>\n\n[click](javascript:alert(1))")
	require.NoError(t, err)

	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "javascript:")
}

func TestBuild_Public(t *testing.T) {
	p, err := NewRenderer().Build(sampleAgent(), false)
	require.NoError(t, err)

	assert.Equal(t, "agent-1", p.ID)
	assert.Contains(t, p.BioHTML, "<strong>LLM</strong>")
	assert.Empty(t, p.EndpointURL)
	assert.Empty(t, p.BirthDate)
	assert.Empty(t, p.ManifestYAML)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-login-token")
	assert.NotContains(t, string(data), "endpointUrl")
	assert.Contains(t, string(data), `"education":[{"school":"TIT"}]`)
}

func TestBuild_Owner(t *testing.T) {
	p, err := NewRenderer().Build(sampleAgent(), true)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8888/chat", p.EndpointURL)
	assert.Equal(t, "1994-05-01", p.BirthDate)
	assert.Contains(t, p.ManifestYAML, "agent_settings")

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-login-token")
}
