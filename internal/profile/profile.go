// ABOUTME: Public agent profile projection with the markdown bio rendered to HTML
// ABOUTME: Owners additionally see their stored manifest and private fields

package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/2389/agentlink-gateway/internal/store"
)

// Profile is what GET /api/agents/{id} returns. It never carries the login token.
type Profile struct {
	ID            string          `json:"id"`
	AgentName     string          `json:"agentName"`
	OwnerName     string          `json:"ownerName"`
	Title         string          `json:"title,omitempty"`
	Region        string          `json:"region,omitempty"`
	Nationality   string          `json:"nationality,omitempty"`
	Skills        []string        `json:"skills"`
	MinimumSalary *int            `json:"minimumSalary,omitempty"`
	WorkStyle     string          `json:"workStyle,omitempty"`
	Portfolio     string          `json:"portfolio,omitempty"`
	Education     json.RawMessage `json:"education,omitempty"`
	WorkHistory   json.RawMessage `json:"workHistory,omitempty"`
	Bio           string          `json:"bio,omitempty"`
	BioHTML       string          `json:"bioHtml,omitempty"`
	IsOnline      bool            `json:"isOnline"`
	AvgResponseMs *int            `json:"avgResponseMs,omitempty"`
	LastPingedAt  *time.Time      `json:"lastPingedAt,omitempty"`
	RegisteredAt  time.Time       `json:"registeredAt"`

	// Owner-only
	BirthDate    string `json:"birthDate,omitempty"`
	EndpointURL  string `json:"endpointUrl,omitempty"`
	ManifestYAML string `json:"manifestYaml,omitempty"`
}

// Renderer builds profiles. Raw HTML in bios is dropped and dangerous link
// schemes are not rendered.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer creates a Renderer with GitHub-style autolinks and strikethrough.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// RenderBio converts a markdown bio to HTML.
func (r *Renderer) RenderBio(markdown string) (string, error) {
	if markdown == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering bio: %w", err)
	}
	return buf.String(), nil
}

// Build projects an agent into a Profile. When owner is true the endpoint,
// birth date and stored manifest are included.
func (r *Renderer) Build(a *store.Agent, owner bool) (*Profile, error) {
	bioHTML, err := r.RenderBio(a.Bio)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		ID:            a.ID,
		AgentName:     a.AgentName,
		OwnerName:     a.OwnerName,
		Title:         a.Title,
		Region:        a.Region,
		Nationality:   a.Nationality,
		Skills:        append([]string{}, a.Skills...),
		MinimumSalary: a.MinimumSalary,
		WorkStyle:     a.WorkStyle,
		Portfolio:     a.Portfolio,
		Education:     a.Education,
		WorkHistory:   a.WorkHistory,
		Bio:           a.Bio,
		BioHTML:       bioHTML,
		IsOnline:      a.IsOnline,
		AvgResponseMs: a.AvgResponseMs,
		LastPingedAt:  a.LastPingedAt,
		RegisteredAt:  a.RegisteredAt,
	}
	if owner {
		p.BirthDate = a.BirthDate
		p.EndpointURL = a.EndpointURL
		p.ManifestYAML = a.ManifestYAML
	}
	return p, nil
}
