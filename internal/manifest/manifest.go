// ABOUTME: Typed agent manifest produced by Validate
// ABOUTME: Includes YAML re-serialization and skill flattening for directory records

package manifest

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSkillLevel is assigned to skills declared without a level.
const DefaultSkillLevel = "unspecified"

// Manifest describes one agent endpoint and the candidate it represents.
type Manifest struct {
	AgentSettings AgentSettings `yaml:"agent_settings" json:"agent_settings"`
	Candidate     Candidate     `yaml:"candidate" json:"candidate"`
}

// AgentSettings holds the routing part of a manifest.
type AgentSettings struct {
	Name        string `yaml:"name" json:"name"`
	Endpoint    string `yaml:"endpoint" json:"endpoint"`
	Personality string `yaml:"personality,omitempty" json:"personality,omitempty"`
}

// Candidate holds the profile part of a manifest.
type Candidate struct {
	BasicInfo   BasicInfo     `yaml:"basic_info" json:"basic_info"`
	Education   []Education   `yaml:"education,omitempty" json:"education,omitempty"`
	WorkHistory []WorkHistory `yaml:"work_history,omitempty" json:"work_history,omitempty"`
	Skills      Skills        `yaml:"skills" json:"skills"`
	Preferences Preferences   `yaml:"preferences,omitempty" json:"preferences"`
	Portfolio   string        `yaml:"portfolio,omitempty" json:"portfolio,omitempty"`
	Bio         string        `yaml:"bio,omitempty" json:"bio,omitempty"`
}

type BasicInfo struct {
	Name        string `yaml:"name" json:"name"`
	Title       string `yaml:"title,omitempty" json:"title,omitempty"`
	Region      string `yaml:"region,omitempty" json:"region,omitempty"`
	BirthDate   string `yaml:"birth_date,omitempty" json:"birth_date,omitempty"`
	Nationality string `yaml:"nationality,omitempty" json:"nationality,omitempty"`
}

type Education struct {
	School string `yaml:"school" json:"school"`
	Degree string `yaml:"degree" json:"degree"`
	Field  string `yaml:"field,omitempty" json:"field,omitempty"`
	Year   int    `yaml:"year" json:"year"`
	Status string `yaml:"status,omitempty" json:"status,omitempty"`
}

type WorkHistory struct {
	Company     string `yaml:"company" json:"company"`
	Position    string `yaml:"position" json:"position"`
	Duration    string `yaml:"duration" json:"duration"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Skills groups skills by category. Category order is significant.
type Skills struct {
	Languages  []Skill `yaml:"languages,omitempty" json:"languages"`
	Frameworks []Skill `yaml:"frameworks,omitempty" json:"frameworks"`
	Tools      []Skill `yaml:"tools,omitempty" json:"tools"`
	Other      []Skill `yaml:"other,omitempty" json:"other"`
}

type Skill struct {
	Name  string `yaml:"name" json:"name"`
	Level string `yaml:"level" json:"level"`
}

type Preferences struct {
	MinimumAnnualSalary *int   `yaml:"minimum_annual_salary,omitempty" json:"minimum_annual_salary,omitempty"`
	PreferredWorkStyle  string `yaml:"preferred_work_style,omitempty" json:"preferred_work_style,omitempty"`
	AvailableFrom       string `yaml:"available_from,omitempty" json:"available_from,omitempty"`
}

// Count returns the number of skills across all categories.
func (s Skills) Count() int {
	return len(s.Languages) + len(s.Frameworks) + len(s.Tools) + len(s.Other)
}

// FlattenSkills returns every skill name lower-cased, in category order
// languages, frameworks, tools, other.
func (m *Manifest) FlattenSkills() []string {
	sk := m.Candidate.Skills
	out := make([]string, 0, sk.Count())
	for _, group := range [][]Skill{sk.Languages, sk.Frameworks, sk.Tools, sk.Other} {
		for _, s := range group {
			out = append(out, strings.ToLower(s.Name))
		}
	}
	return out
}

// Marshal re-serializes the manifest. Validate accepts the output and
// yields an equal Manifest.
func (m *Manifest) Marshal() (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshaling manifest: %w", err)
	}
	return string(data), nil
}
