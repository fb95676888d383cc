// ABOUTME: Tests for manifest validation errors and warnings
// ABOUTME: Covers parse failures, missing required fields and soft warnings

package manifest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullManifest = `
agent_settings:
  name: "Taro's Agent"
  endpoint: "http://localhost:8888/chat"
  personality: "Friendly and precise"
candidate:
  basic_info:
    name: "Taro Tanaka"
    title: "Full-stack Engineer"
    region: "Tokyo"
    birth_date: 1994-05-01
    nationality: "Japan"
  education:
    - school: "Tokyo Institute of Technology"
      degree: "MSc"
      field: "Computer Science"
      year: 2019
      status: "graduated"
  work_history:
    - company: "AI Startup"
      position: "Engineer"
      duration: "3 years"
      description: "LLM applications"
  skills:
    languages:
      - name: Python
        level: expert
      - name: Go
    frameworks:
      - name: FastAPI
        level: advanced
    tools:
      - name: Docker
        level: advanced
    other:
      - name: RAG
        level: intermediate
  preferences:
    minimum_annual_salary: 8000000
    preferred_work_style: remote
    available_from: "2025-04"
  portfolio: "https://github.com/tanaka-example"
  bio: |
    Building **LLM** products.
`

const minimalManifest = `
agent_settings:
  name: Minimal
  endpoint: https://agent.example.com/chat
candidate:
  basic_info:
    name: Someone
  skills: {}
`

func TestValidate_FullManifest(t *testing.T) {
	res := Validate(fullManifest)

	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	require.NotNil(t, res.Manifest)

	m := res.Manifest
	assert.Equal(t, "Taro's Agent", m.AgentSettings.Name)
	assert.Equal(t, "http://localhost:8888/chat", m.AgentSettings.Endpoint)
	assert.Equal(t, "Friendly and precise", m.AgentSettings.Personality)
	assert.Equal(t, "Taro Tanaka", m.Candidate.BasicInfo.Name)
	assert.Equal(t, "1994-05-01", m.Candidate.BasicInfo.BirthDate)
	require.Len(t, m.Candidate.Education, 1)
	assert.Equal(t, 2019, m.Candidate.Education[0].Year)
	require.Len(t, m.Candidate.WorkHistory, 1)
	assert.Equal(t, "AI Startup", m.Candidate.WorkHistory[0].Company)
	require.NotNil(t, m.Candidate.Preferences.MinimumAnnualSalary)
	assert.Equal(t, 8000000, *m.Candidate.Preferences.MinimumAnnualSalary)
	assert.Equal(t, "remote", m.Candidate.Preferences.PreferredWorkStyle)
	assert.Contains(t, m.Candidate.Bio, "**LLM**")

	require.Len(t, m.Candidate.Skills.Languages, 2)
	assert.Equal(t, "expert", m.Candidate.Skills.Languages[0].Level)
	assert.Equal(t, DefaultSkillLevel, m.Candidate.Skills.Languages[1].Level)
}

func TestValidate_ParseFailure(t *testing.T) {
	res := Validate("agent_settings: [unclosed\n  name: x")

	assert.False(t, res.Success)
	assert.Nil(t, res.Manifest)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "failed to parse YAML"))
	assert.Empty(t, res.Warnings)
}

func TestValidate_NotAMapping(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"scalar", "just a string"},
		{"list", "- a\n- b\n"},
		{"null", "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.input)
			assert.False(t, res.Success)
			assert.Equal(t, []string{"manifest is empty or not a YAML mapping"}, res.Errors)
			assert.Empty(t, res.Warnings)
		})
	}
}

func TestValidate_MissingEndpoint(t *testing.T) {
	res := Validate(`
agent_settings:
  name: No Endpoint
candidate:
  basic_info:
    name: Someone
  skills:
    languages:
      - name: Go
`)

	assert.False(t, res.Success)
	assert.Nil(t, res.Manifest)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "agent_settings.endpoint")
}

func TestValidate_MissingCandidateName(t *testing.T) {
	res := Validate(`
agent_settings:
  name: Agent
  endpoint: http://localhost:8888/chat
candidate:
  basic_info:
    title: Engineer
  skills:
    languages:
      - name: Go
`)

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "candidate.basic_info.name")
}

func TestValidate_AccumulatesErrors(t *testing.T) {
	res := Validate(`
agent_settings:
  endpoint: "not a url"
candidate:
  basic_info: {}
`)

	assert.False(t, res.Success)
	assert.Nil(t, res.Manifest)
	assert.ElementsMatch(t, []string{
		"agent_settings.name is required (string)",
		`agent_settings.endpoint is not a valid absolute URL: "not a url"`,
		"candidate.basic_info.name is required (string)",
		"candidate.skills section is required",
	}, res.Errors)
	// Warnings are still reported alongside errors
	assert.Contains(t, res.Warnings, "candidate.basic_info.title is recommended")
}

func TestValidate_EmptyMapping(t *testing.T) {
	res := Validate("{}")

	assert.False(t, res.Success)
	assert.Equal(t, []string{"agent_settings section is missing", "candidate section is missing"}, res.Errors)
}

func TestValidate_EndpointWithoutHost(t *testing.T) {
	for _, endpoint := range []string{"/relative/path", "localhost:8888", "http://"} {
		t.Run(endpoint, func(t *testing.T) {
			res := Validate(strings.Replace(minimalManifest, "https://agent.example.com/chat", `"`+endpoint+`"`, 1))
			assert.False(t, res.Success)
			require.Len(t, res.Errors, 1)
			assert.Contains(t, res.Errors[0], "not a valid absolute URL")
		})
	}
}

func TestValidate_ZeroSkillsIsWarning(t *testing.T) {
	res := Validate(minimalManifest)

	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.Contains(t, res.Warnings, "no skills listed; add at least one skill")
	assert.Contains(t, res.Warnings, "candidate.basic_info.title is recommended")
	assert.Contains(t, res.Warnings, "candidate.basic_info.region is recommended")
	assert.Zero(t, res.Manifest.Candidate.Skills.Count())
}

func TestValidate_SkillWithoutName(t *testing.T) {
	res := Validate(`
agent_settings:
  name: Agent
  endpoint: http://localhost:8888/chat
candidate:
  basic_info:
    name: Someone
  skills:
    languages:
      - level: expert
      - level: novice
    tools:
      - name: Docker
`)

	assert.False(t, res.Success)
	assert.Equal(t, []string{"each item in candidate.skills.languages needs a name"}, res.Errors)
}

func TestValidate_TypeWarnings(t *testing.T) {
	res := Validate(`
agent_settings:
  name: Agent
  endpoint: http://localhost:8888/chat
  personality: 42
candidate:
  basic_info:
    name: Someone
    title: Engineer
    region: Osaka
  skills:
    tools:
      - name: Docker
  preferences:
    minimum_annual_salary: "a lot"
`)

	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.ElementsMatch(t, []string{
		"agent_settings.personality should be a string",
		"candidate.preferences.minimum_annual_salary should be a number",
	}, res.Warnings)
	assert.Equal(t, "42", res.Manifest.AgentSettings.Personality)
	assert.Nil(t, res.Manifest.Candidate.Preferences.MinimumAnnualSalary)
}

func TestValidate_Deterministic(t *testing.T) {
	first := Validate(fullManifest)
	second := Validate(fullManifest)
	assert.Equal(t, first, second)
}
