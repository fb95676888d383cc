// ABOUTME: Manifest validation: parses YAML text and accumulates errors and warnings
// ABOUTME: A result is either a complete Manifest or a rejection; never partial

package manifest

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Result is the outcome of validating manifest text.
type Result struct {
	Success  bool      `json:"success"`
	Manifest *Manifest `json:"data,omitempty"`
	Errors   []string  `json:"errors"`
	Warnings []string  `json:"warnings"`
}

// skillCategories is the fixed category order used everywhere skills are walked.
var skillCategories = []string{"languages", "frameworks", "tools", "other"}

// Validate parses text as a YAML manifest. A syntax error short-circuits with
// a single error; otherwise every required-field check runs and contributes
// its own error. Warnings never cause rejection.
func Validate(text string) Result {
	var raw any
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
		return Result{
			Errors:   []string{fmt.Sprintf("failed to parse YAML: %v", err)},
			Warnings: []string{},
		}
	}

	root, ok := asMap(raw)
	if !ok {
		return Result{
			Errors:   []string{"manifest is empty or not a YAML mapping"},
			Warnings: []string{},
		}
	}

	v := &validator{}
	settings := v.checkAgentSettings(root)
	candidate := v.checkCandidate(root)

	if len(v.errors) > 0 {
		return Result{Errors: v.errors, Warnings: v.warningsOrEmpty()}
	}

	return Result{
		Success:  true,
		Manifest: build(settings, candidate),
		Errors:   []string{},
		Warnings: v.warningsOrEmpty(),
	}
}

type validator struct {
	errors   []string
	warnings []string
}

func (v *validator) errorf(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) warnf(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) warningsOrEmpty() []string {
	if v.warnings == nil {
		return []string{}
	}
	return v.warnings
}

func (v *validator) checkAgentSettings(root map[string]any) map[string]any {
	settings, ok := asMap(root["agent_settings"])
	if !ok {
		v.errorf("agent_settings section is missing")
		return nil
	}

	if !isNonEmptyString(settings["name"]) {
		v.errorf("agent_settings.name is required (string)")
	}

	if !isNonEmptyString(settings["endpoint"]) {
		v.errorf("agent_settings.endpoint is required (URL string)")
	} else if endpoint := settings["endpoint"].(string); !isAbsoluteURL(endpoint) {
		v.errorf("agent_settings.endpoint is not a valid absolute URL: %q", endpoint)
	}

	if p, present := settings["personality"]; present && truthy(p) {
		if _, isString := p.(string); !isString {
			v.warnf("agent_settings.personality should be a string")
		}
	}

	return settings
}

func (v *validator) checkCandidate(root map[string]any) map[string]any {
	candidate, ok := asMap(root["candidate"])
	if !ok {
		v.errorf("candidate section is missing")
		return nil
	}

	if basic, ok := asMap(candidate["basic_info"]); !ok {
		v.errorf("candidate.basic_info section is required")
	} else {
		if !isNonEmptyString(basic["name"]) {
			v.errorf("candidate.basic_info.name is required (string)")
		}
		if !truthy(basic["title"]) {
			v.warnf("candidate.basic_info.title is recommended")
		}
		if !truthy(basic["region"]) {
			v.warnf("candidate.basic_info.region is recommended")
		}
	}

	if skills, ok := asMap(candidate["skills"]); !ok {
		v.errorf("candidate.skills section is required")
	} else {
		hasAny := false
		for _, cat := range skillCategories {
			items, ok := skills[cat].([]any)
			if !ok || len(items) == 0 {
				continue
			}
			hasAny = true
			for _, item := range items {
				m, ok := asMap(item)
				if !ok || !isNonEmptyString(m["name"]) {
					v.errorf("each item in candidate.skills.%s needs a name", cat)
					break
				}
			}
		}
		if !hasAny {
			v.warnf("no skills listed; add at least one skill")
		}
	}

	if prefs, ok := asMap(candidate["preferences"]); ok {
		if salary, present := prefs["minimum_annual_salary"]; present && !isNumber(salary) {
			v.warnf("candidate.preferences.minimum_annual_salary should be a number")
		}
	}

	return candidate
}

// build assumes every required check passed.
func build(settings, candidate map[string]any) *Manifest {
	basic, _ := asMap(candidate["basic_info"])
	skills, _ := asMap(candidate["skills"])
	prefs, _ := asMap(candidate["preferences"])

	m := &Manifest{
		AgentSettings: AgentSettings{
			Name:        toString(settings["name"]),
			Endpoint:    toString(settings["endpoint"]),
			Personality: optString(settings["personality"]),
		},
		Candidate: Candidate{
			BasicInfo: BasicInfo{
				Name:        toString(basic["name"]),
				Title:       optString(basic["title"]),
				Region:      optString(basic["region"]),
				BirthDate:   optString(basic["birth_date"]),
				Nationality: optString(basic["nationality"]),
			},
			Skills: Skills{
				Languages:  toSkills(skills["languages"]),
				Frameworks: toSkills(skills["frameworks"]),
				Tools:      toSkills(skills["tools"]),
				Other:      toSkills(skills["other"]),
			},
			Preferences: Preferences{
				MinimumAnnualSalary: toSalary(prefs["minimum_annual_salary"]),
				PreferredWorkStyle:  optString(prefs["preferred_work_style"]),
				AvailableFrom:       optString(prefs["available_from"]),
			},
			Portfolio: optString(candidate["portfolio"]),
			Bio:       optString(candidate["bio"]),
		},
	}

	for _, item := range asList(candidate["education"]) {
		e, _ := asMap(item)
		m.Candidate.Education = append(m.Candidate.Education, Education{
			School: optString(e["school"]),
			Degree: optString(e["degree"]),
			Field:  optString(e["field"]),
			Year:   toInt(e["year"]),
			Status: optString(e["status"]),
		})
	}

	for _, item := range asList(candidate["work_history"]) {
		w, _ := asMap(item)
		m.Candidate.WorkHistory = append(m.Candidate.WorkHistory, WorkHistory{
			Company:     optString(w["company"]),
			Position:    optString(w["position"]),
			Duration:    optString(w["duration"]),
			Description: optString(w["description"]),
		})
	}

	return m
}

func toSkills(v any) []Skill {
	var out []Skill
	for _, item := range asList(v) {
		s, _ := asMap(item)
		level := optString(s["level"])
		if level == "" {
			level = DefaultSkillLevel
		}
		out = append(out, Skill{Name: optString(s["name"]), Level: level})
	}
	return out
}

func toSalary(v any) *int {
	if !isNumber(v) {
		return nil
	}
	n := toInt(v)
	return &n
}

// asMap accepts both decoded mapping shapes yaml.v3 can produce.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func asList(v any) []any {
	l, _ := v.([]any)
	return l
}

func isNonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && s != ""
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int64, uint64, float64:
		return true
	}
	return false
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// truthy reports whether v is present and not a zero scalar.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case int:
		return t != 0
	case float64:
		return t != 0
	}
	return true
}

// optString renders a scalar as text; absent or zero values become "".
func optString(v any) string {
	if !truthy(v) {
		return ""
	}
	return toString(v)
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.DateOnly)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case uint64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	}
	return 0
}
