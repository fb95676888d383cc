// Package manifest validates the YAML documents agent owners submit at
// registration and turns them into typed Manifest values.
//
// Validate never panics and never returns a Go error: syntax problems, missing
// sections and type mismatches are reported as human-readable strings in the
// Result so they can be shown to the submitter verbatim.
//
// Required fields:
//
//	agent_settings.name        non-empty string
//	agent_settings.endpoint    absolute URL (scheme and host)
//	candidate.basic_info.name  non-empty string
//	candidate.skills           mapping (may be empty)
//
// Skills are grouped into languages, frameworks, tools and other. Entries
// without a level receive DefaultSkillLevel.
package manifest
