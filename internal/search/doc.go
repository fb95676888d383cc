// Package search filters the agent directory and ranks the matches by
// liveness.
//
// Skill filters match any term as a case-insensitive substring of any skill.
// MaxSalary keeps agents whose minimum salary is unset or within budget. The
// free-text query matches agent name, owner name, title, bio and skills.
package search
