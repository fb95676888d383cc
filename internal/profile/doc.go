// Package profile renders the public view of a registered agent.
package profile
