// Package registry puts agents into the directory.
//
// Register runs a submitted manifest through validation, sends the endpoint a
// connection test, flattens the declared skills, mints an agent ID and login
// token, and upserts the record. The connection test result is stored as the
// agent's initial liveness but never blocks registration.
//
// HealthCheck is the same connection test on demand, for checking an
// endpoint before registering it.
package registry
