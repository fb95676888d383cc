// Package metrics holds the Prometheus collectors exported by the gateway.
//
// Collectors live on a private registry rather than the global default so
// tests can construct as many Metrics values as they like. A nil *Metrics is
// valid and records nothing.
package metrics
