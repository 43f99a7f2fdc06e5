// Package metrics exposes Prometheus instrumentation for the alarm server.
package metrics
