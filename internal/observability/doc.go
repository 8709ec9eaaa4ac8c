// Package observability defines the Prometheus metrics exported on /metrics.
package observability
