// Package middleware holds the HTTP middleware chain of the admin API:
// request IDs, access logging, panic recovery, admin token checks, rate
// limiting and OpenTelemetry instrumentation.
package middleware
