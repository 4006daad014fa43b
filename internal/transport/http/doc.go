// Package http implements the admin HTTP API.
//
// Every mutating call is one unit of work on the job queue: handlers
// validate input synchronously, submit the work and answer 202 with the
// job snapshot. Clients follow the job through GET /api/jobs/{id} or the
// job:update events on /ws. Read-only calls answer directly.
//
// Failures are rendered as RFC 7807 problem details whose type names the
// failure kind, so a client can tell bad input from an unreachable or
// refusing license server.
package http
