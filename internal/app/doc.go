// Package app wires the license admin server together and runs it.
//
// # Initialization Flow
//
// New builds the components in dependency order:
//
//  1. OpenTelemetry providers from the telemetry section
//  2. The authority client and the mail sender
//  3. The license service, maintenance tracker and batch coordinator
//  4. The job queue and the WebSocket hub, with their listeners
//  5. The chi router and the HTTP server
//
// Nothing runs until Serve (or Run) is called.
//
// # Graceful Shutdown
//
// When the context passed to Serve ends, the HTTP server stops accepting
// requests, the hub closes every WebSocket client, the job queue lets
// running jobs finish and telemetry is flushed. The app never calls
// os.Exit; the command decides how to exit.
package app
