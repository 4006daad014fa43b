// Package websocket pushes live events to admin clients: job state
// changes, license list invalidation and maintenance state.
//
// The Hub owns the client set. Publishing never blocks the caller; a
// client whose buffer is full is disconnected rather than slowing down
// the job workers.
package websocket
