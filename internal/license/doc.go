// Package license implements the license operations of the admin client:
// generate, invalidate, list licenses and users, and the maintenance flag.
//
// Every operation validates its input locally, performs at most one call
// through a Caller (plus one follow-up read for maintenance), and returns
// either a typed value or an error from the internal/errors taxonomy.
// Nothing in this package touches presentation state; surfaces subscribe
// to refresh hooks or read the returned values.
//
// # History
//
// Each successful generation is appended to a local JSON history file.
// The file is an operator convenience, never reconciled with the
// authority, and a failed append never fails the generation.
package license
