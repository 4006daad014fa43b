// Package batch issues one license and sends one email per recipient.
//
// The Coordinator walks the recipient list sequentially. A failure for one
// recipient is recorded and the loop moves on; batch-level problems
// (invalid input, missing confirmation) abort before any remote call.
// Nothing is retried automatically.
package batch
