// Package notify delivers license emails.
//
// A Sender hands one Message to a mail transport. Three transports exist:
// the Gmail API with a stored OAuth2 token, authenticated SMTP, and a
// disabled sender that fails every send so callers can report the
// license as issued without notice.
package notify
