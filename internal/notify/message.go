package notify

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
)

// Message is one email to one recipient.
type Message struct {
	To        string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Compose renders msg as an RFC 5322 message with a multipart/alternative
// body. A missing plain part is derived from the HTML part.
func Compose(from mail.Address, msg Message) ([]byte, error) {
	m, err := newMsg(from, msg)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render message: %w", err)
	}
	return buf.Bytes(), nil
}

// newMsg builds the go-mail message shared by the Gmail and SMTP senders.
func newMsg(from mail.Address, msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()

	var err error
	if from.Name == "" {
		err = m.From(from.Address)
	} else {
		err = m.FromFormat(from.Name, from.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from.Address, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}

	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageIDWithValue(uuid.NewString() + "@" + senderDomain(from.Address))

	plain := msg.PlainBody
	if plain == "" {
		plain = StripTags(msg.HTMLBody)
	}
	m.SetBodyString(gomail.TypeTextPlain, plain)
	if msg.HTMLBody != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
	}
	return m, nil
}

func senderDomain(addr string) string {
	if _, domain, ok := strings.Cut(addr, "@"); ok && domain != "" {
		return domain
	}
	return "localhost"
}
