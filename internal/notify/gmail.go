package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"licenseadmin/internal/config"
	"licenseadmin/internal/infrastructure"
)

// GmailSender sends through the Gmail API as the token owner.
type GmailSender struct {
	service *gmail.Service
	from    mail.Address
	logger  *slog.Logger
}

// NewGmailSender loads the stored OAuth2 token and builds the Gmail client.
// Refreshed tokens are written back to the token file. Extra client options
// are appended after the token source, so tests can point the client at a
// local endpoint.
func NewGmailSender(ctx context.Context, cfg config.MailConfig, logger *slog.Logger, opts ...option.ClientOption) (*GmailSender, error) {
	tok, err := loadToken(cfg.GmailTokenFile)
	if err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	ts := &persistingTokenSource{
		base:   oauthCfg.TokenSource(ctx, tok),
		path:   cfg.GmailTokenFile,
		last:   tok.AccessToken,
		logger: logger,
	}

	clientOpts := append([]option.ClientOption{option.WithTokenSource(oauth2.ReuseTokenSource(tok, ts))}, opts...)
	svc, err := gmail.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}

	return &GmailSender{
		service: svc,
		from:    fromAddress(cfg),
		logger:  infrastructure.WithComponent(logger, "gmail"),
	}, nil
}

// Send implements Sender.
func (g *GmailSender) Send(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, config.MailSendTimeout)
	defer cancel()

	raw, err := Compose(g.from, msg)
	if err != nil {
		return notificationError(msg.To, err)
	}

	sent, err := g.service.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		g.logger.WarnContext(ctx, "gmail send failed",
			slog.String("recipient", msg.To),
			slog.String("error", err.Error()))
		return notificationError(msg.To, err)
	}

	g.logger.InfoContext(ctx, "email sent",
		slog.String("recipient", msg.To),
		slog.String("message_id", sent.Id))
	return nil
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gmail token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse gmail token file %s: %w", path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("gmail token file %s holds no token", path)
	}
	return &tok, nil
}

// persistingTokenSource writes every newly minted token back to disk so the
// next run starts from the refreshed credentials.
type persistingTokenSource struct {
	base   oauth2.TokenSource
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if tok.AccessToken == p.last {
		return tok, nil
	}
	p.last = tok.AccessToken

	data, err := json.Marshal(tok)
	if err == nil {
		err = os.WriteFile(p.path, data, config.HistoryFileMode)
	}
	if err != nil {
		p.logger.Warn("failed to persist refreshed gmail token", slog.String("error", err.Error()))
	}
	return tok, nil
}
