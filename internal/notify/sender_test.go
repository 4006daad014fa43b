package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"licenseadmin/internal/config"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
)

func discardLogger() *slog.Logger {
	return infrastructure.NewLogger("error", io.Discard)
}

func TestNewSender(t *testing.T) {
	ctx := context.Background()

	t.Run("none is disabled", func(t *testing.T) {
		s, err := NewSender(ctx, config.MailConfig{Provider: "none"}, discardLogger())
		require.NoError(t, err)

		err = s.Send(ctx, Message{To: "a@example.com"})
		assert.ErrorIs(t, err, ErrDisabled)
		assert.Equal(t, apierrors.KindNotification, apierrors.KindOf(err))
	})

	t.Run("smtp", func(t *testing.T) {
		s, err := NewSender(ctx, config.MailConfig{Provider: "smtp", SMTPHost: "localhost", SMTPPort: 25}, discardLogger())
		require.NoError(t, err)
		assert.IsType(t, &SMTPSender{}, s)
	})

	t.Run("gmail without token file", func(t *testing.T) {
		_, err := NewSender(ctx, config.MailConfig{
			Provider:       "gmail",
			GmailTokenFile: filepath.Join(t.TempDir(), "missing.json"),
		}, discardLogger())
		assert.Error(t, err)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := NewSender(ctx, config.MailConfig{Provider: "pigeon"}, discardLogger())
		assert.Error(t, err)
	})
}

func writeToken(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.json")
	tok := `{"access_token":"access","token_type":"Bearer","refresh_token":"refresh","expiry":"2100-01-01T00:00:00Z"}`
	require.NoError(t, os.WriteFile(path, []byte(tok), 0o600))
	return path
}

func TestGmailSender(t *testing.T) {
	ctx := context.Background()

	t.Run("sends raw message", func(t *testing.T) {
		var raw string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.True(t, strings.HasSuffix(r.URL.Path, "/users/me/messages/send"), r.URL.Path)

			var body struct {
				Raw string `json:"raw"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			raw = body.Raw

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"msg-1"}`))
		}))
		defer srv.Close()

		g, err := NewGmailSender(ctx, config.MailConfig{
			Sender:         "licenses@example.com",
			GmailTokenFile: writeToken(t),
		}, discardLogger(), option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
		require.NoError(t, err)

		require.NoError(t, g.Send(ctx, Message{To: "reader@example.com", Subject: "Key", HTMLBody: "<p>K-1</p>"}))

		decoded, err := base64.URLEncoding.DecodeString(raw)
		require.NoError(t, err)
		assert.Contains(t, string(decoded), "To: <reader@example.com>")
		assert.Contains(t, string(decoded), "Subject: Key")
	})

	t.Run("api failure is a notification error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"code":400,"message":"Invalid To header"}}`))
		}))
		defer srv.Close()

		g, err := NewGmailSender(ctx, config.MailConfig{
			Sender:         "licenses@example.com",
			GmailTokenFile: writeToken(t),
		}, discardLogger(), option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
		require.NoError(t, err)

		err = g.Send(ctx, Message{To: "reader@example.com", Subject: "Key", PlainBody: "K-1"})
		var ne *apierrors.NotificationError
		require.ErrorAs(t, err, &ne)
		assert.Equal(t, "reader@example.com", ne.Recipient)
	})

	t.Run("empty token file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token.json")
		require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

		_, err := NewGmailSender(ctx, config.MailConfig{GmailTokenFile: path}, discardLogger())
		assert.Error(t, err)
	})
}

// fakeSMTP accepts a single session and returns the DATA payload.
func fakeSMTP(t *testing.T) (int, <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	got := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		tp := textproto.NewConn(conn)
		tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				tp.PrintfLine("250-localhost")
				tp.PrintfLine("250 8BITMIME")
			case cmd == "DATA":
				tp.PrintfLine("354 go ahead")
				data, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				got <- string(data)
				tp.PrintfLine("250 queued")
			case cmd == "QUIT":
				tp.PrintfLine("221 bye")
				return
			default:
				tp.PrintfLine("250 OK")
			}
		}
	}()

	return ln.Addr().(*net.TCPAddr).Port, got
}

func TestSMTPSender(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers message", func(t *testing.T) {
		port, got := fakeSMTP(t)
		s, err := NewSMTPSender(config.MailConfig{
			SMTPHost:   "127.0.0.1",
			SMTPPort:   port,
			Sender:     "licenses@example.com",
			SenderName: "Ebook Licenses",
		}, discardLogger())
		require.NoError(t, err)

		require.NoError(t, s.Send(ctx, Message{To: "reader@example.com", Subject: "Key", HTMLBody: "<p>Your key: <b>K-1</b></p>"}))

		data := <-got
		assert.Contains(t, data, "To: <reader@example.com>")
		assert.Contains(t, data, "Subject: Key")
		assert.Contains(t, data, "multipart/alternative")
		assert.Contains(t, data, "K-1")
	})

	t.Run("malformed recipient never dials", func(t *testing.T) {
		s, err := NewSMTPSender(config.MailConfig{
			SMTPHost: "127.0.0.1",
			SMTPPort: 1,
			Sender:   "licenses@example.com",
		}, discardLogger())
		require.NoError(t, err)

		err = s.Send(ctx, Message{To: "bad@@x.com", PlainBody: "K-1"})
		var ne *apierrors.NotificationError
		require.ErrorAs(t, err, &ne)
		assert.Equal(t, "bad@@x.com", ne.Recipient)
		assert.NotContains(t, err.Error(), "127.0.0.1")
	})

	t.Run("unreachable relay", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := ln.Addr().(*net.TCPAddr).Port
		ln.Close()

		s, err := NewSMTPSender(config.MailConfig{
			SMTPHost: "127.0.0.1",
			SMTPPort: port,
			Sender:   "licenses@example.com",
		}, discardLogger())
		require.NoError(t, err)

		err = s.Send(ctx, Message{To: "reader@example.com", PlainBody: "K-1"})
		assert.Equal(t, apierrors.KindNotification, apierrors.KindOf(err))
		assert.Contains(t, err.Error(), strconv.Itoa(port))
	})
}
