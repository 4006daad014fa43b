// Command licensectl runs license admin operations against the authority
// from the terminal, one operation per invocation.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"licenseadmin/internal/authority"
	"licenseadmin/internal/batch"
	"licenseadmin/internal/config"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/internal/license"
	"licenseadmin/internal/notify"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli carries what every command needs.
type cli struct {
	cfg         *config.Config
	logger      *slog.Logger
	stdin       *bufio.Reader
	stdout      io.Writer
	stderr      io.Writer
	licenses    *license.Service
	maintenance *license.Maintenance
	sender      notify.Sender
}

// usageError is reported with the usage text and exit code 2.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// reportError ends the command with a message that is already meant for
// the operator.
type reportError struct {
	msg string
}

func (e *reportError) Error() string { return e.msg }

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("licensectl", flag.ContinueOnError)
	global.SetOutput(stderr)
	cfgPath := global.String("config", "", "path to the YAML config file")
	verbose := global.Bool("v", false, "log debug output to stderr")
	global.Usage = func() { printUsage(stderr, global) }

	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr, global)
		return exitUsage
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", rest[0])
		printUsage(stderr, global)
		return exitUsage
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitError
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := infrastructure.WithComponent(infrastructure.NewLogger(level, stderr), "licensectl")

	c, err := newCLI(cfg, logger, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "startup error: %v\n", err)
		return exitError
	}

	ctx = infrastructure.EnsureTraceID(ctx)
	return c.exit(rest[0], cmd.run(ctx, c, rest[1:]))
}

func newCLI(cfg *config.Config, logger *slog.Logger, stdin io.Reader, stdout, stderr io.Writer) (*cli, error) {
	client, err := authority.New(cfg.Authority, logger)
	if err != nil {
		return nil, err
	}

	return &cli{
		cfg:         cfg,
		logger:      logger,
		stdin:       bufio.NewReader(stdin),
		stdout:      stdout,
		stderr:      stderr,
		licenses:    license.NewService(client, license.NewHistoryStore(cfg.HistoryPath()), logger),
		maintenance: license.NewMaintenance(client, logger),
	}, nil
}

// coordinator builds the batch coordinator with the configured mail
// sender. Only the mailing commands pay for the sender setup.
func (c *cli) coordinator(ctx context.Context) (*batch.Coordinator, error) {
	if c.sender == nil {
		sender, err := notify.NewSender(ctx, c.cfg.Mail, c.logger)
		if err != nil {
			return nil, err
		}
		c.sender = sender
	}
	return batch.NewCoordinator(c.licenses, c.sender, c.cfg.Batch, c.logger), nil
}

func (c *cli) exit(name string, err error) int {
	if err == nil {
		return exitOK
	}

	var (
		usage  *usageError
		report *reportError
	)
	switch {
	case errors.Is(err, flag.ErrHelp):
		return exitOK
	case errors.As(err, &usage):
		fmt.Fprintf(c.stderr, "%s: %s\n", name, usage.msg)
		return exitUsage
	case errors.As(err, &report):
		fmt.Fprintln(c.stderr, report.msg)
	case errors.Is(err, batch.ErrNotConfirmed):
		fmt.Fprintln(c.stderr, "Cancelled. Nothing was sent.")
	default:
		c.logger.Debug("command failed",
			slog.String("command", name),
			slog.String("kind", string(apierrors.KindOf(err))),
			slog.String("error", err.Error()))
		fmt.Fprintln(c.stderr, apierrors.UserMessage(err))
	}
	return exitError
}

func printUsage(w io.Writer, global *flag.FlagSet) {
	fmt.Fprintf(w, "Usage: licensectl [-config file] [-v] <command> [flags]\n\nCommands:\n")
	for _, name := range commandOrder {
		fmt.Fprintf(w, "  %-12s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, "\nGlobal flags:\n")
	global.PrintDefaults()
}
