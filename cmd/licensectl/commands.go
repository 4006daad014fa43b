package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"licenseadmin/internal/batch"
	"licenseadmin/internal/exporter"
	"licenseadmin/internal/license"
	"licenseadmin/internal/notify"
	"licenseadmin/internal/validation"
	"licenseadmin/pkg/contracts/domain"
)

type command struct {
	summary string
	run     func(ctx context.Context, c *cli, args []string) error
}

var commands = map[string]command{
	"generate":    {"issue one license and print its key", runGenerate},
	"invalidate":  {"revoke a license key", runInvalidate},
	"licenses":    {"list every license", runLicenses},
	"users":       {"list registered users", runUsers},
	"emails":      {"print the distinct registered addresses", runEmails},
	"maintenance": {"show or change maintenance mode (status|on|off|toggle)", runMaintenance},
	"batch":       {"issue one license per recipient and email it", runBatch},
	"broadcast":   {"email a message to many recipients", runBroadcast},
	"history":     {"show licenses issued from this machine", runHistory},
	"export":      {"write licenses, users or history to CSV or XLSX", runExport},
}

var commandOrder = []string{
	"generate", "invalidate", "licenses", "users", "emails",
	"maintenance", "batch", "broadcast", "history", "export",
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return err
		}
		return usagef("%v", err)
	}
	return nil
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) table(header string, rows func(w *tabwriter.Writer)) error {
	w := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, header)
	rows(w)
	return w.Flush()
}

func runGenerate(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("generate")
	ips := fs.String("ips", strconv.Itoa(c.cfg.Batch.DefaultMaxIPs), "maximum unique IPs for the license")
	name := fs.String("name", "", "reader name (optional)")
	email := fs.String("email", "", "reader email (optional)")
	if err := parse(fs, args); err != nil {
		return err
	}

	req, err := license.NewGenerateRequest(*ips, *name, *email)
	if err != nil {
		return err
	}

	key, err := c.licenses.Generate(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, key)
	return nil
}

func runInvalidate(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("invalidate")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("expected exactly one license key")
	}

	msg, err := c.licenses.Invalidate(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, msg)
	return nil
}

func runLicenses(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("licenses")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}

	listing := c.licenses.ListLicenses(ctx)
	switch {
	case listing.Outcome == license.OutcomeFailed:
		return listing.Err
	case *asJSON:
		return c.printJSON(listing.Items)
	case listing.Outcome == license.OutcomeEmpty:
		fmt.Fprintln(c.stdout, "No licenses found.")
		return nil
	}

	return c.table("KEY\tMAX IPS\tUSED IPS\tVALID\tCREATED\tEXPIRES", func(w *tabwriter.Writer) {
		for _, l := range listing.Items {
			fmt.Fprintf(w, "%s\t%d\t%s\t%t\t%s\t%s\n",
				l.Key, l.MaxUniqueIPs, strings.Join(l.UsedIPs, ","), l.IsValid, l.CreatedAt, l.ExpiryDate())
		}
	})
}

func runUsers(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("users")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}

	listing := c.licenses.ListUsers(ctx)
	switch {
	case listing.Outcome == license.OutcomeFailed:
		return listing.Err
	case *asJSON:
		return c.printJSON(listing.Items)
	case listing.Outcome == license.OutcomeEmpty:
		fmt.Fprintln(c.stdout, "No registered users found.")
		return nil
	}

	return c.table("EMAIL\tNAME\tLICENSE\tREGISTERED\tLAST ACCESS", func(w *tabwriter.Writer) {
		for _, u := range listing.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.Email, u.Name, u.LicenseKey, u.RegisteredAt, u.LastAccess)
		}
	})
}

func runEmails(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("emails")
	if err := parse(fs, args); err != nil {
		return err
	}

	emails, err := c.licenses.RegisteredEmails(ctx)
	if err != nil {
		return err
	}
	for _, e := range emails {
		fmt.Fprintln(c.stdout, e)
	}
	return nil
}

func runMaintenance(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("maintenance")
	if err := parse(fs, args); err != nil {
		return err
	}

	action := "status"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}

	var (
		on  bool
		err error
	)
	switch action {
	case "status":
		on, err = c.maintenance.Read(ctx)
	case "on":
		on, err = c.maintenance.Set(ctx, true)
	case "off":
		on, err = c.maintenance.Set(ctx, false)
	case "toggle":
		on, err = c.maintenance.Toggle(ctx)
	default:
		return usagef("unknown action %q, want status, on, off or toggle", action)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "Maintenance mode: %s\n", domain.MaintenanceStateOf(on))
	return nil
}

// recipientsFrom joins the -to list and the contents of -file into free
// text for the recipient splitter.
func recipientsFrom(to, file string) (string, error) {
	text := to
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read recipients file: %w", err)
		}
		text += "\n" + string(data)
	}
	return text, nil
}

func readOptional(inline, path string) (string, error) {
	if inline != "" || path == "" {
		return inline, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// confirmer asks on stdin unless the operator already passed -yes.
func (c *cli) confirmer(yes bool, what string) batch.Confirmer {
	if yes {
		return batch.Confirmed(true)
	}
	return batch.ConfirmFunc(func(_ context.Context, recipients []string) (bool, error) {
		fmt.Fprintf(c.stdout, "%s to %d recipients:\n", what, len(recipients))
		for _, r := range recipients {
			fmt.Fprintf(c.stdout, "  %s\n", r)
		}
		fmt.Fprint(c.stdout, "Continue? [y/N] ")

		line, err := c.stdin.ReadString('\n')
		if err != nil && line == "" {
			return false, nil
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	})
}

func (c *cli) progress(done, total int, attempt domain.BatchAttempt) {
	if attempt.Succeeded() {
		fmt.Fprintf(c.stderr, "[%d/%d] %s ok\n", done, total, attempt.Recipient)
		return
	}
	fmt.Fprintf(c.stderr, "[%d/%d] %s failed at %s: %s\n", done, total, attempt.Recipient, attempt.FailedAt, attempt.Error)
}

func (c *cli) report(result *domain.BatchResult) error {
	fmt.Fprintf(c.stdout, "Done: %d succeeded, %d failed.\n", result.Succeeded, result.Failed)
	if len(result.IssuedWithoutNotice) > 0 {
		fmt.Fprintf(c.stdout, "Issued without email: %s\n", strings.Join(result.IssuedWithoutNotice, ", "))
	}
	if result.Failed == 0 {
		return nil
	}
	return &reportError{msg: fmt.Sprintf("%d of %d recipients failed: %s",
		result.Failed, result.Total(), strings.Join(result.FailedRecipients, ", "))}
}

func runBatch(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("batch")
	to := fs.String("to", "", "recipients separated by commas")
	file := fs.String("file", "", "file with one recipient per line")
	subject := fs.String("subject", c.cfg.Batch.DefaultSubject, "email subject")
	body := fs.String("body", "", "HTML body template; [licenseKey] and [userName] are filled in (default: built-in welcome email)")
	bodyFile := fs.String("body-file", c.cfg.Batch.BodyTemplateFile, "file holding the body template")
	ips := fs.Int("ips", c.cfg.Batch.DefaultMaxIPs, "maximum unique IPs per license")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	dryRun := fs.Bool("dry-run", false, "print the recipients and a sample email, send nothing")
	if err := parse(fs, args); err != nil {
		return err
	}

	recipients, err := recipientsFrom(*to, *file)
	if err != nil {
		return err
	}
	tmpl, err := readOptional(*body, *bodyFile)
	if err != nil {
		return err
	}
	if tmpl == "" {
		tmpl = notify.DefaultBodyTemplate
	}

	coordinator, err := c.coordinator(ctx)
	if err != nil {
		return err
	}

	draft := batch.NewDraft(*ips)
	draft.Fill(recipients, *subject, tmpl, *ips)

	if *dryRun {
		req, err := coordinator.Prepare(draft.Request())
		if err != nil {
			return err
		}
		fmt.Fprintf(c.stdout, "%d recipients: %s\n", len(req.Recipients), strings.Join(req.Recipients, ", "))
		fmt.Fprintf(c.stdout, "Subject: %s\n\n%s\n", req.Subject, batch.Preview(req))
		return nil
	}

	result, err := coordinator.RunDraft(ctx, draft, c.confirmer(*yes, "Issue licenses and send emails"), c.progress)
	if err != nil {
		return err
	}
	return c.report(result)
}

func runBroadcast(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("broadcast")
	to := fs.String("to", "", "recipients separated by commas")
	file := fs.String("file", "", "file with one recipient per line")
	allUsers := fs.Bool("all-users", false, "send to every registered user")
	subject := fs.String("subject", "", "email subject")
	html := fs.String("html", "", "HTML body")
	htmlFile := fs.String("html-file", "", "file holding the HTML body")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := parse(fs, args); err != nil {
		return err
	}

	text, err := recipientsFrom(*to, *file)
	if err != nil {
		return err
	}
	recipients := validation.SplitRecipients(text)
	if *allUsers {
		emails, err := c.licenses.RegisteredEmails(ctx)
		if err != nil {
			return err
		}
		recipients = append(recipients, emails...)
	}

	body, err := readOptional(*html, *htmlFile)
	if err != nil {
		return err
	}

	coordinator, err := c.coordinator(ctx)
	if err != nil {
		return err
	}

	result, err := coordinator.Broadcast(ctx, batch.BroadcastRequest{
		Recipients: recipients,
		Subject:    *subject,
		HTMLBody:   body,
	}, c.confirmer(*yes, "Send this email"), c.progress)
	if err != nil {
		return err
	}
	return c.report(result)
}

func runHistory(_ context.Context, c *cli, args []string) error {
	fs := c.flags("history")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}

	records, err := c.licenses.History().List()
	if err != nil {
		return err
	}
	if *asJSON {
		return c.printJSON(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(c.stdout, "No licenses issued yet.")
		return nil
	}

	return c.table("KEY\tMAX IPS\tISSUED", func(w *tabwriter.Writer) {
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%d\t%s\n", r.LicenseKey, r.MaxUniqueIPs, r.Timestamp.Local().Format(time.DateTime))
		}
	})
}

func runExport(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("export")
	what := fs.String("what", "licenses", "licenses, users or history")
	rawFormat := fs.String("format", "csv", "csv or xlsx")
	out := fs.String("out", "", "output path without extension (default <what>-YYYYMMDD)")
	if err := parse(fs, args); err != nil {
		return err
	}

	format, err := exporter.ParseFormat(*rawFormat)
	if err != nil {
		return usagef("%v", err)
	}

	var table exporter.Table
	switch *what {
	case "licenses":
		listing := c.licenses.ListLicenses(ctx)
		if listing.Outcome == license.OutcomeFailed {
			return listing.Err
		}
		table = exporter.LicenseTable(listing.Items)
	case "users":
		listing := c.licenses.ListUsers(ctx)
		if listing.Outcome == license.OutcomeFailed {
			return listing.Err
		}
		table = exporter.UserTable(listing.Items)
	case "history":
		records, err := c.licenses.History().List()
		if err != nil {
			return err
		}
		table = exporter.HistoryTable(records)
	default:
		return usagef("unknown export %q, want licenses, users or history", *what)
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("%s-%s", *what, time.Now().Format("20060102"))
	}

	written, err := exporter.WriteFile(path, format, table)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Wrote %d rows to %s\n", len(table.Rows), written)
	return nil
}
