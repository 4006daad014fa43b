package exporter

import (
	"strings"
	"time"

	"licenseadmin/pkg/contracts/domain"
)

// Table is a format-neutral sheet.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]string
}

// LicenseTable lays out licenses one per row. Used IPs are joined with ", ".
func LicenseTable(licenses []domain.License) Table {
	t := Table{
		Sheet:   "Licenses",
		Headers: []string{"License Key", "Max IPs", "Used IPs", "IP Count", "Valid", "Created", "Expires", "Last Used"},
		Rows:    make([][]string, 0, len(licenses)),
	}
	for _, l := range licenses {
		t.Rows = append(t.Rows, []string{
			l.Key,
			formatInt(l.MaxUniqueIPs),
			strings.Join(l.UsedIPs, ", "),
			formatInt(len(l.UsedIPs)),
			formatBool(l.IsValid),
			l.CreatedAt,
			l.ExpiryDate(),
			l.LastUsed,
		})
	}
	return t
}

// UserTable lays out registered users one per row.
func UserTable(users []domain.User) Table {
	t := Table{
		Sheet:   "Users",
		Headers: []string{"Email", "Name", "License Key", "Registered", "Last Access"},
		Rows:    make([][]string, 0, len(users)),
	}
	for _, u := range users {
		t.Rows = append(t.Rows, []string{u.Email, u.Name, u.LicenseKey, u.RegisteredAt, u.LastAccess})
	}
	return t
}

// HistoryTable lays out the local issuance history, timestamps in RFC 3339.
func HistoryTable(records []domain.HistoryRecord) Table {
	t := Table{
		Sheet:   "History",
		Headers: []string{"License Key", "Max IPs", "Issued At"},
		Rows:    make([][]string, 0, len(records)),
	}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{
			r.LicenseKey,
			formatInt(r.MaxUniqueIPs),
			r.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return t
}
