// Package domain contains the core domain models for the license administration client.
// These types are shared by the authority adapter, the operations and every presentation surface.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// License is a license record as reported by the authority. Every field
// except Key is owned by the server; timestamps are kept as display strings.
type License struct {
	Key          string   `json:"licenseKey"`
	MaxUniqueIPs int      `json:"maxUniqueIPs"`
	UsedIPs      []string `json:"usedIPs"`
	IsValid      bool     `json:"isValid"`
	CreatedAt    string   `json:"createdAt,omitempty"`
	ExpiresAt    string   `json:"expiresAt,omitempty"`
	LastUsed     string   `json:"lastUsed,omitempty"`
}

// licenseWire accepts every field spelling the authority has used.
type licenseWire struct {
	LicenseKey   string      `json:"licenseKey"`
	Key          string      `json:"key"`
	MaxUniqueIPs *flexInt    `json:"maxUniqueIPs"`
	MaxIPs       *flexInt    `json:"maxIPs"`
	UsedIPs      flexStrings `json:"usedIPs"`
	ActivatedIPs flexStrings `json:"activatedIPs"`
	IsValid      flexBool    `json:"isValid"`
	CreatedAt    string      `json:"createdAt"`
	ExpiresAt    string      `json:"expiresAt"`
	LastUsed     string      `json:"lastUsed"`
}

// UnmarshalJSON maps the alias field names (maxIPs, activatedIPs, key)
// onto the canonical ones.
func (l *License) UnmarshalJSON(data []byte) error {
	var w licenseWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*l = License{
		Key:       firstNonEmpty(w.LicenseKey, w.Key),
		IsValid:   bool(w.IsValid),
		CreatedAt: w.CreatedAt,
		ExpiresAt: w.ExpiresAt,
		LastUsed:  w.LastUsed,
	}

	switch {
	case w.MaxUniqueIPs != nil:
		l.MaxUniqueIPs = int(*w.MaxUniqueIPs)
	case w.MaxIPs != nil:
		l.MaxUniqueIPs = int(*w.MaxIPs)
	}

	l.UsedIPs = []string(w.UsedIPs)
	if len(l.UsedIPs) == 0 {
		l.UsedIPs = []string(w.ActivatedIPs)
	}

	return nil
}

// ExpiryDate returns the date part of ExpiresAt, or "N/A" when unset.
func (l License) ExpiryDate() string {
	if l.ExpiresAt == "" {
		return "N/A"
	}
	date, _, _ := strings.Cut(l.ExpiresAt, "T")
	return date
}

// User is a registered ebook reader. LicenseKey is never resolved into a
// License by the client.
type User struct {
	Email        string `json:"userEmail"`
	Name         string `json:"userName,omitempty"`
	LicenseKey   string `json:"licenseKey,omitempty"`
	RegisteredAt string `json:"registeredAt,omitempty"`
	LastAccess   string `json:"lastAccess,omitempty"`
}

type userWire struct {
	UserEmail    string `json:"userEmail"`
	Email        string `json:"email"`
	UserName     string `json:"userName"`
	Name         string `json:"name"`
	LicenseKey   string `json:"licenseKey"`
	FirstAccess  string `json:"firstAccess"`
	RegisteredAt string `json:"registeredAt"`
	LastAccess   string `json:"lastAccess"`
}

// UnmarshalJSON accepts both firstAccess and registeredAt.
func (u *User) UnmarshalJSON(data []byte) error {
	var w userWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*u = User{
		Email:        firstNonEmpty(w.UserEmail, w.Email),
		Name:         firstNonEmpty(w.UserName, w.Name),
		LicenseKey:   w.LicenseKey,
		RegisteredAt: firstNonEmpty(w.RegisteredAt, w.FirstAccess),
		LastAccess:   w.LastAccess,
	}
	return nil
}

// HistoryRecord is one line of the local issuance history log.
type HistoryRecord struct {
	LicenseKey   string    `json:"licenseKey"`
	MaxUniqueIPs int       `json:"maxUniqueIPs"`
	Timestamp    time.Time `json:"timestamp"`
}

// MaintenanceState is the client's cached view of the server maintenance flag.
type MaintenanceState int

const (
	MaintenanceUnknown MaintenanceState = iota
	MaintenanceActive
	MaintenanceInactive
)

// MaintenanceStateOf converts a confirmed server flag.
func MaintenanceStateOf(on bool) MaintenanceState {
	if on {
		return MaintenanceActive
	}
	return MaintenanceInactive
}

func (s MaintenanceState) String() string {
	switch s {
	case MaintenanceActive:
		return "active"
	case MaintenanceInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Known reports whether the state came from a successful server exchange.
func (s MaintenanceState) Known() bool {
	return s != MaintenanceUnknown
}

// MarshalText renders the state as its name.
func (s MaintenanceState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// flexInt decodes numbers that may arrive quoted.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid integer %q", s)
		}
		n = int(fl)
	}
	*f = flexInt(n)
	return nil
}

// flexBool decodes true/false as JSON booleans or as strings ("TRUE").
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.ToLower(strings.Trim(string(data), `"`))
	switch s {
	case "true", "1", "yes":
		*f = true
	case "false", "0", "no", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid boolean %q", s)
	}
	return nil
}

// flexStrings decodes either a JSON array of strings or one comma separated string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = nil
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("expected string list: %w", err)
	}

	var out []string
	for _, part := range strings.Split(joined, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*f = out
	return nil
}
