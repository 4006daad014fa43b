package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"licenseadmin/internal/authority"
	"licenseadmin/internal/config"
	"licenseadmin/internal/infrastructure"
	"licenseadmin/pkg/contracts/domain"
)

// StubFailure makes an endpoint answer with a fixed status and message.
type StubFailure struct {
	Status  int
	Message string
	// Envelope answers 200 with success:false instead of Status.
	Envelope bool
}

// StubAuthority is an in-memory license authority speaking the same JSON
// contract as the real one. Maintenance state persists across calls.
type StubAuthority struct {
	Server *httptest.Server

	mu          sync.Mutex
	maintenance bool
	licenses    []domain.License
	users       []domain.User
	emailsOnly  bool
	seq         int
	calls       map[string]int
	bodies      map[string][]json.RawMessage
	failures    map[string]StubFailure
	rejectKeys  map[string]string
	omitEcho    bool
	delay       time.Duration
}

// NewStubAuthority starts a stub authority that is closed with the test.
func NewStubAuthority(t *testing.T) *StubAuthority {
	t.Helper()

	s := &StubAuthority{
		calls:      make(map[string]int),
		bodies:     make(map[string][]json.RawMessage),
		failures:   make(map[string]StubFailure),
		rejectKeys: make(map[string]string),
	}

	r := chi.NewRouter()
	r.Use(s.count)
	r.Post("/generate-license", s.generate)
	r.Post("/invalidate-license", s.invalidate)
	r.Get("/licenses", s.listLicenses)
	r.Get("/users", s.listUsers)
	r.Get("/get-maintenance-status", s.getMaintenance)
	r.Post("/set-maintenance-mode", s.setMaintenance)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Server.Close)
	return s
}

// URL returns the stub base URL.
func (s *StubAuthority) URL() string {
	return s.Server.URL
}

// Client returns an authority client pointed at the stub.
func (s *StubAuthority) Client(t *testing.T) *authority.Client {
	t.Helper()
	c, err := authority.New(config.AuthorityConfig{
		BaseURL:   s.URL(),
		Timeout:   2 * time.Second,
		APIKey:    "stub-key",
		UserAgent: "licenseadmin-test",
	}, infrastructure.NewLogger("error", io.Discard))
	require.NoError(t, err)
	return c
}

// Fail makes endpoint fail until Recover is called.
func (s *StubAuthority) Fail(endpoint string, f StubFailure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[endpoint] = f
}

// Recover clears a failure set with Fail.
func (s *StubAuthority) Recover(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, endpoint)
}

// RejectEmail makes generate requests for email fail with message.
func (s *StubAuthority) RejectEmail(email, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectKeys[email] = message
}

// OmitSetEcho drops maintenanceMode from the set response so clients
// have to read the flag back.
func (s *StubAuthority) OmitSetEcho() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitEcho = true
}

// SetDelay delays every response by d.
func (s *StubAuthority) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// SetMaintenance seeds the server-side flag.
func (s *StubAuthority) SetMaintenance(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maintenance = on
}

// Maintenance returns the server-side flag.
func (s *StubAuthority) Maintenance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maintenance
}

// AddLicense seeds a license.
func (s *StubAuthority) AddLicense(l domain.License) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.licenses = append(s.licenses, l)
}

// Licenses returns a copy of the licenses held by the stub.
func (s *StubAuthority) Licenses() []domain.License {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.License, len(s.licenses))
	copy(out, s.licenses)
	return out
}

// AddUser seeds a registered user.
func (s *StubAuthority) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
}

// ServeEmailsOnly switches /users to the {"emails": [...]} shape.
func (s *StubAuthority) ServeEmailsOnly() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emailsOnly = true
}

// Calls returns how many requests reached endpoint.
func (s *StubAuthority) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// TotalCalls returns the number of requests across all endpoints.
func (s *StubAuthority) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Bodies returns the request bodies received by endpoint, in order.
func (s *StubAuthority) Bodies(endpoint string) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]json.RawMessage, len(s.bodies[endpoint]))
	copy(out, s.bodies[endpoint])
	return out
}

func (s *StubAuthority) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path[1:]
		body, _ := io.ReadAll(r.Body)

		s.mu.Lock()
		s.calls[endpoint]++
		if len(body) > 0 {
			s.bodies[endpoint] = append(s.bodies[endpoint], json.RawMessage(body))
		}
		failure, failing := s.failures[endpoint]
		delay := s.delay
		s.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}

		if failing {
			if failure.Envelope {
				writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": failure.Message})
				return
			}
			writeJSON(w, failure.Status, map[string]any{"error": failure.Message})
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (s *StubAuthority) generate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxUniqueIPs int    `json:"maxUniqueIPs"`
		UserEmail    string `json:"userEmail"`
		UserName     string `json:"userName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MaxUniqueIPs < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "maxUniqueIPs must be a positive integer"})
		return
	}

	s.mu.Lock()
	if msg, ok := s.rejectKeys[req.UserEmail]; ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": msg})
		return
	}
	s.seq++
	key := fmt.Sprintf("STUB-%04d", s.seq)
	s.licenses = append(s.licenses, domain.License{
		Key:          key,
		MaxUniqueIPs: req.MaxUniqueIPs,
		UsedIPs:      []string{},
		IsValid:      true,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	})
	if req.UserEmail != "" {
		s.users = append(s.users, domain.User{Email: req.UserEmail, Name: req.UserName, LicenseKey: key})
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "licenseKey": key, "message": "License generated successfully"})
}

func (s *StubAuthority) invalidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		License string `json:"license"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.licenses {
		if s.licenses[i].Key != req.License {
			continue
		}
		if !s.licenses[i].IsValid {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "License was already invalid"})
			return
		}
		s.licenses[i].IsValid = false
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "License invalidated successfully"})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "License not found"})
}

func (s *StubAuthority) listLicenses(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	licenses := make([]domain.License, len(s.licenses))
	copy(licenses, s.licenses)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "licenses": licenses})
}

func (s *StubAuthority) listUsers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	users := make([]domain.User, len(s.users))
	copy(users, s.users)
	emailsOnly := s.emailsOnly
	s.mu.Unlock()

	if emailsOnly {
		emails := make([]string, 0, len(users))
		for _, u := range users {
			emails = append(emails, u.Email)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "emails": emails})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "users": users})
}

func (s *StubAuthority) getMaintenance(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "maintenanceMode": s.Maintenance()})
}

func (s *StubAuthority) setMaintenance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaintenanceMode *bool `json:"maintenanceMode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MaintenanceMode == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "maintenanceMode must be a boolean"})
		return
	}

	s.mu.Lock()
	s.maintenance = *req.MaintenanceMode
	omit := s.omitEcho
	s.mu.Unlock()

	resp := map[string]any{"success": true, "message": "Maintenance mode updated"}
	if !omit {
		resp["maintenanceMode"] = *req.MaintenanceMode
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
