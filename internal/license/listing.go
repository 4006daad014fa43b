package license

import (
	"context"
	"net/http"

	"licenseadmin/internal/authority"
	"licenseadmin/internal/config"
	apierrors "licenseadmin/internal/errors"
	"licenseadmin/internal/validation"
	"licenseadmin/pkg/contracts/domain"
)

// Outcome separates an empty listing from a failed one.
type Outcome string

const (
	OutcomeLoaded Outcome = "loaded"
	OutcomeEmpty  Outcome = "empty"
	OutcomeFailed Outcome = "failed"
)

// Listing is the result of a list operation, ready for display.
type Listing[T any] struct {
	Outcome Outcome
	Items   []T
	Err     error
}

// NewListing classifies the result of a list call.
func NewListing[T any](items []T, err error) Listing[T] {
	switch {
	case err != nil:
		return Listing[T]{Outcome: OutcomeFailed, Err: err}
	case len(items) == 0:
		return Listing[T]{Outcome: OutcomeEmpty, Items: []T{}}
	default:
		return Listing[T]{Outcome: OutcomeLoaded, Items: items}
	}
}

// Message is the line an operator sees for a listing that has no rows.
// Loaded listings return an empty string.
func (l Listing[T]) Message(emptyText string) string {
	switch l.Outcome {
	case OutcomeFailed:
		return apierrors.UserMessage(l.Err)
	case OutcomeEmpty:
		return emptyText
	default:
		return ""
	}
}

type licensesResponse struct {
	Licenses []domain.License `json:"licenses"`
}

type usersResponse struct {
	Users  []domain.User `json:"users"`
	Emails []string      `json:"emails"`
}

// Licenses returns every license known to the authority, in server order.
func (s *Service) Licenses(ctx context.Context) ([]domain.License, error) {
	raw, err := s.caller.Call(ctx, http.MethodGet, config.EndpointLicenses, nil)
	if err != nil {
		s.metrics.record(ctx, "list_licenses", err)
		return nil, err
	}

	var resp licensesResponse
	if err := authority.Decode(raw, &resp); err != nil {
		s.metrics.record(ctx, "list_licenses", err)
		return nil, err
	}

	s.metrics.record(ctx, "list_licenses", nil)
	return resp.Licenses, nil
}

// ListLicenses wraps Licenses into a Listing.
func (s *Service) ListLicenses(ctx context.Context) Listing[domain.License] {
	return NewListing(s.Licenses(ctx))
}

// Users returns the registered users. Authorities that only expose the
// address list are mapped onto users carrying just the email.
func (s *Service) Users(ctx context.Context) ([]domain.User, error) {
	raw, err := s.caller.Call(ctx, http.MethodGet, config.EndpointUsers, nil)
	if err != nil {
		s.metrics.record(ctx, "list_users", err)
		return nil, err
	}

	var resp usersResponse
	if err := authority.Decode(raw, &resp); err != nil {
		s.metrics.record(ctx, "list_users", err)
		return nil, err
	}
	s.metrics.record(ctx, "list_users", nil)

	if len(resp.Users) > 0 || len(resp.Emails) == 0 {
		return resp.Users, nil
	}

	users := make([]domain.User, 0, len(resp.Emails))
	for _, e := range resp.Emails {
		users = append(users, domain.User{Email: e})
	}
	return users, nil
}

// ListUsers wraps Users into a Listing.
func (s *Service) ListUsers(ctx context.Context) Listing[domain.User] {
	return NewListing(s.Users(ctx))
}

// RegisteredEmails returns the distinct, well-formed user addresses sorted
// alphabetically, for broadcast mailings.
func (s *Service) RegisteredEmails(ctx context.Context) ([]string, error) {
	users, err := s.Users(ctx)
	if err != nil {
		return nil, err
	}

	emails := make([]string, 0, len(users))
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	return validation.UniqueSortedEmails(emails), nil
}
