// Package validation wraps go-playground/validator with the field naming
// and error shape used across the license admin client.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "licenseadmin/internal/errors"
)

// Validator validates tagged structs and reports the first failing field as
// a *apierrors.ValidationError.
type Validator struct {
	v *validator.Validate
}

// New creates a validator that names fields after their JSON tags.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{v: v}
}

// Struct validates s. The returned error is nil or a *apierrors.ValidationError.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apierrors.NewValidationError("", err.Error())
	}

	fe := fieldErrs[0]
	return apierrors.NewValidationError(fieldName(fe), formatTag(fe.Tag(), fe.Param()))
}

// Var validates a single value against tag, reporting it under field.
func (val *Validator) Var(field string, value any, tag string) error {
	if err := val.v.Var(value, tag); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return apierrors.NewValidationError(field, formatTag(fieldErrs[0].Tag(), fieldErrs[0].Param()))
		}
		return apierrors.NewValidationError(field, err.Error())
	}
	return nil
}

func fieldName(fe validator.FieldError) string {
	// dive errors are reported as recipients[2]; keep the index for the operator
	if ns := fe.Namespace(); strings.Contains(ns, "[") {
		if i := strings.Index(ns, "."); i >= 0 {
			return ns[i+1:]
		}
	}
	return fe.Field()
}

// formatTag describes a failed tag. The field is carried separately by
// ValidationError.
func formatTag(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", param)
	case "max":
		return fmt.Sprintf("must be at most %s", param)
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(param, " ", ", "))
	default:
		return fmt.Sprintf("failed %s validation", tag)
	}
}

// LooksLikeEmail is the loose check used when harvesting addresses from
// the user list: the entry contains both an @ and a dot. Addresses that pass
// here but are still malformed fail individually when mailed.
func LooksLikeEmail(s string) bool {
	return strings.Contains(s, "@") && strings.Contains(s, ".")
}

// NormalizeRecipients trims every entry, drops blanks and removes
// duplicates. The first occurrence wins and order is preserved. Duplicates
// are compared case-insensitively.
func NormalizeRecipients(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		key := strings.ToLower(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// SplitRecipients breaks free text (one address per line, or separated by
// commas or semicolons) into entries for NormalizeRecipients.
func SplitRecipients(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ',' || r == ';'
	})
}

// UniqueSortedEmails keeps entries that LooksLikeEmail, trims and dedupes
// them, and returns them sorted.
func UniqueSortedEmails(raw []string) []string {
	var keep []string
	for _, e := range NormalizeRecipients(raw) {
		if LooksLikeEmail(e) {
			keep = append(keep, e)
		}
	}
	sort.Strings(keep)
	return keep
}
