package dto

import (
	"net/mail"
	"strings"

	apperrors "github.com/repairx/job-service/pkg/util/errorutil"
)

const (
	maxNameLength        = 120
	maxDescriptionLength = 4000
)

// fieldErrors collects per-field validation messages.
type fieldErrors map[string]any

func (f fieldErrors) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		f[field] = "is required"
	}
}

func (f fieldErrors) maxLen(field, value string, n int) {
	if len(value) > n {
		f[field] = "is too long"
	}
}

func (f fieldErrors) email(field, value string) {
	if strings.TrimSpace(value) == "" {
		f[field] = "is required"
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		f[field] = "must be a valid email address"
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperrors.NewValidationError("request validation failed", map[string]any(f))
}
