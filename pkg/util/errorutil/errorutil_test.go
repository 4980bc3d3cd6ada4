package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

func TestToDomainError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"domain error passes through", NewConflict("stale", nil), "CONFLICT", http.StatusConflict},
		{"wrapped domain error", fmt.Errorf("transition: %w", NewInvalidJobState(nil)), "INVALID_JOB_STATE", http.StatusBadRequest},
		{"pgx no rows", pgx.ErrNoRows, "NOT_FOUND", http.StatusNotFound},
		{"fiber error", fiber.NewError(http.StatusForbidden, "insufficient role"), "FORBIDDEN", http.StatusForbidden},
		{"unknown error", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToDomainError(tc.err)
			if got.Code != tc.code {
				t.Errorf("Code = %q, want %q", got.Code, tc.code)
			}
			if got.HTTPStatus != tc.status {
				t.Errorf("HTTPStatus = %d, want %d", got.HTTPStatus, tc.status)
			}
		})
	}
}

func TestInvalidStateErrorsShareMessage(t *testing.T) {
	for _, err := range []error{NewInvalidJobState(nil), NewInvalidTransition(nil, errors.New("x"))} {
		de := ToDomainError(err)
		if de.Message != InvalidJobStateMessage {
			t.Errorf("Message = %q, want %q", de.Message, InvalidJobStateMessage)
		}
	}
}

func TestToDomainErrorNil(t *testing.T) {
	if ToDomainError(nil) != nil {
		t.Fatal("ToDomainError(nil) should be nil")
	}
	if MapError(nil) != nil {
		t.Fatal("MapError(nil) should be nil")
	}
}
