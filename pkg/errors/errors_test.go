package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	detailed := ErrInvalidParam.WithDetail("missing field: title")

	if detailed == ErrInvalidParam {
		t.Fatal("WithDetail must return a clone")
	}
	if ErrInvalidParam.Detail != "" {
		t.Errorf("sentinel detail mutated: %q", ErrInvalidParam.Detail)
	}
	if detailed.Detail != "missing field: title" {
		t.Errorf("detail = %q", detailed.Detail)
	}
	if detailed.Code != ErrInvalidParam.Code || detailed.HTTPStatus != ErrInvalidParam.HTTPStatus {
		t.Errorf("clone lost code or status: %+v", detailed)
	}
}

func TestWithErrorDoesNotMutateSentinel(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := ErrLLMProviderError.WithError(cause)

	if ErrLLMProviderError.Err != nil {
		t.Errorf("sentinel err mutated: %v", ErrLLMProviderError.Err)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("wrapped error should unwrap to cause")
	}
}

func TestErrorMessage(t *testing.T) {
	plain := New(CodeNotFound, "resource not found")
	if got := plain.Error(); got != "[1004] resource not found" {
		t.Errorf("Error() = %q", got)
	}

	withCause := plain.WithError(errors.New("row missing"))
	if got := withCause.Error(); got != "[1004] resource not found: row missing" {
		t.Errorf("Error() = %q", got)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{ErrInvalidParam, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrDocumentNotFound, http.StatusNotFound},
		{ErrSessionInFlight, http.StatusConflict},
		{ErrStaleArtifact, http.StatusConflict},
		{ErrGenerationTimeout, http.StatusGatewayTimeout},
		{ErrLLMProviderError, http.StatusServiceUnavailable},
		{ErrGenerationFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if tt.err.HTTPStatus != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.err.Code, tt.err.HTTPStatus, tt.status)
		}
	}
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := ErrSectionNotFound.WithError(errors.New("db row missing"))
	outer := fmt.Errorf("loading section: %w", inner)

	if !HasCode(outer, CodeSectionNotFound) {
		t.Error("HasCode should find the code through fmt.Errorf wrapping")
	}
	if HasCode(outer, CodeDocumentNotFound) {
		t.Error("HasCode matched the wrong code")
	}
	if HasCode(errors.New("plain"), CodeSectionNotFound) {
		t.Error("HasCode matched a non-app error")
	}
	if HasCode(nil, CodeSectionNotFound) {
		t.Error("HasCode matched nil")
	}
}

func TestAsAppError(t *testing.T) {
	if got := AsAppError(ErrConflict); got != ErrConflict {
		t.Errorf("AsAppError should return the same *AppError, got %+v", got)
	}

	plain := errors.New("boom")
	converted := AsAppError(plain)
	if converted.Code != CodeUnknown {
		t.Errorf("converted code = %s", converted.Code)
	}
	if !errors.Is(converted, plain) {
		t.Error("converted error should wrap the original")
	}
}
