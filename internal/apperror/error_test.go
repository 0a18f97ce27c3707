package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew_UsesRegisteredMessage(t *testing.T) {
	err := New(CodeChainUnavailable, WithContext("arbitrum"))

	if err.Message != "Chain is unavailable" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Error() != "CHAIN_UNAVAILABLE: Chain is unavailable (arbitrum)" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestWrap_KeepsExistingAppError(t *testing.T) {
	inner := New(CodeAlreadyExecuting)
	wrapped := fmt.Errorf("execute: %w", inner)

	got := Wrap(wrapped, CodeInternalError, "ctx")
	if got != inner {
		t.Fatal("Wrap should return the AppError found in the chain")
	}
	if got.Context != "ctx" {
		t.Errorf("Context = %q, want ctx", got.Context)
	}
}

func TestGetCodeAndCategory(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		category Category
	}{
		{"conflict", New(CodeAlreadyExecuting), CodeAlreadyExecuting, CategoryConcurrencyConflict},
		{"expired", New(CodeOpportunityExpired), CodeOpportunityExpired, CategoryExpired},
		{"data", fmt.Errorf("wrap: %w", New(CodePriceUnavailable)), CodePriceUnavailable, CategoryDataUnavailable},
		{"connectivity", New(CodeChainProbeFailed), CodeChainProbeFailed, CategoryConnectivity},
		{"phase", New(CodePhaseTimeout), CodePhaseTimeout, CategoryPhaseExecution},
		{"plain", errors.New("boom"), CodeUnknownError, CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.code {
				t.Errorf("GetCode() = %s, want %s", got, tt.code)
			}
			if got := GetCategory(tt.err); got != tt.category {
				t.Errorf("GetCategory() = %s, want %s", got, tt.category)
			}
		})
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeChainNotFound, WithContext("base")))
	if !errors.Is(err, New(CodeChainNotFound)) {
		t.Error("errors.Is should match on code")
	}
	if errors.Is(err, New(CodeChainUnavailable)) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestUnwrap_ExposesCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := New(CodeChainDialFailed, WithCause(cause))
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through errors.Is")
	}
}
