package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigInvalid: "Invalid configuration",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	// Connectivity
	CodeChainDialFailed:  "Failed to dial chain endpoint",
	CodeChainProbeFailed: "Chain health probe failed",
	CodeChainIDMismatch:  "Endpoint reports an unexpected chain id",
	CodeChainRPCError:    "Chain RPC call failed",
	CodeChainUnavailable: "Chain is unavailable",
	CodeChainNotFound:    "Chain is not registered",

	// Data availability
	CodePriceUnavailable:    "Price data unavailable",
	CodeGasPriceUnavailable: "Gas price unavailable",
	CodeNoBridgeRoute:       "No eligible bridge for chain pair",
	CodeNotProfitable:       "Opportunity is not profitable after costs",
	CodeQuoteFailed:         "Price quote failed",

	// Execution
	CodeAlreadyExecuting:       "Opportunity is already executing",
	CodeOpportunityExpired:     "Opportunity has expired",
	CodeOpportunityNotFound:    "Opportunity not found",
	CodePhaseFailed:            "Execution phase failed",
	CodePhaseTimeout:           "Execution phase timed out",
	CodeTxSubmitFailed:         "Transaction submission failed",
	CodeTxStatusFailed:         "Transaction status lookup failed",
	CodeBridgeAPIError:         "Bridge API call failed",
	CodeExecutorNotConfigured:  "Executor is not configured",
	CodeExecutionLockFailed:    "Failed to acquire execution lock",
	CodeInsufficientObservable: "Observed amount missing from receipt",

	CodeCircuitOpen: "Circuit breaker is open",
}
