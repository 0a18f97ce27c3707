package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigInvalid Code = "CONFIG_INVALID"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Connectivity errors. Non-fatal, they degrade a single chain.
const (
	CodeChainDialFailed  Code = "CHAIN_DIAL_FAILED"
	CodeChainProbeFailed Code = "CHAIN_PROBE_FAILED"
	CodeChainIDMismatch  Code = "CHAIN_ID_MISMATCH"
	CodeChainRPCError    Code = "CHAIN_RPC_ERROR"
	CodeChainUnavailable Code = "CHAIN_UNAVAILABLE"
	CodeChainNotFound    Code = "CHAIN_NOT_FOUND"
)

// Data availability errors. The affected candidate is skipped.
const (
	CodePriceUnavailable    Code = "PRICE_UNAVAILABLE"
	CodeGasPriceUnavailable Code = "GAS_PRICE_UNAVAILABLE"
	CodeNoBridgeRoute       Code = "NO_BRIDGE_ROUTE"
	CodeNotProfitable       Code = "NOT_PROFITABLE"
	CodeQuoteFailed         Code = "QUOTE_FAILED"
)

// Execution errors
const (
	CodeAlreadyExecuting       Code = "ALREADY_EXECUTING"
	CodeOpportunityExpired     Code = "OPPORTUNITY_EXPIRED"
	CodeOpportunityNotFound    Code = "OPPORTUNITY_NOT_FOUND"
	CodePhaseFailed            Code = "PHASE_FAILED"
	CodePhaseTimeout           Code = "PHASE_TIMEOUT"
	CodeTxSubmitFailed         Code = "TX_SUBMIT_FAILED"
	CodeTxStatusFailed         Code = "TX_STATUS_FAILED"
	CodeBridgeAPIError         Code = "BRIDGE_API_ERROR"
	CodeExecutorNotConfigured  Code = "EXECUTOR_NOT_CONFIGURED"
	CodeExecutionLockFailed    Code = "EXECUTION_LOCK_FAILED"
	CodeInsufficientObservable Code = "INSUFFICIENT_OBSERVABLE_AMOUNT"
)

// Circuit breaker errors
const (
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)

// Category groups codes by how callers are expected to react.
type Category string

const (
	CategoryConnectivity        Category = "connectivity"
	CategoryDataUnavailable     Category = "data_unavailable"
	CategoryConcurrencyConflict Category = "concurrency_conflict"
	CategoryPhaseExecution      Category = "phase_execution"
	CategoryExpired             Category = "expired"
	CategoryOther               Category = "other"
)

var categories = map[Code]Category{
	CodeChainDialFailed:  CategoryConnectivity,
	CodeChainProbeFailed: CategoryConnectivity,
	CodeChainIDMismatch:  CategoryConnectivity,
	CodeChainRPCError:    CategoryConnectivity,
	CodeChainUnavailable: CategoryConnectivity,
	CodeCircuitOpen:      CategoryConnectivity,

	CodePriceUnavailable:    CategoryDataUnavailable,
	CodeGasPriceUnavailable: CategoryDataUnavailable,
	CodeNoBridgeRoute:       CategoryDataUnavailable,
	CodeNotProfitable:       CategoryDataUnavailable,
	CodeQuoteFailed:         CategoryDataUnavailable,

	CodeAlreadyExecuting:   CategoryConcurrencyConflict,
	CodeOpportunityExpired: CategoryExpired,

	CodePhaseFailed:  CategoryPhaseExecution,
	CodePhaseTimeout: CategoryPhaseExecution,
}

// CategoryOf returns the category of a code.
func CategoryOf(code Code) Category {
	if c, ok := categories[code]; ok {
		return c
	}
	return CategoryOther
}
