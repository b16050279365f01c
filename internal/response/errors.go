package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrUnauthenticated    ErrCode = "UNAUTHENTICATED"

	// ─── Workflow preconditions ────────────────────────────────────────
	ErrExamNotStarted   ErrCode = "EXAM_NOT_STARTED"
	ErrAlreadySubmitted ErrCode = "EXAM_ALREADY_SUBMITTED"
	ErrExamExpired      ErrCode = "EXAM_TIME_EXPIRED"
	ErrUnknownQuestion  ErrCode = "UNKNOWN_QUESTION"
	ErrInvalidOption    ErrCode = "INVALID_OPTION"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid username or password."
	case ErrUnauthenticated:
		return "Please log in to continue."

	// ─── Workflow preconditions ────────────────────────────────────────
	case ErrExamNotStarted:
		return "The exam has not been started."
	case ErrAlreadySubmitted:
		return "The exam has already been submitted."
	case ErrExamExpired:
		return "The exam time is over."
	case ErrUnknownQuestion:
		return "The question does not exist."
	case ErrInvalidOption:
		return "The selected option does not exist."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
