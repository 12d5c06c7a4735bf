package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"
	ErrCodeRefreshFailed          = "refresh_failed"
	ErrCodeRefreshUnavailable     = "refresh_unavailable"

	// Validation errors
	ErrCodeInvalidRequest = "invalid_request"

	// Quiz session errors
	ErrCodeSessionNotFound     = "session_not_found"
	ErrCodeInvalidSessionID    = "invalid_session_id"
	ErrCodeInvalidOption       = "invalid_option"
	ErrCodeNoQuestions         = "no_questions"
	ErrCodeQuestionFetchFailed = "question_fetch_failed"

	// Statistics errors
	ErrCodeNoHistory        = "no_history"
	ErrCodeStatsFetchFailed = "stats_fetch_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError = "internal_error"
	ErrCodeUpstreamError = "upstream_error"
)
