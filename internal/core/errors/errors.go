package errors

// Stable error_type values used in HTTP error responses. Clients branch on
// these, so they are part of the wire contract.
const (
	HttpValidationError   = "validation_error"
	HttpInvalidJsonError  = "invalid_json"
	HttpUnauthorizedError = "unauthorized"
	HttpForbiddenError    = "forbidden"
	HttpDuplicateKeyError = "duplicate_key"
	HttpInvalidCursor     = "invalid_cursor"
	HttpStoreUnavailable  = "store_unavailable"
	HttpInternalError     = "internal_error"
)

// ErrorResponse is the error response body for every failed request.
// No endpoint returns partial-success bodies; a failed batch is a failed
// request.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
