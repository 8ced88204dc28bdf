package response

// ErrorBody is the error envelope returned by every endpoint.
type ErrorBody struct {
	Success   bool   `json:"success"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
}

func Error(code, message string, details any) ErrorBody {
	return ErrorBody{
		Success:   false,
		ErrorCode: code,
		Message:   message,
		Details:   details,
	}
}

const (
	CodeBadRequest     = "BAD_REQUEST"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeNotFound       = "NOT_FOUND"
	CodeTooMany        = "TOO_MANY_REQUESTS"
	CodeStockExhausted = "STOCK_EXHAUSTED"
	CodeTryAgain       = "TRY_AGAIN"
	CodeInternal       = "INTERNAL_ERROR"
)
