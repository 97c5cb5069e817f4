package httpapi

import "github.com/RicardoMLopes/wsh/internal/domain"

// Result response envelope
// - code: ResultSuccess = 2000, ResultError = -1
// - type: 'success' | 'error'
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
)

// ErrorDetail result payload of a failed operation
type ErrorDetail struct {
	Kind      domain.Kind `json:"kind"`
	Retryable bool        `json:"retryable"`
}

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

// FailWith carries the error category so callers know whether to retry
func FailWith(err error) Result[ErrorDetail] {
	return Result[ErrorDetail]{
		Code:    ResultError,
		Type:    "error",
		Message: err.Error(),
		Result:  ErrorDetail{Kind: domain.KindOf(err), Retryable: domain.IsRetryable(err)},
	}
}
