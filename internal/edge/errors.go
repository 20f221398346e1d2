package edge

import "net/http"

// ErrorKind — категория отказа пайплайна. Вместо иерархии подклассов —
// tagged variant с одним обработчиком.
type ErrorKind string

const (
	// KindAuth зарезервирован под прямые 401; сейчас невалидный токен
	// уводит на логин, а не отклоняется.
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindSecurity  ErrorKind = "security"
	KindSystem    ErrorKind = "system"
)

type PipelineError struct {
	Kind       ErrorKind
	StatusCode int
	Code       string
	Message    string
}

func (e *PipelineError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func rateLimitError(msg string) *PipelineError {
	return &PipelineError{Kind: KindRateLimit, StatusCode: http.StatusTooManyRequests, Code: "rate_limited", Message: msg}
}

func securityError(code, msg string) *PipelineError {
	return &PipelineError{Kind: KindSecurity, StatusCode: http.StatusForbidden, Code: code, Message: msg}
}

func systemError(msg string) *PipelineError {
	return &PipelineError{Kind: KindSystem, StatusCode: http.StatusInternalServerError, Code: "internal", Message: msg}
}
