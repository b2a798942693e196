package app

import "fmt"

// DomainError is the error shape the HTTP layer knows how to render:
// an HTTP status, a stable machine-readable code (WRONG_PASSPHRASE,
// VALIDATION_ERROR, FORBIDDEN, ...), and a participant-facing message.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
