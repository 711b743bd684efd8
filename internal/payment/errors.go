package payment

import "fmt"

// ErrorCode classifies submission failures for the caller. Every code is
// resumable: the draft survives and the user can retry.
type ErrorCode string

const (
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeOrderFailed        ErrorCode = "ORDER_FAILED"
	CodeConfirmationFailed ErrorCode = "CONFIRMATION_FAILED"
	CodeAbandoned          ErrorCode = "ABANDONED"
	CodeNothingStaged      ErrorCode = "NOTHING_STAGED"
	CodeInternal           ErrorCode = "INTERNAL"
)

// Error is the typed failure the submission workflow hands back.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("payment: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("payment: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// ErrNothingStaged is returned by the redirect-return handler when no
// staged submission exists, e.g. on a page revisit after the work was
// already done. It means "nothing to do", never a duplicate.
var ErrNothingStaged = newError(CodeNothingStaged, "no_staged_submission", nil)
