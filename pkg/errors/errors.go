package errors

import "fmt"

type AppError struct {
	Code    Code           `json:"code"`
	Reason  Reason         `json:"reason,omitempty"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an *AppError carrying the same code and reason.
// A target without a reason matches on code alone.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	if t.Reason == ReasonNone {
		return e.Code == t.Code
	}
	return e.Code == t.Code && e.Reason == t.Reason
}

// WithDetails returns a copy of e with the given details attached.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// WithCause returns a copy of e wrapping cause.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Newr(code Code, reason Reason, message string) *AppError {
	return &AppError{Code: code, Reason: reason, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return Newr(CodeInvalidArgument, ReasonInvalidArgument, msg)
}

func NotFound(msg string) error {
	return Newr(CodeNotFound, ReasonNotFound, msg)
}

func AlreadyExists(msg string) error {
	return New(CodeAlreadyExists, msg)
}

func Unauthorized(msg string) error {
	return Newr(CodeUnauthenticated, ReasonUnauthorized, msg)
}

func Forbidden(msg string) error {
	return New(CodePermissionDenied, msg)
}

func Internal(msg string) error {
	return Newr(CodeInternal, ReasonInternal, msg)
}

func FailedPrecondition(msg string) error {
	return New(CodeFailedPrecondition, msg)
}

func Unavailable(msg string, cause error) error {
	return &AppError{Code: CodeUnavailable, Reason: ReasonStoreUnavailable, Message: msg, Cause: cause}
}

// As extracts an *AppError from err, if any.
func As(err error) (*AppError, bool) {
	for err != nil {
		if ae, ok := err.(*AppError); ok {
			return ae, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// ReasonOf returns the stable reason code carried by err, or ReasonInternal.
func ReasonOf(err error) Reason {
	if ae, ok := As(err); ok && ae.Reason != ReasonNone {
		return ae.Reason
	}
	return ReasonInternal
}
