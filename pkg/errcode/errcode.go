package errcode

import "fmt"

// Error represents a business error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, msg: %s", e.Code, e.Msg)
}

// New creates a new error with code and message
func New(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Wrap wraps an error with additional context
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code: e.Code,
		Msg:  fmt.Sprintf("%s: %v", e.Msg, err),
	}
}

// Common error codes
var (
	// Success
	ErrSuccess = New(0, "success")

	// Common errors (1xxx)
	ErrInvalidParam = New(1001, "invalid parameter")
	ErrInternal     = New(1002, "internal error")
	ErrUnauthorized = New(1003, "unauthorized")
	ErrNotFound     = New(1005, "not found")

	// Auth errors (2xxx)
	ErrTokenInvalid = New(2001, "token invalid")
	ErrTokenExpired = New(2002, "token expired")
	ErrLoginFailed  = New(2005, "login failed")

	// Sync errors (4xxx): expected anomalies of the event stream. These are
	// consumed inside the dispatcher, logged at debug level and never
	// surfaced to callers.
	ErrStaleEvent     = New(4101, "stale or duplicate event")
	ErrUnresolvedId   = New(4102, "provisional id not yet confirmed")
	ErrMalformedEvent = New(4103, "malformed event payload")
	ErrConvNotFound   = New(4104, "conversation not found")
	ErrMsgNotFound    = New(4105, "message not found")

	// Gateway errors (5xxx)
	ErrConnClosed       = New(5002, "connection closed")
	ErrInvalidProtocol  = New(5003, "invalid protocol")
	ErrWriteChannelFull = New(5005, "write channel full")
)
