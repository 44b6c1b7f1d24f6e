package sdk

import (
	"errors"
	"fmt"
)

// Error represents an API error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %d, msg: %s", e.Code, e.Msg)
}

// NewError creates a new error
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// Common error codes
const (
	CodeSuccess = 0

	CodeInvalidParam   = 1001
	CodeInternalServer = 1002
	CodeUnauthorized   = 1003
	CodeForbidden      = 1004
	CodeNotFound       = 1005

	CodeTokenInvalid  = 2001
	CodeTokenExpired  = 2002
	CodeLoginFailed   = 2005
	CodeUserNotFound  = 2006
	CodePasswordWrong = 2008

	CodeMessageNotFound = 4001
	CodeConvNotFound    = 4003
	CodeSendFailed      = 4005
	CodePullFailed      = 4006
)

// Predefined errors
var (
	ErrInvalidParam   = NewError(CodeInvalidParam, "invalid parameter")
	ErrInternalServer = NewError(CodeInternalServer, "internal server error")
	ErrUnauthorized   = NewError(CodeUnauthorized, "unauthorized")
	ErrNotFound       = NewError(CodeNotFound, "not found")

	ErrTokenInvalid  = NewError(CodeTokenInvalid, "token invalid")
	ErrTokenExpired  = NewError(CodeTokenExpired, "token expired")
	ErrLoginFailed   = NewError(CodeLoginFailed, "login failed")
	ErrUserNotFound  = NewError(CodeUserNotFound, "user not found")
	ErrPasswordWrong = NewError(CodePasswordWrong, "password wrong")

	ErrMessageNotFound = NewError(CodeMessageNotFound, "message not found")
	ErrConvNotFound    = NewError(CodeConvNotFound, "conversation not found")
)

// IsAuthError reports whether err is a token problem worth a re-login
func IsAuthError(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case CodeUnauthorized, CodeTokenInvalid, CodeTokenExpired:
		return true
	}
	return false
}
