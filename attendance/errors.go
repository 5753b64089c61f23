package attendance

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown is reported for errors outside the taxonomy (storage, transport).
	CodeUnknown Code = "UNKNOWN"

	// Admin errors
	CodeAlreadyInitialized   Code = "ALREADY_INITIALIZED"
	CodeAdminNotSet          Code = "ADMIN_NOT_SET"
	CodeNotAuthorized        Code = "NOT_AUTHORIZED"
	CodeAuthenticationFailed Code = "AUTHENTICATION_FAILED"

	// Check-in errors
	CodeCodeNotSet       Code = "CODE_NOT_SET"
	CodeInvalidCode      Code = "INVALID_CODE"
	CodeOutsideWindow    Code = "OUTSIDE_WINDOW"
	CodeAlreadyCheckedIn Code = "ALREADY_CHECKED_IN"

	// Distribution errors
	CodeAlreadyDistributed Code = "ALREADY_DISTRIBUTED"
	CodeEndTimeNotSet      Code = "END_TIME_NOT_SET"
	CodeSessionNotOver     Code = "SESSION_NOT_OVER"
	CodePaymentFailed      Code = "PAYMENT_FAILED"
	CodeDistributionBusy   Code = "DISTRIBUTION_IN_PROGRESS"
)

// Error is a lifecycle error. Two errors match under errors.Is when their codes match.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrAlreadyInitialized   = &Error{Code: CodeAlreadyInitialized, Message: "admin already set"}
	ErrAdminNotSet          = &Error{Code: CodeAdminNotSet, Message: "admin not set"}
	ErrNotAuthorized        = &Error{Code: CodeNotAuthorized, Message: "not authorized"}
	ErrAuthenticationFailed = &Error{Code: CodeAuthenticationFailed, Message: "caller did not authorize this request"}
	ErrCodeNotSet           = &Error{Code: CodeCodeNotSet, Message: "event code not set"}
	ErrInvalidCode          = &Error{Code: CodeInvalidCode, Message: "invalid code"}
	ErrOutsideWindow        = &Error{Code: CodeOutsideWindow, Message: "outside attendance window"}
	ErrAlreadyCheckedIn     = &Error{Code: CodeAlreadyCheckedIn, Message: "already checked in"}
	ErrAlreadyDistributed   = &Error{Code: CodeAlreadyDistributed, Message: "rewards already distributed"}
	ErrEndTimeNotSet        = &Error{Code: CodeEndTimeNotSet, Message: "end time not set"}
	ErrSessionNotOver       = &Error{Code: CodeSessionNotOver, Message: "session not over yet"}
	ErrPaymentFailed        = &Error{Code: CodePaymentFailed, Message: "one or more reward payments failed"}
	ErrDistributionBusy     = &Error{Code: CodeDistributionBusy, Message: "some attendees are not paid yet"}
)

// CodeOf returns the lifecycle code carried by err, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
