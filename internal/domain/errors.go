package domain

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindValidation
	KindBusy
	KindRemoteRejected
	KindNetworkFailure
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation_error"
	case KindBusy:
		return "busy"
	case KindRemoteRejected:
		return "remote_rejected"
	case KindNetworkFailure:
		return "network_failure"
	default:
		return "internal_error"
	}
}

// Error is the result type of every failed core operation.
// Status is the upstream HTTP status for KindRemoteRejected and KindUnauthorized, 0 otherwise.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match any error of the same kind against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrUnauthorized   = &Error{Kind: KindUnauthorized}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrBusy           = &Error{Kind: KindBusy}
	ErrRemoteRejected = &Error{Kind: KindRemoteRejected}
	ErrNetworkFailure = &Error{Kind: KindNetworkFailure}
	ErrInternal       = &Error{Kind: KindInternal}
)

func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Unauthorized(msg string) error {
	return &Error{Kind: KindUnauthorized, Message: msg, Status: 401}
}

func Busy(productID int64) error {
	return &Error{Kind: KindBusy, Message: fmt.Sprintf("product %d has a pending update", productID)}
}

func Rejected(status int, msg string) error {
	return &Error{Kind: KindRemoteRejected, Message: msg, Status: status}
}

func NetworkFailure(err error) error {
	return &Error{Kind: KindNetworkFailure, Message: "request did not complete", Err: err}
}

func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the human readable part of err, suitable for showing to the buyer.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
