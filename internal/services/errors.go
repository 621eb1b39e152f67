package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service failures so the HTTP layer can pick a status.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindProvider   ErrorKind = "provider"
	KindAuth       ErrorKind = "auth"
	KindDelivery   ErrorKind = "delivery"
	KindInternal   ErrorKind = "internal"
)

// Error is the structured error returned by gateway services.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and message, which lets the sentinels
// below be compared with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

var (
	ErrMerchantNotFound      = &Error{Kind: KindNotFound, Message: "merchant not found"}
	ErrTransactionNotFound   = &Error{Kind: KindNotFound, Message: "transaction not found"}
	ErrTransactionNotPending = &Error{Kind: KindConflict, Message: "transaction is no longer pending"}
	ErrInvalidSignature      = &Error{Kind: KindAuth, Message: "invalid signature"}
	ErrInvalidCredentials    = &Error{Kind: KindAuth, Message: "invalid merchant credentials"}
)

func ValidationError(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func NotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func ConflictError(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func ProviderError(provider string, err error) *Error {
	return &Error{Kind: KindProvider, Message: fmt.Sprintf("payment provider %s failed", provider), Err: err}
}

func AuthError(message string, err error) *Error {
	return &Error{Kind: KindAuth, Message: message, Err: err}
}

func DeliveryError(url string, err error) *Error {
	return &Error{Kind: KindDelivery, Message: fmt.Sprintf("callback delivery to %s failed", url), Err: err}
}

func internalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
