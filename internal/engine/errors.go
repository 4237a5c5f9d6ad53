package engine

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("engine: store closed")

// ErrUnknownModel is wrapped by lookups of unregistered model names.
var ErrUnknownModel = errors.New("unknown model")

// ErrUnknownAction is wrapped by lookups of undeclared action names.
var ErrUnknownAction = errors.New("unknown action")

// ErrNoRequester is returned when a request descriptor is executed on a store
// without a request layer.
var ErrNoRequester = errors.New("engine: no requester configured")

// ErrIntentDropped rejects an effect call whose intent never reached the
// effect runner because an interceptor did not forward it.
var ErrIntentDropped = errors.New("engine: effect intent dropped by interceptor")

// RegistrationError describes a problem found while registering a model.
//
// Registration problems never abort the registry: the offending model,
// action or subscription is skipped and the error is logged and returned.
type RegistrationError struct {
	// Code identifies the error category.
	Code RegistrationErrorCode

	// Model is the model being registered (empty for MISSING_NAME).
	Model string

	// Action is the offending action or subscription key, if any.
	Action string

	// Message is a human-readable description.
	Message string
}

// RegistrationErrorCode categorizes registration errors.
type RegistrationErrorCode string

const (
	// ErrCodeMissingName indicates a model spec without a name.
	ErrCodeMissingName RegistrationErrorCode = "MISSING_NAME"

	// ErrCodeDuplicateModel indicates a second registration under a taken name.
	ErrCodeDuplicateModel RegistrationErrorCode = "DUPLICATE_MODEL"

	// ErrCodeMalformedAction indicates an action config with conflicting shapes.
	ErrCodeMalformedAction RegistrationErrorCode = "MALFORMED_ACTION"

	// ErrCodeInvalidSubscription indicates an unparseable subscription key.
	ErrCodeInvalidSubscription RegistrationErrorCode = "INVALID_SUBSCRIPTION"
)

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	switch {
	case e.Model != "" && e.Action != "":
		return fmt.Sprintf("%s: %s (model=%s, action=%s)", e.Code, e.Message, e.Model, e.Action)
	case e.Model != "":
		return fmt.Sprintf("%s: %s (model=%s)", e.Code, e.Message, e.Model)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRegistrationError returns true if err is or wraps a RegistrationError.
func IsRegistrationError(err error) bool {
	var re *RegistrationError
	return errors.As(err, &re)
}

// IsDuplicateModel returns true if err reports a duplicate model name.
// Uses errors.As to handle wrapped and joined errors.
func IsDuplicateModel(err error) bool {
	var re *RegistrationError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDuplicateModel
	}
	return false
}

// HasCode returns true if err is or wraps a RegistrationError with code.
func HasCode(err error, code RegistrationErrorCode) bool {
	var re *RegistrationError
	if errors.As(err, &re) && re.Code == code {
		return true
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			if HasCode(e, code) {
				return true
			}
		}
	}
	return false
}
