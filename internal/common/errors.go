// Package common defines the error taxonomy shared across the fintrack
// client: every failure that crosses a package boundary is normalized into an
// *AppError carrying one of five kinds. Callers match with errors.Is/errors.As.
package common

import (
	"errors"
	"fmt"
)

// Kind is the classification of a failure. It is the sole input to retry
// eligibility and to user-facing messaging.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindNetwork    Kind = "network"
	KindPermission Kind = "permission"
	KindValidation Kind = "validation"
	KindUnknown    Kind = "unknown"
)

// ErrOffline marks a mutation rejected before any network attempt because the
// connectivity monitor reported offline.
var ErrOffline = errors.New("offline")

// AppError is a classified error: a Kind, a specific human-readable message,
// and the wrapped cause (nil for synthesized errors such as offline rejects).
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError builds a classified error wrapping cause (which may be nil).
func NewAppError(kind Kind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: cause}
}

// Offline returns the classified error used for offline short-circuits.
func Offline() *AppError {
	return &AppError{Kind: KindNetwork, Message: "you are offline", Err: ErrOffline}
}

// KindOf extracts the Kind from err, classifying it first if needed.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

// Fixed, non-leaking messages shown to end users, one per kind. Raw remote
// store text never reaches the UI.
var userMessages = map[Kind]string{
	KindAuth:       "Your session has expired. Please sign in again.",
	KindNetwork:    "Connection problem. Check your network and try again.",
	KindPermission: "You do not have access to this data.",
	KindValidation: "The change was rejected. Please review the values and try again.",
	KindUnknown:    "Something went wrong. Please try again.",
}

// MsgOffline is shown when a mutation is rejected before any network attempt.
const MsgOffline = "You are offline. Reconnect to make changes."

// UserMessage maps any error to the fixed message for its kind.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrOffline) {
		return MsgOffline
	}
	return userMessages[KindOf(err)]
}
