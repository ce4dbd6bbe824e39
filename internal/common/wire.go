package common

import "fmt"

// WireError is the decoded shape of a structured error payload returned by
// the remote store's REST surface. Code carries a Postgres-style SQLSTATE
// when the failure came from a constraint or row policy.
//
// Decoding happens once, at the API boundary; nothing deeper in the stack
// branches on raw response bodies.
type WireError struct {
	Status  int    // HTTP status of the response
	Code    string // SQLSTATE or store-specific code, may be empty
	Message string // raw store message, never shown to end users
	Details string
}

func (e *WireError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote store error %s (http %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("remote store error (http %d): %s", e.Status, e.Message)
}

// SQLSTATE codes the classifier cares about.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeRLSDenied           = "42501"
)

// transientWireCodes are connection-level SQLSTATEs treated as retryable.
var transientWireCodes = map[string]struct{}{
	"08000": {}, // connection_exception
	"08003": {}, // connection_does_not_exist
	"08006": {}, // connection_failure
	"57P01": {}, // admin_shutdown
}

// AuthError is the decoded shape of a failure from the auth endpoints.
type AuthError struct {
	Status  int
	Code    string // invalid_credentials, email_not_confirmed, user_already_exists, ...
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error %s (http %d): %s", e.Code, e.Status, e.Message)
}

// Auth failure codes with dedicated classification messages.
const (
	AuthCodeInvalidCredentials = "invalid_credentials"
	AuthCodeEmailNotConfirmed  = "email_not_confirmed"
	AuthCodeUserExists         = "user_already_exists"
)
