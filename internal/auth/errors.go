package auth

import "errors"

// The resolver maps every failure to one of these fixed client-facing
// messages. The text is part of the external contract: callers match on
// it, so it must stay stable across causes. External-lookup failures are
// deliberately collapsed (a storage fault reads the same as a genuine
// not-found) so callers cannot probe which service IDs exist.
const (
	MsgNotAuthenticated   = "Not authenticated"
	MsgTokenNotValid      = "Invalid token: signature, api token is not valid"
	MsgIssuerNotProvided  = "Invalid token: iss field not provided"
	MsgServiceIDWrongType = "Invalid token: service id is not the right data type"
	MsgServiceNotFound    = "Invalid token: service not found"
	MsgServiceArchived    = "Invalid token: service is archived"
	MsgServiceHasNoKeys   = "Invalid token: service has no API keys"
	MsgAPITokenNotFound   = "Invalid token: signature, api token not found"
	MsgAPIKeyRevoked      = "Invalid token: API key revoked"
	MsgSystemClock        = "Error: Your system clock must be accurate to within 30 seconds"
)

// Error is an authentication rejection carrying its fixed client-facing
// message. No internal error detail ever crosses this boundary.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

func reject(message string) error {
	return &Error{Message: message}
}

// RejectionMessage returns the client-facing message for a resolver error.
// Anything that is not an *Error falls back to the generic rejection so
// unexpected failures never leak detail.
func RejectionMessage(err error) string {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	return MsgNotAuthenticated
}
