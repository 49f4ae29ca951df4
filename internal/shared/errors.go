package shared

import "errors"

// ErrSessionRequired occurs when a session-scoped call has no session id.
var ErrSessionRequired = errors.New("session id required")
