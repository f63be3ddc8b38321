package reconciliation

import "errors"

// FailureKind classifies reconciliation failures for logs, metrics and the audit trail
type FailureKind string

const (
	FailureLookup     FailureKind = "LOOKUP"
	FailureRemote     FailureKind = "REMOTE"
	FailurePersist    FailureKind = "PERSIST"
	FailureValidation FailureKind = "VALIDATION"
	FailureUnknown    FailureKind = "UNKNOWN"

	// FailureUnparseable marks queue payloads that are not a notification request
	FailureUnparseable FailureKind = "UNPARSEABLE"
)

// LookupError means the reference does not resolve to a local order
type LookupError struct {
	Reference string
	Err       error
}

func (e *LookupError) Error() string {
	msg := "order lookup failed for reference " + e.Reference
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LookupError) Unwrap() error { return e.Err }

// Is matches any *LookupError when the target reference is empty
func (e *LookupError) Is(target error) bool {
	t, ok := target.(*LookupError)
	if !ok {
		return false
	}
	return t.Reference == "" || t.Reference == e.Reference
}

// RemoteError means the provider call failed
type RemoteError struct {
	Query string
	Err   error
}

func (e *RemoteError) Error() string {
	msg := "pagseguro lookup failed for " + e.Query
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Is matches any *RemoteError when the target query is empty
func (e *RemoteError) Is(target error) bool {
	t, ok := target.(*RemoteError)
	if !ok {
		return false
	}
	return t.Query == "" || t.Query == e.Query
}

// PersistError means a write while applying the transition failed. Nothing was committed.
type PersistError struct {
	Op        string
	Reference string
	Err       error
}

func (e *PersistError) Error() string {
	msg := "failed to " + e.Op + " for reference " + e.Reference
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PersistError) Unwrap() error { return e.Err }

// Is matches any *PersistError when the target op is empty
func (e *PersistError) Is(target error) bool {
	t, ok := target.(*PersistError)
	if !ok {
		return false
	}
	return t.Op == "" || t.Op == e.Op
}

// KindOf classifies err
func KindOf(err error) FailureKind {
	var lookupErr *LookupError
	var remoteErr *RemoteError
	var persistErr *PersistError
	switch {
	case errors.As(err, &lookupErr):
		return FailureLookup
	case errors.As(err, &remoteErr):
		return FailureRemote
	case errors.As(err, &persistErr):
		return FailurePersist
	case errors.Is(err, ErrEmptyReference), errors.Is(err, ErrUnsupportedNotificationType):
		return FailureValidation
	default:
		return FailureUnknown
	}
}
