package call

import "fmt"

// The three failure classes the call layer distinguishes:
//
//   - MediaAcquisitionError: device/permission failure. Aborts the current
//     attempt only; the user is offered a retry.
//   - StorageError: a relay publish/fetch failed. Transient by contract; the
//     operation is retried on the next poll tick and never kills the process.
//   - MalformedSignalError: a payload that does not deserialize. The signal
//     is dropped (and still marked handled) without aborting the session.
//
// A well-formed signal arriving in a state that does not expect it is not an
// error at all; it is silently marked handled.

type MediaAcquisitionError struct {
	Err error
}

func (e *MediaAcquisitionError) Error() string {
	return fmt.Sprintf("media acquisition failed: %v", e.Err)
}

func (e *MediaAcquisitionError) Unwrap() error { return e.Err }

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("relay %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

type MalformedSignalError struct {
	SignalID int64
	Err      error
}

func (e *MalformedSignalError) Error() string {
	return fmt.Sprintf("malformed signal %d: %v", e.SignalID, e.Err)
}

func (e *MalformedSignalError) Unwrap() error { return e.Err }
