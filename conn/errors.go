package conn

import "github.com/pkg/errors"

// Result error taxonomy, §4.2 "Error conditions". ErrWrongState is
// wrapped with github.com/pkg/errors (see wrongState) so callers keep a
// stack trace and still match it with errors.Is/errors.Cause; the other
// sentinels below are returned as they are.
var (
	ErrWrongState       = errors.New("wrong state for requested operation")
	ErrNoLinkAssigned   = errors.New("no link assigned")
	ErrBadArgument      = errors.New("bad argument")
	ErrOutOfMemory      = errors.New("allocation or task-spawn failure")
	ErrContextCancelled = errors.New("context cancelled")
	ErrGeneralFailure   = errors.New("general failure")
	ErrNotSupported     = errors.New("operation not supported")
)

// wrongState wraps ErrWrongState with the observed/expected states for
// diagnostics, matching the original's verbose state-mismatch logging.
func wrongState(op string, got State) error {
	return errors.Wrapf(ErrWrongState, "%s: connection in state %s", op, got)
}
