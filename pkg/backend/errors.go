package backend

import "errors"

// Kind classifies why a backend start failed, per the error taxonomy the
// coordinator uses to decide whether a reservation and tentative registry
// entry must be rolled back.
type Kind string

const (
	KindLaunchFailed   Kind = "launch-failed"
	KindSSHFailed      Kind = "ssh-failed"
	KindDockerFailed   Kind = "docker-failed"
	KindHealthTimeout  Kind = "health-timeout"
)

// Error wraps an underlying failure with its Kind so callers can branch on
// it with errors.As without parsing message strings.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + string(e.Kind)
	}
	return e.Op + ": " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err (or anything it wraps) is a backend Error of
// the given kind.
func IsKind(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}
