package resilience

import "errors"

var (
	// ErrTimeout means the caller stopped waiting; the remote outcome is unknown.
	ErrTimeout            = errors.New("operation timed out")
	ErrNoHealthyEndpoints = errors.New("no healthy endpoints")
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	var p *permanentError
	if errors.As(err, &p) {
		return err
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
