package registry

import (
	"errors"
	"fmt"
)

// ErrorKind classifies registry failures.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindTimeout
	KindRateLimited
	KindNotFound
)

// Error is a structured registry failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("registry: not found: %s", e.Op)
	case KindRateLimited:
		return fmt.Sprintf("registry: rate limited: %s", e.Op)
	case KindTimeout:
		return fmt.Sprintf("registry: timeout: %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("registry: %s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a registry not-found error
func IsNotFound(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == KindNotFound
}

// IsRegistryError reports whether err originated in the registry client
func IsRegistryError(err error) bool {
	var re *Error
	return errors.As(err, &re)
}

func notFound(op string) *Error {
	return &Error{Kind: KindNotFound, Op: op}
}

func rateLimited(op string) *Error {
	return &Error{Kind: KindRateLimited, Op: op}
}

func netErr(op string, err error) *Error {
	return &Error{Kind: KindNetwork, Op: op, Err: err}
}

func timeoutErr(op string, err error) *Error {
	return &Error{Kind: KindTimeout, Op: op, Err: err}
}
