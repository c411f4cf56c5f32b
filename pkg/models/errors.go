package models

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNetwork
	KindHTTP
	KindParse
	KindUnsupported
	KindPermissionDenied
	KindSerialization
	KindMissingCredential
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrNetwork           = errors.New("network error")
	ErrHTTP              = errors.New("http error")
	ErrParse             = errors.New("parse error")
	ErrUnsupported       = errors.New("unsupported operation")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrSerialization     = errors.New("serialization error")
	ErrMissingCredential = errors.New("missing credential")
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "NetworkError"
	case KindHTTP:
		return "HttpError"
	case KindParse:
		return "ParseError"
	case KindUnsupported:
		return "UnsupportedOperation"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindSerialization:
		return "SerializationError"
	case KindMissingCredential:
		return "MissingCredential"
	default:
		return "Unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindHTTP:
		return ErrHTTP
	case KindParse:
		return ErrParse
	case KindUnsupported:
		return ErrUnsupported
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindSerialization:
		return ErrSerialization
	case KindMissingCredential:
		return ErrMissingCredential
	default:
		return nil
	}
}

// Error is the error type returned across the provider boundary.
type Error struct {
	Kind     ErrorKind
	Provider ProviderID
	// Status is set for KindHTTP only.
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := "error"
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Kind == KindHTTP {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Provider != "" {
		msg = string(e.Provider) + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus returns the status carried by an HTTP error.
func HTTPStatus(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindHTTP {
		return e.Status, true
	}
	return 0, false
}

func NewNetworkError(p ProviderID, err error) error {
	return &Error{Kind: KindNetwork, Provider: p, Err: err}
}

func NewHTTPError(p ProviderID, status int, detail string) error {
	e := &Error{Kind: KindHTTP, Provider: p, Status: status}
	if detail != "" {
		e.Err = errors.New(detail)
	}
	return e
}

func NewParseError(p ProviderID, format string, args ...any) error {
	return &Error{Kind: KindParse, Provider: p, Err: fmt.Errorf(format, args...)}
}

func NewUnsupportedError(p ProviderID, format string, args ...any) error {
	return &Error{Kind: KindUnsupported, Provider: p, Err: fmt.Errorf(format, args...)}
}

func NewSerializationError(p ProviderID, err error) error {
	return &Error{Kind: KindSerialization, Provider: p, Err: err}
}

func NewPermissionDenied(err error) error {
	return &Error{Kind: KindPermissionDenied, Err: err}
}

func NewMissingCredential(p ProviderID) error {
	return &Error{Kind: KindMissingCredential, Provider: p}
}
