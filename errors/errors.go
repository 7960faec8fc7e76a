// Package errors defines the structured failures produced across the
// facade/backend boundary.
//
// None of these errors ever reach application code through the public
// client API; they are routed to the diagnostic logger. They are exported
// so adapters, custom transports and tests can classify failures.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in a call's lifecycle the error occurred
type Phase string

const (
	PhaseValidate Phase = "validate" // identifier and argument checks
	PhaseConvert  Phase = "convert"  // host value to Value conversion
	PhaseEncode   Phase = "encode"   // Value to wire
	PhaseDecode   Phase = "decode"   // wire to Value
	PhaseDispatch Phase = "dispatch" // channel transport
	PhaseAdapter  Phase = "adapter"  // backend execution
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindUnserializable   Kind = "unserializable"
	KindMalformedPayload Kind = "malformed_payload"
	KindUnimplemented    Kind = "unimplemented"
	KindPlatform         Kind = "platform"
	KindNotInitialized   Kind = "not_initialized"
)

// Error is the structured error type used throughout the SDK
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Method string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Method != "" {
		b.WriteString(" in ")
		b.WriteString(e.Method)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target with an empty
// Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks against a kind regardless of phase.
var (
	ErrInvalidInput     = &Error{Kind: KindInvalidInput}
	ErrUnserializable   = &Error{Kind: KindUnserializable}
	ErrMalformedPayload = &Error{Kind: KindMalformedPayload}
	ErrUnimplemented    = &Error{Kind: KindUnimplemented}
	ErrNotInitialized   = &Error{Kind: KindNotInitialized}
)

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the element path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Method sets the channel method name
func (b *Builder) Method(m string) *Builder {
	b.err.Method = m
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

// InvalidInput reports a blank or missing required argument.
func InvalidInput(method, argument string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidInput,
		Method: method,
		Path:   []string{argument},
		Detail: "argument must not be blank",
	}
}

// Unimplemented reports a method the receiving adapter does not support.
func Unimplemented(method string) *Error {
	return &Error{
		Phase:  PhaseAdapter,
		Kind:   KindUnimplemented,
		Method: method,
		Detail: "method not implemented by adapter",
	}
}

// Malformed reports an undecodable payload at the given byte offset.
func Malformed(offset int, msg string, args ...any) *Error {
	return New(PhaseDecode, KindMalformedPayload).
		Detail("offset %d: %s", offset, fmt.Sprintf(msg, args...)).
		Build()
}

// WithPath returns a copy of err with elem prepended to its path when err is
// an *Error, and err unchanged otherwise.
func WithPath(err error, elem string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	c := *e
	c.Path = append([]string{elem}, e.Path...)
	return &c
}
