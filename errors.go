package kura

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrProtocolOrder reports records presented out of the mandatory order,
	// such as components before entities or a duplicated field.
	ErrProtocolOrder = errors.New("protocol order violation")
	// ErrMissingField reports a record that needs a field which was never
	// decoded, such as chunk sets before tags.
	ErrMissingField = errors.New("missing field")
	// ErrUnmappedChunkset reports a chunk set index with no tag mapping.
	ErrUnmappedChunkset = errors.New("chunk set has no tag mapping")
	// ErrTagLengthMismatch reports decoded tag buffers of unequal length.
	ErrTagLengthMismatch = errors.New("tag buffers differ in length")
	// ErrUncommittedRange reports reserved component slots the codec did not
	// initialize.
	ErrUncommittedRange = errors.New("component slots left uninitialized")
	// ErrUnknownType reports a type name or layout the registry cannot
	// resolve.
	ErrUnknownType = errors.New("unknown type")
	// ErrReentrant reports a reconstruction started while another one is
	// running against the same world.
	ErrReentrant = errors.New("reconstruction already in progress")
	// ErrCodec reports a failure returned by the codec itself.
	ErrCodec = errors.New("codec failure")
)

// DecodeError describes why reconstruction of a stream stopped.
//
// Kind is one of the package's sentinel errors and can be matched with
// errors.Is; the underlying cause, if any, is available through Cause and
// errors.Unwrap.
type DecodeError struct {
	Kind      error
	cause     error
	Op        string
	Archetype int // registry index, -1 before the description resolved
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("kura: decode %s", e.Op)
	if e.Archetype >= 0 {
		msg += fmt.Sprintf(" (archetype %d)", e.Archetype)
	}
	msg += ": " + e.Kind.Error()
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Cause returns the underlying error, following the github.com/pkg/errors
// convention.
func (e *DecodeError) Cause() error { return e.cause }

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *DecodeError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

func decodeError(kind error, op string, archetype int, cause error) *DecodeError {
	return &DecodeError{Kind: kind, Op: op, Archetype: archetype, cause: cause}
}
