// Package conn implements the Connection base type (§4.2): the shared
// lifecycle state machine, link management and hot-path entry points
// that every leaf bridge, wrapper bridge and group in this module
// builds on. Grounded on original_source/media-proxy/include/mesh/conn.h
// and src/mesh/conn.cc.
package conn

// Kind identifies which side of a link a Connection occupies. Set once
// at construction and never changes.
type Kind int

const (
	KindUndefined Kind = iota
	KindTransmitter
	KindReceiver
)

func (k Kind) String() string {
	switch k {
	case KindTransmitter:
		return "transmitter"
	case KindReceiver:
		return "receiver"
	default:
		return "undefined"
	}
}

// State is the Connection lifecycle state, §4.2.
type State int32

const (
	StateNotConfigured State = iota
	StateConfigured
	StateEstablishing
	StateActive
	StateSuspended
	StateClosing
	StateClosed
	StateDeleting
)

func (s State) String() string {
	switch s {
	case StateNotConfigured:
		return "not_configured"
	case StateConfigured:
		return "configured"
	case StateEstablishing:
		return "establishing"
	case StateActive:
		return "active"
	case StateSuspended:
		return "suspended"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateDeleting:
		return "deleting"
	default:
		return "unknown"
	}
}

// Status is derived from State for reporting purposes (§3).
type Status int

const (
	StatusInitial Status = iota
	StatusTransition
	StatusHealthy
	StatusFailure
	StatusShutdown
)

func (s Status) String() string {
	switch s {
	case StatusInitial:
		return "initial"
	case StatusTransition:
		return "transition"
	case StatusHealthy:
		return "healthy"
	case StatusFailure:
		return "failure"
	case StatusShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// statusFor derives the reported Status for terminal/transient phases.
// Subtypes may report something more specific (e.g. StatusFailure) for
// active/suspended, which is why Base.Status is not a pure function of
// state alone — see Base.Status and Base.SetStatusOverride.
func statusFor(s State) Status {
	switch s {
	case StateNotConfigured, StateConfigured:
		return StatusInitial
	case StateEstablishing, StateClosing:
		return StatusTransition
	case StateActive, StateSuspended:
		return StatusHealthy
	case StateClosed:
		return StatusShutdown
	case StateDeleting:
		return StatusShutdown
	default:
		return StatusFailure
	}
}
