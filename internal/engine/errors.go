package engine

import "fmt"

// Kind classifies an engine failure by what went wrong, not by which Go type
// produced it. Structural kinds abort the enclosing call; parameter-level
// kinds degrade to warnings.
type Kind string

const (
	// Track resolution.
	KindInvalidTarget   Kind = "invalid_target"
	KindAmbiguousTarget Kind = "ambiguous_target"
	KindNoSelection     Kind = "no_selection"

	// Device and catalog.
	KindDeviceNotFound    Kind = "device_not_found"
	KindDeviceLoadTimeout Kind = "device_load_timeout"
	KindAnchorNotFound    Kind = "anchor_not_found"
	KindPositioningFailed Kind = "positioning_failed"

	// Parameter resolution and value application.
	KindNoMatch         Kind = "no_match"
	KindInvalidValue    Kind = "invalid_value"
	KindUnsupportedMode Kind = "unsupported_mode"
	KindNoDisplayMatch  Kind = "no_display_match"
	KindApplyFailed     Kind = "apply_failed"

	// Input shape.
	KindMalformedStep   Kind = "malformed_step"
	KindMalformedUpdate Kind = "malformed_update"

	// Host adapter faults recovered at the orchestrator boundary.
	KindHostFault Kind = "host_fault"
)

// Error is a classified engine failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind from an error, defaulting to host_fault
// for errors that did not originate in the engine.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindHostFault
}
