package api

import (
	"encoding/json"
	"strings"
)

// PatchOp is the operation kind of a Patch.
type PatchOp string

const (
	OpAdd     PatchOp = "add"
	OpRemove  PatchOp = "remove"
	OpReplace PatchOp = "replace"
)

// Patch is one graph-level edit addressed into the Digraph. Paths are
// segment lists such as ["nodes", "<id>", "data", "initial"] or
// ["edges", "<id>"]. Patches in a batch apply sequentially and statefully
// to an in-memory copy of the digraph; the returned text edits are always
// computed against the original, unmodified source.
type Patch struct {
	Op    PatchOp         `json:"op"`
	Path  []string        `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// PathString renders the path for error messages.
func (p Patch) PathString() string {
	return strings.Join(p.Path, ".")
}

// TextEdit replaces the half-open byte range [Start, End) of the original
// source with NewText. Start == End is a pure insertion. Edits within one
// batch never overlap and are ordered by Start.
type TextEdit struct {
	Start   uint32 `json:"start"`
	End     uint32 `json:"end"`
	NewText string `json:"newText"`
}

// ErrorKind names one class of extraction degradation.
type ErrorKind string

const (
	ErrStateUnhandled              ErrorKind = "state_unhandled"
	ErrStatePropertyUnhandled      ErrorKind = "state_property_unhandled"
	ErrStatePropertyInvalid        ErrorKind = "state_property_invalid"
	ErrStateTypeInvalid            ErrorKind = "state_type_invalid"
	ErrStateHistoryInvalid         ErrorKind = "state_history_invalid"
	ErrTransitionPropertyUnhandled ErrorKind = "transition_property_unhandled"
	ErrTransitionTargetUnresolved  ErrorKind = "transition_target_unresolved"
	ErrActionUnhandled             ErrorKind = "action_unhandled"
	ErrPropertyKeyUnhandled        ErrorKind = "property_key_unhandled"
	ErrPropertyKeyNoRoundtrip      ErrorKind = "property_key_no_roundtrip"
	ErrPropertyUnhandled           ErrorKind = "property_unhandled"
)

// ExtractError records one piece of machine configuration the extractor
// could not understand. Extraction accumulates these and keeps going; it
// never aborts on input shape.
type ExtractError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message,omitempty"`
	// Start and End are the byte range of the offending literal.
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

func (e ExtractError) String() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}
