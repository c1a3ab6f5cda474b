package registry

import "errors"

var (
	// ErrUnknownComponent is returned for a wire id with no registered
	// descriptor — an unknown-channel-class protocol error (§4.1, §7):
	// callers drop the offending frame and increment a counter, no panic.
	ErrUnknownComponent = errors.New("registry: unknown component wire id")
	// ErrNoDeltaCodec is returned when a delta payload arrives for a
	// component with no DeltaDecode registered.
	ErrNoDeltaCodec = errors.New("registry: component has no delta codec")
	// ErrShortBuffer is returned by a descriptor's Deserialize/DeltaDecode
	// when the input is too short to hold the component's encoding.
	ErrShortBuffer = errors.New("registry: buffer too short for component")
)
