// Package registry implements the component registry: a flat table from
// wire id to a capability record of function pointers, rather than an
// inheritance hierarchy (§3, §9 "component polymorphism"). The core never
// knows what a component's Go type is; it only calls through the record.
package registry

import "github.com/andersfylling/tickforge/internal/ids"

// Mode is a component's replication mode (§3).
type Mode uint8

const (
	// Once components replicate on spawn and explicit change only: no
	// interpolation on remote clients, no rollback-based correction on
	// predicted clients.
	Once Mode = iota
	// Full components replicate every tick they change: remote clients
	// interpolate between samples, predicted clients test for rollback.
	Full
)

// Value is an opaque component value carried through the registry as
// interface{} so the registry itself stays free of any particular
// component type. Descriptors recover the concrete type in their callbacks.
type Value = any

// Descriptor is the capability record for one registered component (§3, §6).
// Serialize/Deserialize are required; every other field is optional and
// nil-checked by callers — a missing ShouldRollback means "differ bit-exact
// triggers rollback" (§4.6 step 3), a missing DeltaEncode means "always
// encode full" (§9 Open Questions).
type Descriptor struct {
	WireID ids.ComponentID
	Mode   Mode

	Serialize   func(v Value, out []byte) []byte
	Deserialize func(in []byte) (Value, error)

	DeltaEncode func(old, new Value, out []byte) []byte
	DeltaDecode func(old Value, in []byte) (Value, error)

	ShouldRollback func(old, new Value) bool
	Interpolate    func(a, b Value, u float64) Value
	Correct        func(from, to Value, u float64) Value
}

// Registry maps stable wire ids to their descriptor. It is built once at
// startup and treated as immutable configuration thereafter (§5
// "Shared resources"); all lookups are safe for concurrent readers.
type Registry struct {
	byID map[ids.ComponentID]Descriptor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[ids.ComponentID]Descriptor)}
}

// Register adds a descriptor, keyed by its WireID. Registering the same
// WireID twice overwrites the previous descriptor — callers are expected
// to finish registration before connecting any peer.
func (r *Registry) Register(d Descriptor) {
	r.byID[d.WireID] = d
}

// Lookup returns the descriptor for a wire id, or false if unregistered
// (an unknown component id on the wire is a protocol error, §4.1/§7).
func (r *Registry) Lookup(id ids.ComponentID) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Encode serializes a value through its descriptor, falling back to full
// encoding whenever a delta baseline is unavailable or the descriptor has
// no delta codec (§4.5 step 4).
func (r *Registry) Encode(id ids.ComponentID, value Value, baseline Value, hasBaseline bool, out []byte) ([]byte, bool, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, false, ErrUnknownComponent
	}
	if hasBaseline && d.DeltaEncode != nil {
		return d.DeltaEncode(baseline, value, out), true, nil
	}
	return d.Serialize(value, out), false, nil
}

// Decode deserializes a value through its descriptor, applying the delta
// codec against baseline when isDelta is set.
func (r *Registry) Decode(id ids.ComponentID, in []byte, baseline Value, isDelta bool) (Value, error) {
	d, ok := r.byID[id]
	if !ok {
		return nil, ErrUnknownComponent
	}
	if isDelta {
		if d.DeltaDecode == nil {
			return nil, ErrNoDeltaCodec
		}
		return d.DeltaDecode(baseline, in)
	}
	return d.Deserialize(in)
}
