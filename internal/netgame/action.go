package netgame

// Action is the wire-level input-state sample for one owned entity: a
// signed move direction and a jump flag, matching the input package's
// opaque []byte Action contract (§4.4, §6).
//
//	byte 0: move direction, -1/0/1
//	byte 1: jump flag, 0/1
type Action struct {
	Move int8
	Jump bool
}

// Encode packs an Action into its two-byte wire form.
func (a Action) Encode() []byte {
	jump := byte(0)
	if a.Jump {
		jump = 1
	}
	return []byte{byte(a.Move), jump}
}

// DecodeAction parses the wire form produced by Encode. A short or empty
// buffer decodes as the neutral action (no move, no jump), matching the
// server buffer's "most recent received input" extrapolation policy
// (§4.4) degrading gracefully rather than panicking.
func DecodeAction(in []byte) Action {
	var a Action
	if len(in) > 0 {
		a.Move = int8(in[0])
	}
	if len(in) > 1 {
		a.Jump = in[1] != 0
	}
	return a
}
