// Package trace is an optional debug/test-tooling session recorder: it
// CBOR-encodes captured replication and input frames to a file for
// offline reconciliation debugging, using github.com/fxamacker/cbor/v2
// (carried by xendarboh-katzenpost). It is deliberately kept off the
// per-tick hot path the wire package owns (§6 wire formats stay
// hand-rolled encoding/binary, see DESIGN.md) — this only ever runs when
// a caller opts in via Config.TraceFile.
package trace

import (
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Kind tags what a Record captured.
type Kind uint8

const (
	KindReplication Kind = iota
	KindInput
	KindReconcile
)

// Record is one captured event, serialized as a CBOR map so the file
// stays self-describing even if a future build adds fields.
type Record struct {
	At     time.Time `cbor:"at"`
	Kind   Kind      `cbor:"kind"`
	Peer   uint64    `cbor:"peer"`
	Tick   uint16    `cbor:"tick"`
	Detail string    `cbor:"detail,omitempty"`
	Frame  []byte    `cbor:"frame,omitempty"`
}

// Recorder appends CBOR-encoded Records to an underlying writer, one per
// call to Write. Safe only for single-writer use, matching the input
// buffers' single-writer/single-reader discipline (§5).
type Recorder struct {
	w   io.WriteCloser
	enc *cbor.Encoder
}

// Open creates (or truncates) the file at path and returns a Recorder
// writing to it.
func Open(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Recorder{w: f, enc: cbor.NewEncoder(f)}, nil
}

// Write appends one record. Records are length-delimited by CBOR's own
// self-describing encoding, so a reader can Decode a stream of them
// without a separate framing layer.
func (r *Recorder) Write(rec Record) error {
	return r.enc.Encode(rec)
}

// Close flushes and closes the underlying file.
func (r *Recorder) Close() error { return r.w.Close() }

// Reader decodes a stream of Records previously written by a Recorder.
type Reader struct {
	dec *cbor.Decoder
}

// OpenReader opens path for reading back a recorded session.
func OpenReader(path string) (*Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return &Reader{dec: cbor.NewDecoder(f)}, f, nil
}

// Next decodes the next Record, returning io.EOF once the stream is exhausted.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
