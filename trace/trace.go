// Package trace records and replays raw controller packets, for
// debugging touch issues away from the hardware.
//
// A capture is a CBOR stream: a header followed by one record per
// packet. Integer keys keep captures compact enough for long sessions
// on small flash filesystems.
package trace

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Version is the capture format version written by NewWriter.
const Version = 1

const magic = "tt21100"

type header struct {
	Magic   string `cbor:"1,keyasint"`
	Version int    `cbor:"2,keyasint"`
}

type record struct {
	Micros uint64 `cbor:"1,keyasint"`
	Data   []byte `cbor:"2,keyasint"`
}

// Packet is one captured packet. Elapsed is the time since the start
// of the recording.
type Packet struct {
	Elapsed time.Duration
	Data    []byte
}

// Writer appends packets to a capture stream.
type Writer struct {
	enc   *cbor.Encoder
	start time.Time
}

// NewWriter writes a capture header to w and returns a Writer for its
// packets.
func NewWriter(w io.Writer) (*Writer, error) {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	enc := mode.NewEncoder(w)
	if err := enc.Encode(header{Magic: magic, Version: Version}); err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	return &Writer{enc: enc, start: time.Now()}, nil
}

// Write appends pkt, stamped with the time since the writer was
// created.
func (w *Writer) Write(pkt []byte) error {
	rec := record{
		Micros: uint64(time.Since(w.start).Microseconds()),
		Data:   pkt,
	}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	return nil
}

// Reader reads packets from a capture stream.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader validates the capture header of r and returns a Reader for
// its packets.
func NewReader(r io.Reader) (*Reader, error) {
	mode, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		return nil, err
	}
	dec := mode.NewDecoder(r)
	var h header
	if err := dec.Decode(&h); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("trace: header: %w", err)
	}
	if h.Magic != magic {
		return nil, errors.New("trace: not a capture file")
	}
	if h.Version != Version {
		return nil, fmt.Errorf("trace: unsupported version %d", h.Version)
	}
	return &Reader{dec: dec}, nil
}

// Next returns the next captured packet. It returns io.EOF at the end
// of the capture.
func (r *Reader) Next() (Packet, error) {
	var rec record
	if err := r.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return Packet{}, io.EOF
		}
		return Packet{}, fmt.Errorf("trace: %w", err)
	}
	return Packet{
		Elapsed: time.Duration(rec.Micros) * time.Microsecond,
		Data:    rec.Data,
	}, nil
}
