package tt21100

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/jessebraham/tt21100/touch"
)

// Report is a decoded controller message: a *TouchReport, a
// *ButtonReport or a *StatusReport.
type Report interface {
	ImplementsReport()
}

func (*TouchReport) ImplementsReport()  {}
func (*ButtonReport) ImplementsReport() {}
func (*StatusReport) ImplementsReport() {}

// TouchReport is a set of contact records sharing one header.
type TouchReport struct {
	// Timestamp counts 100µs units and wraps.
	Timestamp uint16
	// Counter cycles through 0-3, incremented per report.
	Counter uint8
	// LargeObject is set while the controller suppresses a palm-sized
	// object.
	LargeObject bool
	// Noise is the noise effect level, 0-7.
	Noise   uint8
	Records []TouchRecord
}

// TouchRecord is a single contact within a touch report.
type TouchRecord struct {
	// ID is the controller-assigned slot, 0-31, stable while the
	// contact persists.
	ID int
	// Pos is the contact position in controller coordinates, 12 bits
	// per axis.
	Pos image.Point
	// Tip is set while the contact is on the surface; liftoff records
	// clear it.
	Tip   bool
	Event ContactEvent
	Type  ContactType
	// Pressure of the contact.
	Pressure int
	// Major is the length of the contact ellipse's major axis.
	Major int
	// Orientation of the major axis.
	Orientation int
}

// State reduces the record's wire flags to a contact lifecycle state:
// Up for liftoff records and records without tip contact, Down for
// fresh touchdowns, Move otherwise.
func (r TouchRecord) State() touch.State {
	switch {
	case r.Event == EventLiftoff || !r.Tip:
		return touch.Up
	case r.Event == EventTouchdown:
		return touch.Down
	default:
		return touch.Move
	}
}

// Contacts converts the report's records into the snapshot form a
// touch.Tracker consumes.
func (r *TouchReport) Contacts() []touch.Contact {
	contacts := make([]touch.Contact, 0, len(r.Records))
	for _, rec := range r.Records {
		contacts = append(contacts, touch.Contact{
			ID:       rec.ID,
			Pos:      rec.Pos,
			Pressure: rec.Pressure,
			State:    rec.State(),
		})
	}
	return contacts
}

// ContactEvent is the controller's transition report for one record.
type ContactEvent uint8

const (
	EventNone ContactEvent = iota
	EventTouchdown
	EventMove
	EventLiftoff
)

func (e ContactEvent) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventTouchdown:
		return "touchdown"
	case EventMove:
		return "move"
	case EventLiftoff:
		return "liftoff"
	default:
		return fmt.Sprintf("event(%d)", uint8(e))
	}
}

// ContactType classifies the object producing a contact.
type ContactType uint8

const (
	ContactFinger ContactType = iota
	ContactProximity
	ContactStylus
	ContactHover
	ContactGlove
)

// ButtonReport reports the capacitive button states.
type ButtonReport struct {
	Timestamp uint16
	// Buttons is the pressed mask, one bit per button.
	Buttons uint8
	// Signal holds the per-button sense levels.
	Signal [4]uint16
}

// Pressed reports whether button n, counting from 0, is pressed.
func (r *ButtonReport) Pressed(n int) bool {
	return r.Buttons&(1<<n) != 0
}

// StatusReport carries an out-of-band controller status code.
type StatusReport struct {
	Timestamp uint16
	Code      uint8
}

// Report ids, at byte 2 of every non-idle packet.
const (
	reportTouch  = 0x01
	reportButton = 0x03
	reportStatus = 0x04
)

// Packet sizes. Every packet begins with a little-endian length that
// counts the whole packet, length field included. An idle packet is the
// bare length field. Touch packets carry a 7 byte header followed by 10
// bytes per contact record.
const (
	lenPrefixLen   = 2
	idleLen        = 2
	touchHeaderLen = 7
	touchRecordLen = 10
	buttonLen      = 14
	statusLen      = 6
)

// Decode parses a raw packet as returned by ReadPacket, length prefix
// included. Unrecognized report ids yield an *UnknownReportError; the
// packet is otherwise intact and the caller may keep polling.
func Decode(pkt []byte) (Report, error) {
	if len(pkt) < lenPrefixLen {
		return nil, &TruncatedError{Want: lenPrefixLen, Got: len(pkt)}
	}
	// The length field is part of the packet; trust it over the
	// buffer size and ignore trailing bytes.
	n := int(binary.LittleEndian.Uint16(pkt))
	if n == idleLen {
		// An idle frame carries no report.
		return nil, ErrNoData
	}
	if n < lenPrefixLen+1 {
		return nil, &LengthError{Len: n}
	}
	if n > len(pkt) {
		return nil, &TruncatedError{Want: n, Got: len(pkt)}
	}
	pkt = pkt[:n]
	switch id := pkt[2]; id {
	case reportTouch:
		return decodeTouch(pkt)
	case reportButton:
		return decodeButton(pkt)
	case reportStatus:
		return decodeStatus(pkt)
	default:
		return nil, &UnknownReportError{ID: id}
	}
}

// Touch header layout:
//
//	0-1  packet length
//	2    report id
//	3-4  timestamp
//	5    bits 7:3 record count, bit 2 large object
//	6    bits 7:5 noise effect, bits 1:0 report counter
func decodeTouch(pkt []byte) (*TouchReport, error) {
	if len(pkt) < touchHeaderLen {
		return nil, &TruncatedError{Want: touchHeaderLen, Got: len(pkt)}
	}
	n := int(pkt[5] >> 3)
	if want := touchHeaderLen + n*touchRecordLen; len(pkt) < want {
		return nil, &TruncatedError{Want: want, Got: len(pkt)}
	}
	rep := &TouchReport{
		Timestamp:   binary.LittleEndian.Uint16(pkt[3:5]),
		LargeObject: pkt[5]&0x04 != 0,
		Noise:       pkt[6] >> 5,
		Counter:     pkt[6] & 0x03,
	}
	if n > 0 {
		rep.Records = make([]TouchRecord, 0, n)
	}
records:
	for i := 0; i < n; i++ {
		rec := decodeRecord(pkt[touchHeaderLen+i*touchRecordLen:])
		for _, prev := range rep.Records {
			if prev.ID == rec.ID {
				// Duplicate slot id; the first record wins.
				continue records
			}
		}
		rep.Records = append(rep.Records, rec)
	}
	return rep, nil
}

// Touch record layout:
//
//	0    bits 7:5 contact type
//	1    bits 7:3 slot id, bits 2:1 event, bit 0 tip
//	2-3  x, 12 bits
//	4-5  y, 12 bits
//	6    pressure
//	7-8  major axis length
//	9    orientation
func decodeRecord(b []byte) TouchRecord {
	return TouchRecord{
		ID:          int(b[1] >> 3),
		Type:        ContactType(b[0] >> 5),
		Tip:         b[1]&0x01 != 0,
		Event:       ContactEvent(b[1] >> 1 & 0x03),
		Pos:         image.Pt(int(binary.LittleEndian.Uint16(b[2:4])&0x0fff), int(binary.LittleEndian.Uint16(b[4:6])&0x0fff)),
		Pressure:    int(b[6]),
		Major:       int(binary.LittleEndian.Uint16(b[7:9])),
		Orientation: int(b[9]),
	}
}

// Button packet layout:
//
//	0-1  packet length
//	2    report id
//	3-4  timestamp
//	5    button mask, low nibble
//	6-13 four per-button signal levels
func decodeButton(pkt []byte) (*ButtonReport, error) {
	if len(pkt) < buttonLen {
		return nil, &TruncatedError{Want: buttonLen, Got: len(pkt)}
	}
	rep := &ButtonReport{
		Timestamp: binary.LittleEndian.Uint16(pkt[3:5]),
		Buttons:   pkt[5] & 0x0f,
	}
	for i := range rep.Signal {
		rep.Signal[i] = binary.LittleEndian.Uint16(pkt[6+2*i:])
	}
	return rep, nil
}

// Status packet layout:
//
//	0-1  packet length
//	2    report id
//	3-4  timestamp
//	5    status code
func decodeStatus(pkt []byte) (*StatusReport, error) {
	if len(pkt) < statusLen {
		return nil, &TruncatedError{Want: statusLen, Got: len(pkt)}
	}
	return &StatusReport{
		Timestamp: binary.LittleEndian.Uint16(pkt[3:5]),
		Code:      pkt[5],
	}, nil
}

// The append functions build wire packets for the Simulator and are
// the inverses of the decode functions above.

func appendTouch(b []byte, rep *TouchReport) []byte {
	n := len(rep.Records)
	b = binary.LittleEndian.AppendUint16(b, uint16(touchHeaderLen+n*touchRecordLen))
	b = append(b, reportTouch)
	b = binary.LittleEndian.AppendUint16(b, rep.Timestamp)
	meta := byte(n) << 3
	if rep.LargeObject {
		meta |= 0x04
	}
	b = append(b, meta, rep.Noise<<5|rep.Counter&0x03)
	for _, rec := range rep.Records {
		b = appendRecord(b, rec)
	}
	return b
}

func appendRecord(b []byte, rec TouchRecord) []byte {
	flags := byte(rec.ID)&0x1f<<3 | byte(rec.Event)&0x03<<1
	if rec.Tip {
		flags |= 0x01
	}
	b = append(b, byte(rec.Type)&0x07<<5, flags)
	b = binary.LittleEndian.AppendUint16(b, uint16(rec.Pos.X)&0x0fff)
	b = binary.LittleEndian.AppendUint16(b, uint16(rec.Pos.Y)&0x0fff)
	b = append(b, byte(rec.Pressure))
	b = binary.LittleEndian.AppendUint16(b, uint16(rec.Major))
	b = append(b, byte(rec.Orientation))
	return b
}

func appendButton(b []byte, rep *ButtonReport) []byte {
	b = binary.LittleEndian.AppendUint16(b, buttonLen)
	b = append(b, reportButton)
	b = binary.LittleEndian.AppendUint16(b, rep.Timestamp)
	b = append(b, rep.Buttons&0x0f)
	for _, sig := range rep.Signal {
		b = binary.LittleEndian.AppendUint16(b, sig)
	}
	return b
}

func appendStatus(b []byte, rep *StatusReport) []byte {
	b = binary.LittleEndian.AppendUint16(b, statusLen)
	b = append(b, reportStatus)
	b = binary.LittleEndian.AppendUint16(b, rep.Timestamp)
	b = append(b, rep.Code)
	return b
}
