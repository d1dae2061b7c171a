// Package uinput forwards tracked contacts to the Linux input
// subsystem as a virtual multi-touch device, using the type B slot
// protocol.
package uinput

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/jessebraham/tt21100/touch"
)

// ioctl requests, from linux/uinput.h.
const (
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiDevSetup   = 0x405c5503
	uiAbsSetup   = 0x401c5504
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetPropBit = 0x4004556e
)

// Event types and codes, from linux/input-event-codes.h.
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	synReport = 0x00
	btnTouch  = 0x14a

	absX            = 0x00
	absY            = 0x01
	absMTSlot       = 0x2f
	absMTPositionX  = 0x35
	absMTPositionY  = 0x36
	absMTTrackingID = 0x39
	absMTPressure   = 0x3a

	propDirect = 0x01
	busI2C     = 0x18
)

const nameLen = 80

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type devSetup struct {
	ID           inputID
	Name         [nameLen]byte
	FFEffectsMax uint32
}

type absInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

type absSetup struct {
	Code uint16
	_    uint16
	Info absInfo
}

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// Device is a virtual touchscreen.
type Device struct {
	f      *os.File
	next   int32
	active int
}

// Open creates a virtual touchscreen with the given panel size and
// contact capacity. It requires write access to /dev/uinput.
func Open(name string, width, height, slots int) (*Device, error) {
	if len(name) >= nameLen {
		return nil, fmt.Errorf("uinput: name %q too long", name)
	}
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("uinput: %w", err)
	}
	d := &Device{f: f}
	if err := d.setup(name, width, height, slots); err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

func (d *Device) setup(name string, width, height, slots int) error {
	fd := int(d.f.Fd())
	bits := []struct {
		req uint
		val int
	}{
		{uiSetEvBit, evKey},
		{uiSetEvBit, evAbs},
		{uiSetKeyBit, btnTouch},
		{uiSetPropBit, propDirect},
	}
	for _, b := range bits {
		if err := unix.IoctlSetInt(fd, b.req, b.val); err != nil {
			return fmt.Errorf("uinput: set bit %d: %w", b.val, err)
		}
	}
	axes := []absSetup{
		{Code: absX, Info: absInfo{Maximum: int32(width) - 1}},
		{Code: absY, Info: absInfo{Maximum: int32(height) - 1}},
		{Code: absMTSlot, Info: absInfo{Maximum: int32(slots) - 1}},
		{Code: absMTPositionX, Info: absInfo{Maximum: int32(width) - 1}},
		{Code: absMTPositionY, Info: absInfo{Maximum: int32(height) - 1}},
		{Code: absMTTrackingID, Info: absInfo{Maximum: 0xffff}},
		{Code: absMTPressure, Info: absInfo{Maximum: 0xff}},
	}
	for _, a := range axes {
		if err := ioctl(fd, uiAbsSetup, unsafe.Pointer(&a)); err != nil {
			return fmt.Errorf("uinput: axis %#x: %w", a.Code, err)
		}
	}
	setup := devSetup{
		ID: inputID{Bustype: busI2C, Vendor: 0x04b4, Product: 0x2100, Version: 1},
	}
	copy(setup.Name[:], name)
	if err := ioctl(fd, uiDevSetup, unsafe.Pointer(&setup)); err != nil {
		return fmt.Errorf("uinput: device setup: %w", err)
	}
	if err := ioctl(fd, uiDevCreate, nil); err != nil {
		return fmt.Errorf("uinput: create: %w", err)
	}
	return nil
}

// Emit forwards one frame of tracked events, closed by a SYN_REPORT.
// Down events allocate a fresh tracking id for their slot, Up events
// release it.
func (d *Device) Emit(events []touch.Event) error {
	evs := d.frame(events)
	if len(evs) == 0 {
		return nil
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&evs[0])), len(evs)*int(unsafe.Sizeof(evs[0])))
	if _, err := d.f.Write(buf); err != nil {
		return fmt.Errorf("uinput: %w", err)
	}
	return nil
}

func (d *Device) frame(events []touch.Event) []inputEvent {
	if len(events) == 0 {
		return nil
	}
	evs := make([]inputEvent, 0, 6*len(events)+2)
	wasActive := d.active > 0
	for _, e := range events {
		evs = append(evs, inputEvent{Type: evAbs, Code: absMTSlot, Value: int32(e.ID)})
		switch e.State {
		case touch.Down:
			d.next++
			d.active++
			evs = append(evs, inputEvent{Type: evAbs, Code: absMTTrackingID, Value: d.next})
			evs = d.position(evs, e)
		case touch.Move:
			evs = d.position(evs, e)
		case touch.Up:
			d.active--
			evs = append(evs, inputEvent{Type: evAbs, Code: absMTTrackingID, Value: -1})
		}
	}
	if active := d.active > 0; active != wasActive {
		val := int32(0)
		if active {
			val = 1
		}
		evs = append(evs, inputEvent{Type: evKey, Code: btnTouch, Value: val})
	}
	return append(evs, inputEvent{Type: evSyn, Code: synReport})
}

// position reports a contact position on both the slot's axes and the
// single touch axes. Single touch clients follow the most recently
// moved contact.
func (d *Device) position(evs []inputEvent, e touch.Event) []inputEvent {
	return append(evs,
		inputEvent{Type: evAbs, Code: absMTPositionX, Value: int32(e.Pos.X)},
		inputEvent{Type: evAbs, Code: absMTPositionY, Value: int32(e.Pos.Y)},
		inputEvent{Type: evAbs, Code: absMTPressure, Value: int32(e.Pressure)},
		inputEvent{Type: evAbs, Code: absX, Value: int32(e.Pos.X)},
		inputEvent{Type: evAbs, Code: absY, Value: int32(e.Pos.Y)},
	)
}

func (d *Device) Close() error {
	if err := ioctl(int(d.f.Fd()), uiDevDestroy, nil); err != nil {
		d.f.Close()
		return fmt.Errorf("uinput: destroy: %w", err)
	}
	return d.f.Close()
}

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg)); errno != 0 {
		return errno
	}
	return nil
}
