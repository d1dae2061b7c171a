// Package tt21100 implements a driver for the TT21100 capacitive
// multi-touch controller, connected through I²C.
//
// The controller has no public datasheet; the protocol follows the
// vendor reference drivers:
//
// https://github.com/espressif/esp-bsp/blob/master/components/lcd_touch/esp_lcd_touch_tt21100
// https://github.com/adafruit/Adafruit_CircuitPython_TT21100
//
// Reports are read with pure I²C read transactions: a 2 byte read
// yields the length of the pending packet, a follow-up read of that
// length yields the packet itself. The controller answers an idle
// length of 2 when nothing is queued.
package tt21100

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Bus is the I²C transaction interface of the controller, implemented
// by i2c.Bus of periph.io and by sc18im.Port.
type Bus interface {
	Tx(addr uint16, w, r []byte) error
}

// Config describes a Device. The zero value selects the defaults.
type Config struct {
	// Addr is the device address. Zero selects 0x24, the controller
	// default.
	Addr uint16
	// MaxPoints is the largest number of contact records accepted per
	// touch report, at most 31. Zero selects 2, the most the stock
	// firmware reports.
	MaxPoints int
	// Width and Height describe the panel in controller units. Zero
	// selects 320x240.
	Width, Height int
	// SwapAxes exchanges x and y. It is applied before mirroring.
	SwapAxes bool
	// InvertX and InvertY mirror the respective axis.
	InvertX, InvertY bool
	// IRQ is the interrupt line, driven low while a report is
	// pending. Optional.
	IRQ gpio.PinIn
	// Reset is the active-low reset line. Optional.
	Reset gpio.PinOut
}

// Device is a connected controller. Its methods must not be called
// concurrently.
type Device struct {
	bus     Bus
	cfg     Config
	scratch []byte
}

// New verifies communication with the controller on bus and returns a
// device for it. Any reports queued from before, such as a finger held
// on the panel during boot, are drained.
func New(bus Bus, cfg Config) (*Device, error) {
	if cfg.Addr == 0 {
		cfg.Addr = defaultAddr
	}
	if cfg.MaxPoints == 0 {
		cfg.MaxPoints = 2
	}
	if cfg.MaxPoints < 0 || cfg.MaxPoints > 31 {
		return nil, fmt.Errorf("tt21100: invalid MaxPoints %d", cfg.MaxPoints)
	}
	if cfg.Width == 0 {
		cfg.Width = 320
	}
	if cfg.Height == 0 {
		cfg.Height = 240
	}
	d := &Device{
		bus:     bus,
		cfg:     cfg,
		scratch: make([]byte, maxPacketLen(cfg.MaxPoints)),
	}
	if irq := cfg.IRQ; irq != nil {
		if err := irq.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return nil, fmt.Errorf("tt21100: interrupt pin: %w", err)
		}
	}
	if err := d.drain(); err != nil {
		return nil, err
	}
	return d, nil
}

// maxPacketLen is the size of the largest well-formed packet for a
// device tracking points contacts.
func maxPacketLen(points int) int {
	return max(buttonLen, touchHeaderLen+points*touchRecordLen)
}

// drain reads pending reports until the controller answers an idle
// frame. The reference drivers poll up to 5 times after power-up.
func (d *Device) drain() error {
	for range 5 {
		switch _, err := d.ReadPacket(); {
		case err == nil:
			// A stale report; keep reading.
		case errors.Is(err, ErrNoData):
			return nil
		default:
			return err
		}
	}
	return errNotIdle
}

// ReadPacket reads one raw packet, length prefix included. It returns
// ErrNoData when the controller has nothing queued. The returned slice
// aliases an internal buffer and is only valid until the next read.
func (d *Device) ReadPacket() ([]byte, error) {
	hdr := d.scratch[:lenPrefixLen]
	if err := d.bus.Tx(d.cfg.Addr, nil, hdr); err != nil {
		return nil, &BusError{Err: err}
	}
	n := int(binary.LittleEndian.Uint16(hdr))
	switch {
	case n == idleLen:
		return nil, ErrNoData
	case n < idleLen || n > len(d.scratch):
		return nil, &LengthError{Len: n}
	}
	pkt := d.scratch[:n]
	if err := d.bus.Tx(d.cfg.Addr, nil, pkt); err != nil {
		return nil, &BusError{Err: err}
	}
	return pkt, nil
}

// Read reads and decodes the next report. Touch coordinates are mapped
// to the configured orientation. It returns ErrNoData when the
// controller has nothing queued.
func (d *Device) Read() (Report, error) {
	pkt, err := d.ReadPacket()
	if err != nil {
		return nil, err
	}
	return d.Decode(pkt)
}

// Decode decodes a packet read from this device, applying the
// configured orientation mapping as Read does.
func (d *Device) Decode(pkt []byte) (Report, error) {
	rep, err := Decode(pkt)
	if err != nil {
		return nil, err
	}
	if t, ok := rep.(*TouchReport); ok {
		for i := range t.Records {
			t.Records[i].Pos = d.transform(t.Records[i].Pos)
		}
	}
	return rep, nil
}

// transform maps a controller coordinate onto the panel. Axes are
// swapped first, then mirrored.
func (d *Device) transform(p image.Point) image.Point {
	if d.cfg.SwapAxes {
		p.X, p.Y = p.Y, p.X
	}
	if d.cfg.InvertX {
		p.X = d.cfg.Width - 1 - p.X
	}
	if d.cfg.InvertY {
		p.Y = d.cfg.Height - 1 - p.Y
	}
	return p
}

// DataAvailable reports whether the interrupt line indicates a pending
// report. It requires Config.IRQ.
func (d *Device) DataAvailable() (bool, error) {
	if d.cfg.IRQ == nil {
		return false, errNoIRQ
	}
	return d.cfg.IRQ.Read() == gpio.Low, nil
}

// WaitForData blocks until the interrupt line signals a pending report
// or the timeout expires, and reports whether a report is pending. A
// negative timeout blocks indefinitely. Without Config.IRQ it returns
// false immediately.
func (d *Device) WaitForData(timeout time.Duration) bool {
	irq := d.cfg.IRQ
	if irq == nil {
		return false
	}
	if irq.Read() == gpio.Low {
		return true
	}
	if irq.WaitForEdge(timeout) {
		return true
	}
	// The edge may have fired between the level check and the wait.
	return irq.Read() == gpio.Low
}

// Reset pulses the reset line and waits for the controller to boot.
// Contacts held during the reset report fresh touchdowns afterwards;
// any tracker fed from this device should be reset along with it. It
// requires Config.Reset.
func (d *Device) Reset() error {
	rst := d.cfg.Reset
	if rst == nil {
		return errNoReset
	}
	if err := rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("tt21100: reset pin: %w", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := rst.Out(gpio.High); err != nil {
		return fmt.Errorf("tt21100: reset pin: %w", err)
	}
	// Boot time per the reference drivers.
	time.Sleep(200 * time.Millisecond)
	return d.drain()
}

const defaultAddr = 0x24

// BusError wraps a failed bus transaction.
type BusError struct {
	Err error
}

func (e *BusError) Error() string { return "tt21100: bus: " + e.Err.Error() }
func (e *BusError) Unwrap() error { return e.Err }

// LengthError reports a length prefix outside the bounds of any
// well-formed packet. The packet was not read; the device may need a
// reset to recover.
type LengthError struct {
	Len int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("tt21100: invalid packet length %d", e.Len)
}

// TruncatedError reports a packet shorter than its contents declare.
type TruncatedError struct {
	Want, Got int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("tt21100: truncated packet: %d bytes declared, %d present", e.Want, e.Got)
}

// UnknownReportError reports an unrecognized report id.
type UnknownReportError struct {
	ID uint8
}

func (e *UnknownReportError) Error() string {
	return fmt.Sprintf("tt21100: unknown report id %#x", e.ID)
}

var (
	// ErrNoData is returned by reads when the controller has no
	// report queued.
	ErrNoData = errors.New("tt21100: no data available")

	errNotIdle = errors.New("tt21100: controller not idle")
	errNoIRQ   = errors.New("tt21100: no interrupt pin configured")
	errNoReset = errors.New("tt21100: no reset pin configured")
)
