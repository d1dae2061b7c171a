// Package sc18im implements a driver for the NXP SC18IM700 UART to
// I²C-bus bridge, exposing the I²C side as a transaction interface.
//
// The bridge speaks an ASCII framed protocol on its UART: an S starts
// an I²C transfer, a P stops it, R and W access the bridge's own
// registers. Transaction results are reported through the I2CSTAT
// register, which this driver checks after every transfer.
//
// https://www.nxp.com/docs/en/data-sheet/SC18IM700.pdf
package sc18im

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Protocol command bytes.
const (
	cmdStart    = 'S'
	cmdStop     = 'P'
	cmdReadReg  = 'R'
	cmdWriteReg = 'W'
)

// Internal registers.
const (
	RegBRG0      = 0x00
	RegBRG1      = 0x01
	RegPortConf1 = 0x02
	RegPortConf2 = 0x03
	RegIOState   = 0x04
	RegI2CAdr    = 0x06
	RegI2CClkL   = 0x07
	RegI2CClkH   = 0x08
	RegI2CTO     = 0x09
	RegI2CStat   = 0x0a
)

// I2CSTAT codes.
const (
	statOK       = 0xf0
	statAddrNack = 0xf1
	statDataNack = 0xf2
	statTimeout  = 0xf3
)

var (
	ErrAddrNack = errors.New("sc18im: address not acknowledged")
	ErrDataNack = errors.New("sc18im: data not acknowledged")
	ErrTimeout  = errors.New("sc18im: transfer timed out")
)

// maxTransfer is the largest transfer in either direction, bounded by
// the protocol's one byte count field.
const maxTransfer = 255

// Port drives one bridge over its UART.
type Port struct {
	conn    io.ReadWriteCloser
	scratch [3 + maxTransfer + 3 + 1]byte
}

// Open connects to the bridge on the named serial device. A zero baud
// rate selects 9600, the power-on default of the bridge.
func Open(dev string, baud int) (*Port, error) {
	if baud == 0 {
		baud = 9600
	}
	conn, err := serial.OpenPort(&serial.Config{
		Name:        dev,
		Baud:        baud,
		ReadTimeout: time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("sc18im: %w", err)
	}
	return New(conn), nil
}

// New wraps an open connection to the bridge. The connection's reads
// must time out eventually or a wedged bridge blocks forever.
func New(conn io.ReadWriteCloser) *Port {
	return &Port{conn: conn}
}

func (p *Port) Close() error {
	return p.conn.Close()
}

// Tx performs a write followed by a read as one I²C transaction,
// joined by a repeated start. Either buffer may be empty; with both
// empty the target is probed with a zero length write. The I2CSTAT
// register is queried after the transfer and mapped onto ErrAddrNack,
// ErrDataNack and ErrTimeout.
func (p *Port) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7f {
		return fmt.Errorf("sc18im: address %#x out of range", addr)
	}
	if len(w) > maxTransfer || len(r) > maxTransfer {
		return fmt.Errorf("sc18im: transfer of %d/%d bytes exceeds %d", len(w), len(r), maxTransfer)
	}
	req := p.scratch[:0]
	if len(w) > 0 || len(r) == 0 {
		req = append(req, cmdStart, byte(addr)<<1, byte(len(w)))
		req = append(req, w...)
	}
	if len(r) > 0 {
		req = append(req, cmdStart, byte(addr)<<1|1, byte(len(r)))
	}
	req = append(req, cmdStop)
	if _, err := p.conn.Write(req); err != nil {
		return fmt.Errorf("sc18im: %w", err)
	}
	if len(r) > 0 {
		if _, err := io.ReadFull(p.conn, r); err != nil {
			// A failed transfer returns no data; ask the bridge
			// what went wrong.
			if serr := p.status(); serr != nil {
				return serr
			}
			return fmt.Errorf("sc18im: read: %w", err)
		}
	}
	return p.status()
}

// status queries I2CSTAT and maps it onto the transfer errors.
func (p *Port) status() error {
	if _, err := p.conn.Write([]byte{cmdReadReg, RegI2CStat, cmdStop}); err != nil {
		return fmt.Errorf("sc18im: status: %w", err)
	}
	var stat [1]byte
	if _, err := io.ReadFull(p.conn, stat[:]); err != nil {
		return fmt.Errorf("sc18im: status: %w", err)
	}
	return statErr(stat[0])
}

// ReadReg reads one of the bridge's internal registers.
func (p *Port) ReadReg(reg uint8) (uint8, error) {
	if _, err := p.conn.Write([]byte{cmdReadReg, reg, cmdStop}); err != nil {
		return 0, fmt.Errorf("sc18im: %w", err)
	}
	var b [1]byte
	if _, err := io.ReadFull(p.conn, b[:]); err != nil {
		return 0, fmt.Errorf("sc18im: %w", err)
	}
	return b[0], nil
}

// WriteReg writes one of the bridge's internal registers.
func (p *Port) WriteReg(reg, val uint8) error {
	if _, err := p.conn.Write([]byte{cmdWriteReg, reg, val, cmdStop}); err != nil {
		return fmt.Errorf("sc18im: %w", err)
	}
	return nil
}

func statErr(stat uint8) error {
	switch stat {
	case statOK:
		return nil
	case statAddrNack:
		return ErrAddrNack
	case statDataNack:
		return ErrDataNack
	case statTimeout:
		return ErrTimeout
	default:
		return fmt.Errorf("sc18im: transfer status %#x", stat)
	}
}
