package tt21100

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Simulator implements the controller side of the wire protocol, for
// tests and for development without hardware. It implements Bus.
//
// A Simulator is safe for one goroutine queueing reports while another
// reads.
type Simulator struct {
	mu      sync.Mutex
	addr    uint16
	pending [][]byte
	time    uint16
	counter uint8
	err     error
}

// NewSimulator returns a simulator answering at the default controller
// address.
func NewSimulator() *Simulator {
	return &Simulator{addr: defaultAddr}
}

// Touch queues a touch report carrying records. The report timestamp
// and counter advance as on the controller.
func (s *Simulator) Touch(records ...TouchRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep := &TouchReport{
		Timestamp: s.time,
		Counter:   s.counter,
		Records:   records,
	}
	s.pending = append(s.pending, appendTouch(nil, rep))
	s.tick()
}

// Button queues a button report with the given pressed mask.
func (s *Simulator) Button(mask uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep := &ButtonReport{
		Timestamp: s.time,
		Buttons:   mask,
	}
	for i := range rep.Signal {
		// Resting sense level, raised on the pressed buttons.
		rep.Signal[i] = 0x0400
		if mask&(1<<i) != 0 {
			rep.Signal[i] = 0x2f00
		}
	}
	s.pending = append(s.pending, appendButton(nil, rep))
	s.tick()
}

// Status queues a status report.
func (s *Simulator) Status(code uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, appendStatus(nil, &StatusReport{
		Timestamp: s.time,
		Code:      code,
	}))
	s.tick()
}

// push queues a raw packet as-is.
func (s *Simulator) push(pkt []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, pkt)
}

func (s *Simulator) tick() {
	s.time += 100 // 10ms between reports, in 100µs units.
	s.counter = (s.counter + 1) & 0x03
}

// Tx answers a read transaction the way the controller would: a 2 byte
// read yields the length of the pending packet, or the idle length
// when nothing is queued; a read of the packet's size consumes it.
func (s *Simulator) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		err := s.err
		s.err = nil
		return err
	}
	if addr != s.addr {
		return fmt.Errorf("sim: no device at address %#x", addr)
	}
	if len(w) > 0 {
		return fmt.Errorf("sim: unexpected write of %d bytes", len(w))
	}
	switch {
	case len(r) == lenPrefixLen:
		if len(s.pending) == 0 {
			binary.LittleEndian.PutUint16(r, idleLen)
			break
		}
		copy(r, s.pending[0])
	case len(s.pending) > 0 && len(r) == len(s.pending[0]):
		copy(r, s.pending[0])
		s.pending = s.pending[1:]
	default:
		return fmt.Errorf("sim: read of %d bytes does not match a pending packet", len(r))
	}
	return nil
}
