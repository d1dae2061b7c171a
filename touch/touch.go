// Package touch tracks multi-touch contacts across successive controller
// reports and derives their down/move/up lifecycle.
package touch

import "image"

// MaxSlots is the number of distinct contact ids a controller can
// assign; slot ids are 5 bits on the wire.
const MaxSlots = 32

// State is the lifecycle state of a contact.
type State int

const (
	Down State = iota
	Move
	Up
)

func (s State) String() string {
	switch s {
	case Down:
		return "down"
	case Move:
		return "move"
	case Up:
		return "up"
	default:
		panic("invalid state")
	}
}

// Contact is one entry of a report snapshot. State carries the
// controller's own view of the contact: Down for a fresh touchdown, Up
// for a liftoff record, Move otherwise.
type Contact struct {
	// ID is the controller-assigned slot id, stable while the contact
	// persists.
	ID       int
	Pos      image.Point
	Pressure int
	State    State
}

// Event is a lifecycle transition derived from successive snapshots.
// Up events carry the last reported position and pressure.
type Event struct {
	State    State
	ID       int
	Pos      image.Point
	Pressure int
}

// Tracker assigns lifecycle events to the contact snapshots of
// successive reports. It holds one slot per active contact, up to the
// capacity given to NewTracker. The zero Tracker is not usable; a
// Tracker must not be shared between goroutines without external
// synchronization.
type Tracker struct {
	max    int
	active int
	slots  [MaxSlots]slot
}

type slot struct {
	active   bool
	pos      image.Point
	pressure int
}

// NewTracker returns a tracker for up to max simultaneous contacts.
// The capacity is clamped to [1, MaxSlots].
func NewTracker(max int) *Tracker {
	if max < 1 {
		max = 1
	} else if max > MaxSlots {
		max = MaxSlots
	}
	return &Tracker{max: max}
}

// Update diffs contacts against the slot table and reports the
// transitions since the previous update. Down and Move events are
// emitted in contact order, followed by Up events in ascending slot
// order.
//
// A tracked slot whose contact reports a fresh touchdown lifted and
// re-landed within one report interval; it yields a single Down event,
// never an Up/Down pair. A contact that both appeared and lifted within
// one interval was never on the surface at a poll and yields no event.
func (t *Tracker) Update(contacts []Contact) []Event {
	var seen [MaxSlots]bool
	var events []Event
	for _, c := range contacts {
		if c.ID < 0 || c.ID >= MaxSlots || seen[c.ID] {
			// Out of range, or a duplicate slot id; the first
			// record wins.
			continue
		}
		seen[c.ID] = true
		s := &t.slots[c.ID]
		switch {
		case c.State == Up:
			if !s.active {
				break
			}
			s.active = false
			t.active--
			events = append(events, Event{State: Up, ID: c.ID, Pos: c.Pos, Pressure: c.Pressure})
		case !s.active:
			if t.active == t.max {
				// No free slot; drop the contact.
				seen[c.ID] = false
				break
			}
			*s = slot{active: true, pos: c.Pos, pressure: c.Pressure}
			t.active++
			events = append(events, Event{State: Down, ID: c.ID, Pos: c.Pos, Pressure: c.Pressure})
		case c.State == Down:
			// The slot lifted and re-landed within one tick.
			s.pos, s.pressure = c.Pos, c.Pressure
			events = append(events, Event{State: Down, ID: c.ID, Pos: c.Pos, Pressure: c.Pressure})
		default:
			moved := s.pos != c.Pos
			s.pos, s.pressure = c.Pos, c.Pressure
			if moved {
				events = append(events, Event{State: Move, ID: c.ID, Pos: c.Pos, Pressure: c.Pressure})
			}
		}
	}
	// Slots absent from the snapshot have lifted.
	for id := range t.slots {
		s := &t.slots[id]
		if !s.active || seen[id] {
			continue
		}
		s.active = false
		t.active--
		events = append(events, Event{State: Up, ID: id, Pos: s.pos, Pressure: s.pressure})
	}
	return events
}

// Reset silently retires all slots. Call it whenever the device is
// reinitialized; no Up events are synthesized for contacts held at the
// time.
func (t *Tracker) Reset() {
	t.slots = [MaxSlots]slot{}
	t.active = 0
}
