package touch

import (
	"image"
	"reflect"
	"testing"
)

func contact(id, x, y int, s State) Contact {
	return Contact{ID: id, Pos: image.Pt(x, y), Pressure: 50, State: s}
}

func event(s State, id, x, y int) Event {
	return Event{State: s, ID: id, Pos: image.Pt(x, y), Pressure: 50}
}

func TestTracker(t *testing.T) {
	type step struct {
		contacts []Contact
		want     []Event
	}
	tests := []struct {
		name  string
		max   int
		steps []step
	}{
		{
			name: "tap",
			max:  5,
			steps: []step{
				{
					contacts: []Contact{contact(0, 10, 20, Down)},
					want:     []Event{event(Down, 0, 10, 20)},
				},
				{
					want: []Event{event(Up, 0, 10, 20)},
				},
			},
		},
		{
			name: "drag",
			max:  5,
			steps: []step{
				{
					contacts: []Contact{contact(3, 10, 20, Down)},
					want:     []Event{event(Down, 3, 10, 20)},
				},
				{
					contacts: []Contact{contact(3, 11, 20, Move)},
					want:     []Event{event(Move, 3, 11, 20)},
				},
				{
					// Stationary contacts are not reported.
					contacts: []Contact{contact(3, 11, 20, Move)},
				},
				{
					contacts: []Contact{contact(3, 11, 25, Move)},
					want:     []Event{event(Move, 3, 11, 25)},
				},
				{
					want: []Event{event(Up, 3, 11, 25)},
				},
			},
		},
		{
			name: "second finger lifts",
			max:  5,
			steps: []step{
				{
					contacts: []Contact{
						contact(0, 100, 200, Down),
						contact(1, 300, 400, Down),
					},
					want: []Event{
						event(Down, 0, 100, 200),
						event(Down, 1, 300, 400),
					},
				},
				{
					contacts: []Contact{contact(0, 100, 200, Move)},
					want:     []Event{event(Up, 1, 300, 400)},
				},
			},
		},
		{
			name: "liftoff record",
			max:  5,
			steps: []step{
				{
					contacts: []Contact{contact(2, 50, 60, Down)},
					want:     []Event{event(Down, 2, 50, 60)},
				},
				{
					contacts: []Contact{contact(2, 55, 60, Up)},
					want:     []Event{event(Up, 2, 55, 60)},
				},
				{
					// The slot is already retired.
					contacts: nil,
				},
			},
		},
		{
			name: "reland within one tick",
			max:  5,
			steps: []step{
				{
					contacts: []Contact{contact(0, 10, 10, Down)},
					want:     []Event{event(Down, 0, 10, 10)},
				},
				{
					contacts: []Contact{contact(0, 40, 40, Down)},
					want:     []Event{event(Down, 0, 40, 40)},
				},
				{
					want: []Event{event(Up, 0, 40, 40)},
				},
			},
		},
		{
			name: "ghost liftoff",
			max:  5,
			steps: []step{
				{
					// A liftoff for a slot never seen down.
					contacts: []Contact{contact(7, 10, 10, Up)},
				},
			},
		},
		{
			name: "appeared mid-stream",
			max:  5,
			steps: []step{
				{
					// A moving contact whose touchdown was lost still
					// registers.
					contacts: []Contact{contact(4, 10, 10, Move)},
					want:     []Event{event(Down, 4, 10, 10)},
				},
			},
		},
		{
			name: "capacity",
			max:  2,
			steps: []step{
				{
					contacts: []Contact{
						contact(0, 1, 1, Down),
						contact(1, 2, 2, Down),
						contact(2, 3, 3, Down),
					},
					want: []Event{
						event(Down, 0, 1, 1),
						event(Down, 1, 2, 2),
					},
				},
				{
					// Slot 2 was dropped and owes no Up.
					contacts: []Contact{
						contact(0, 1, 1, Move),
						contact(1, 2, 2, Move),
					},
				},
			},
		},
		{
			name: "duplicate slot id",
			max:  5,
			steps: []step{
				{
					contacts: []Contact{
						contact(0, 1, 1, Down),
						contact(0, 9, 9, Down),
					},
					want: []Event{event(Down, 0, 1, 1)},
				},
			},
		},
		{
			name: "up events ordered by slot",
			max:  5,
			steps: []step{
				{
					contacts: []Contact{
						contact(5, 1, 1, Down),
						contact(2, 2, 2, Down),
					},
					want: []Event{
						event(Down, 5, 1, 1),
						event(Down, 2, 2, 2),
					},
				},
				{
					want: []Event{
						event(Up, 2, 2, 2),
						event(Up, 5, 1, 1),
					},
				},
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tr := NewTracker(test.max)
			for i, step := range test.steps {
				got := tr.Update(step.contacts)
				if !reflect.DeepEqual(got, step.want) {
					t.Errorf("step %d: got events %v, want %v", i, got, step.want)
				}
			}
		})
	}
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(2)
	tr.Update([]Contact{contact(0, 1, 1, Down), contact(1, 2, 2, Down)})
	tr.Reset()
	if evs := tr.Update(nil); len(evs) != 0 {
		t.Errorf("got events %v after reset, want none", evs)
	}
	want := []Event{event(Down, 0, 5, 5)}
	if got := tr.Update([]Contact{contact(0, 5, 5, Down)}); !reflect.DeepEqual(got, want) {
		t.Errorf("got events %v, want %v", got, want)
	}
}

func TestTrackerCapacityFreed(t *testing.T) {
	tr := NewTracker(1)
	tr.Update([]Contact{contact(0, 1, 1, Down)})
	// Slot 1 is over capacity while 0 is held.
	if evs := tr.Update([]Contact{contact(0, 1, 1, Move), contact(1, 2, 2, Down)}); len(evs) != 0 {
		t.Errorf("got events %v, want none", evs)
	}
	want := []Event{event(Up, 0, 1, 1)}
	if got := tr.Update([]Contact{contact(1, 2, 2, Move)}); !reflect.DeepEqual(got, want) {
		t.Fatalf("got events %v, want %v", got, want)
	}
	want = []Event{event(Down, 1, 2, 2)}
	if got := tr.Update([]Contact{contact(1, 2, 2, Move)}); !reflect.DeepEqual(got, want) {
		t.Errorf("got events %v, want %v", got, want)
	}
}
