package uinput

import (
	"image"
	"reflect"
	"testing"
	"unsafe"

	"github.com/jessebraham/tt21100/touch"
)

func ev(typ, code uint16, value int32) inputEvent {
	return inputEvent{Type: typ, Code: code, Value: value}
}

func TestFrame(t *testing.T) {
	d := &Device{}
	steps := []struct {
		events []touch.Event
		want   []inputEvent
	}{
		{
			events: []touch.Event{
				{State: touch.Down, ID: 0, Pos: image.Pt(10, 20), Pressure: 50},
			},
			want: []inputEvent{
				ev(evAbs, absMTSlot, 0),
				ev(evAbs, absMTTrackingID, 1),
				ev(evAbs, absMTPositionX, 10),
				ev(evAbs, absMTPositionY, 20),
				ev(evAbs, absMTPressure, 50),
				ev(evAbs, absX, 10),
				ev(evAbs, absY, 20),
				ev(evKey, btnTouch, 1),
				ev(evSyn, synReport, 0),
			},
		},
		{
			events: []touch.Event{
				{State: touch.Down, ID: 1, Pos: image.Pt(99, 1), Pressure: 60},
			},
			want: []inputEvent{
				ev(evAbs, absMTSlot, 1),
				ev(evAbs, absMTTrackingID, 2),
				ev(evAbs, absMTPositionX, 99),
				ev(evAbs, absMTPositionY, 1),
				ev(evAbs, absMTPressure, 60),
				ev(evAbs, absX, 99),
				ev(evAbs, absY, 1),
				// Still touching; BTN_TOUCH does not repeat.
				ev(evSyn, synReport, 0),
			},
		},
		{
			events: []touch.Event{
				{State: touch.Move, ID: 0, Pos: image.Pt(11, 21), Pressure: 55},
				{State: touch.Up, ID: 1, Pos: image.Pt(99, 1), Pressure: 60},
			},
			want: []inputEvent{
				ev(evAbs, absMTSlot, 0),
				ev(evAbs, absMTPositionX, 11),
				ev(evAbs, absMTPositionY, 21),
				ev(evAbs, absMTPressure, 55),
				ev(evAbs, absX, 11),
				ev(evAbs, absY, 21),
				ev(evAbs, absMTSlot, 1),
				ev(evAbs, absMTTrackingID, -1),
				ev(evSyn, synReport, 0),
			},
		},
		{
			events: []touch.Event{
				{State: touch.Up, ID: 0, Pos: image.Pt(11, 21), Pressure: 55},
			},
			want: []inputEvent{
				ev(evAbs, absMTSlot, 0),
				ev(evAbs, absMTTrackingID, -1),
				ev(evKey, btnTouch, 0),
				ev(evSyn, synReport, 0),
			},
		},
		{
			events: nil,
			want:   nil,
		},
	}
	for i, step := range steps {
		if got := d.frame(step.events); !reflect.DeepEqual(got, step.want) {
			t.Errorf("step %d: got\n%v\nwant\n%v", i, got, step.want)
		}
	}
}

func TestTrackingIDsAdvance(t *testing.T) {
	d := &Device{}
	d.frame([]touch.Event{{State: touch.Down, ID: 3}})
	d.frame([]touch.Event{{State: touch.Up, ID: 3}})
	frame := d.frame([]touch.Event{{State: touch.Down, ID: 3}})
	if got := frame[1]; got.Code != absMTTrackingID || got.Value != 2 {
		t.Errorf("got %+v, want tracking id 2", got)
	}
}

func TestStructSizes(t *testing.T) {
	if got := unsafe.Sizeof(devSetup{}); got != 92 {
		t.Errorf("uinput_setup is %d bytes, want 92", got)
	}
	if got := unsafe.Sizeof(absSetup{}); got != 28 {
		t.Errorf("uinput_abs_setup is %d bytes, want 28", got)
	}
}
