//go:build !linux

package uinput

import (
	"errors"

	"github.com/jessebraham/tt21100/touch"
)

type Device struct{}

func Open(name string, width, height, slots int) (*Device, error) {
	return nil, errors.New("uinput: not implemented")
}

func (d *Device) Emit(events []touch.Event) error {
	return errors.New("uinput: not implemented")
}

func (d *Device) Close() error {
	return nil
}
