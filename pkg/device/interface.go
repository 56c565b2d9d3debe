package device

import "errors"

// ErrNotConnected is returned by commands issued before Connect or after Close.
var ErrNotConnected = errors.New("not connected")

// Device defines the interface for incubator MCUs (real or mocked).
type Device interface {
	Connect() error
	Close() error
	Samples() <-chan RawSample
	SetHeater(on bool) error
	SetServo(degrees int) error
	ReleaseServo() error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
