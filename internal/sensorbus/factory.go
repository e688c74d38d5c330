package sensorbus

import (
	"go.bug.st/serial"
)

// NewRealBus creates a Bus instance backed by a real serial port at the given
// path using the provided serial options.
func NewRealBus(path string, opts PortOptions) (*Bus[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return NewBus[serial.Port](port), nil
}
