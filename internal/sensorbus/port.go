package sensorbus

import (
	"io"
	"time"
)

// Porter defines the minimal interface needed for a sensor serial port.
// This abstraction enables unit testing without real serial hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// PortFactory defines an interface for creating sensor ports.
// This abstraction enables dependency injection of port creation.
type PortFactory interface {
	// Open opens a serial port at the specified path with the given options.
	Open(path string, opts PortOptions) (Porter, error)
}

// PortOpener is a function type for opening sensor ports.
// This allows for easier testing by replacing the opener function.
type PortOpener func(path string, opts PortOptions) (Porter, error)

// TimeoutPorter extends Porter with timeout capabilities.
// This is an optional interface that ports may implement.
type TimeoutPorter interface {
	Porter
	// SetReadTimeout sets the read timeout for the port.
	SetReadTimeout(timeout time.Duration) error
}
