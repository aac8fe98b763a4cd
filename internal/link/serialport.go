package link

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial so tests can substitute an in-memory pipe.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// openPort is the default Port constructor, overridden in tests.
var openPort = func(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}

// DefaultBaud is the Cloud Chaser board's fixed line rate: 115200 8-N-1, no
// flow control.
const DefaultBaud = 115200
