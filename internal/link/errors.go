package link

import (
	"errors"

	"github.com/ccio/ccrf/internal/metrics"
)

// Sentinel errors, wrapped via fmt.Errorf("%w: ...") so callers classify
// with errors.Is.
var (
	ErrClosed    = errors.New("link: closed")
	ErrLockHeld  = errors.New("link: tty already locked by another process")
	ErrIO        = errors.New("link: serial i/o failure")
	ErrWriteFull = errors.New("link: write queue full")
)

// mapErrToMetric maps a wrapped sentinel error to a metrics error label.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrIO):
		return metrics.ErrLinkIO
	case errors.Is(err, ErrLockHeld):
		return metrics.ErrDeviceNoMatch
	default:
		return metrics.ErrLinkIO
	}
}
