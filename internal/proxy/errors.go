package proxy

import (
	"errors"
	"fmt"

	"github.com/ccio/ccrf/internal/metrics"
)

var (
	// ErrDisconnected is returned to a blocked client call when the
	// server closes the socket out from under it. Replaces the original
	// implementation's os.Exit(1) on disconnect per the wire protocol
	// redesign: a clean error return instead of terminating the process.
	ErrDisconnected = errors.New("proxy: disconnected from server")
	// ErrListen is returned by Server.Serve on listener setup failure.
	ErrListen = errors.New("proxy: listen failed")
	// ErrUnknownCommand is returned server-side when a client requests a
	// name the registry does not recognize.
	ErrUnknownCommand = errors.New("proxy: unknown command")
)

// RemoteError is the client-side re-raising of a server-side command
// failure, carrying the remote error's kind and message without attempting
// to reconstruct a traceback.
type RemoteError struct {
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("proxy: remote error (%s): %s", e.Kind, e.Message)
}

func remoteErrorOf(err error) *WireError {
	if err == nil {
		return nil
	}
	return &WireError{Kind: fmt.Sprintf("%T", err), Message: err.Error()}
}

func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrDisconnected):
		return metrics.ErrProxyRemote
	case errors.Is(err, ErrUnknownCommand):
		return metrics.ErrInvalidArg
	default:
		return metrics.ErrProxyRemote
	}
}
