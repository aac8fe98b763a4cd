package link

import (
	"context"
	"errors"
	"fmt"

	"github.com/ccio/ccrf/internal/frame"
	"github.com/ccio/ccrf/internal/logging"
	"github.com/ccio/ccrf/internal/metrics"
)

// runReader scans the serial port for 0x00-delimited COBS frames and routes
// each decoded frame to its rendezvous point or the dispatch queue. A
// malformed frame is logged and discarded; the reader resyncs at the next
// delimiter and the link continues. An OS-level read failure logs and the
// reader exits, leaving the link's other workers to drain and stop on Close.
func (l *Link) runReader(ctx context.Context) {
	defer l.wg.Done()

	buf := make([]byte, 512)
	var acc []byte

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := l.port.Read(buf)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logging.L().Error("link_read_error", "path", l.path, "error", err)
			metrics.IncError(mapErrToMetric(fmt.Errorf("%w: %v", ErrIO, err)))
			return
		}
		if n == 0 {
			continue
		}

		for _, b := range buf[:n] {
			if b != 0x00 {
				acc = append(acc, b)
				continue
			}
			if len(acc) == 0 {
				continue
			}
			l.handleDelimited(acc)
			acc = nil
		}
	}
}

func (l *Link) handleDelimited(delimited []byte) {
	fr, err := frame.Decode(delimited)
	if err != nil {
		logging.L().Warn("link_frame_decode_error", "path", l.path, "error", err)
		metrics.IncMalformed()
		return
	}
	metrics.IncFrameRx()

	if l.rawForward {
		handled := l.registry.DeliverRaw(fr.Code, fr.Body)
		if !handled && l.unsolicitedTap != nil {
			l.unsolicitedTap(fr.Code, fr.Body)
		}
	}

	resolved, ok := l.registry.Resolve(fr.Code)
	if !ok {
		logging.L().Warn("link_unknown_code", "path", l.path, "code", fr.Code)
		metrics.IncUnknownCode()
		return
	}

	if resolved.Point != nil {
		value, terminal, err := resolved.Cmd.Decode(fr.Body)
		if err != nil {
			logging.L().Warn("link_decode_error", "path", l.path, "command", resolved.Cmd.Name, "error", err)
			metrics.IncError(metrics.ErrFrameCodec)
			return
		}
		if terminal {
			resolved.Point.Terminate()
		} else {
			resolved.Point.Deliver(value)
		}
		return
	}

	l.dispatchQ.Send(dispatchItem{cmd: resolved.Cmd, body: fr.Body})
	metrics.SetDispatchQueueDepth(l.dispatchQ.Len())
}
