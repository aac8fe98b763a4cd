package link

import (
	"context"
	"fmt"

	"github.com/ccio/ccrf/internal/frame"
	"github.com/ccio/ccrf/internal/logging"
	"github.com/ccio/ccrf/internal/metrics"
)

// runWriter drains the bounded write queue onto the serial port. Only this
// goroutine ever calls Port.Write, matching the "only the writer thread
// issues writes" invariant.
func (l *Link) runWriter(ctx context.Context) {
	defer l.wg.Done()

	for item := range l.writeQ.Recv(ctx, false, 0) {
		metrics.SetWriteQueueDepth(l.writeQ.Len())

		var wire []byte
		if len(item.raw) > 0 {
			wire = item.raw
		} else {
			w, err := frame.Encode(item.code, item.body)
			if err != nil {
				logging.L().Error("link_frame_encode_error", "path", l.path, "code", item.code, "error", err)
				metrics.IncError(metrics.ErrFrameCodec)
				continue
			}
			wire = w
		}

		if _, err := l.port.Write(wire); err != nil {
			logging.L().Error("link_write_error", "path", l.path, "error", err)
			metrics.IncError(mapErrToMetric(fmt.Errorf("%w: %v", ErrIO, err)))
			continue
		}
		if len(item.raw) == 0 {
			metrics.IncFrameTx()
		}
	}
}
