package link

import (
	"context"

	"github.com/ccio/ccrf/internal/logging"
	"github.com/ccio/ccrf/internal/metrics"
)

// runDispatcher consumes the unbounded dispatch queue and invokes each
// command's handler sequentially. Handlers run on this single goroutine per
// link, so a handler must offload to a subscription queue rather than block.
func (l *Link) runDispatcher(ctx context.Context) {
	defer l.wg.Done()

	for item := range l.dispatchQ.Recv(ctx, false, 0) {
		metrics.SetDispatchQueueDepth(l.dispatchQ.Len())
		value, _, err := item.cmd.Decode(item.body)
		if err != nil {
			logging.L().Warn("link_dispatch_decode_error", "command", item.cmd.Name, "error", err)
			metrics.IncError(metrics.ErrFrameCodec)
			continue
		}
		if item.cmd.Handle != nil {
			item.cmd.Handle(value)
		}
	}
}
