package ccrf

import (
	"fmt"

	"github.com/ccio/ccrf/internal/proto"
)

// formatStatus renders a status reply as a single summary line, grounded on
// CloudChaser.format_status in the original implementation.
func formatStatus(st proto.StatusReply) string {
	return fmt.Sprintf(
		"Cloud Chaser %08x %016X:%02X:%04X up=%ds rx=%d/%d/%d tx=%d/%d/%d",
		st.Version, st.Serial, st.Cell, st.Addr, st.UptimeMS/1000,
		st.NetStat.Recv.Count, st.NetStat.Recv.Size, st.NetStat.Recv.Error,
		st.NetStat.Send.Count, st.NetStat.Send.Size, st.NetStat.Send.Error,
	)
}
