package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/ccio/ccrf/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	FrameRx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frame_rx_total",
		Help: "Total link-layer frames decoded from the serial link.",
	})
	FrameTx = promauto.NewCounter(prometheus.CounterOpts{
		Name: "frame_tx_total",
		Help: "Total link-layer frames written to the serial link.",
	})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total frames rejected during decode (bad COBS, bad marker, too short).",
	})
	UnknownCodeFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unknown_code_frames_total",
		Help: "Total frames dropped because no command claims their response code.",
	})
	UnsolicitedReplies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unsolicited_replies_total",
		Help: "Total reply frames that arrived with no rendezvous waiting.",
	})
	RendezvousTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rendezvous_timeouts_total",
		Help: "Total write-then-wait calls that timed out without a reply.",
	})
	DispatchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatch_queue_depth",
		Help: "Current depth of a link's unbounded dispatch queue.",
	})
	WriteQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "write_queue_depth",
		Help: "Current depth of a link's bounded write queue.",
	})
	SubscriptionDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_drops_total",
		Help: "Total items dropped from a fan-out subscription queue at capacity.",
	}, []string{"kind"})
	ProxyClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "proxy_clients",
		Help: "Current number of connected proxy clients.",
	})
	ProxyBroadcastFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "proxy_broadcast_fanout",
		Help: "Number of clients targeted in the most recent proxy broadcast.",
	})
	ProxyBroadcastDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proxy_broadcast_drops_total",
		Help: "Total proxy clients dropped from a broadcast due to a slow/disconnected socket.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrFrameCodec    = "frame_codec"
	ErrLinkIO        = "link_io"
	ErrUnknownCode   = "unknown_code"
	ErrUnsolicited   = "unsolicited_reply"
	ErrRendezvous    = "rendezvous_timeout"
	ErrInvalidArg    = "invalid_argument"
	ErrProxyRemote   = "proxy_remote"
	ErrDeviceNoMatch = "device_not_matched"
)

// StartHTTP serves Prometheus metrics at /metrics, plus a /ready endpoint.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters, read by the periodic stats logger without
// hitting the Prometheus registry.
var (
	localFrameRx       uint64
	localFrameTx       uint64
	localMalformed     uint64
	localUnknownCode   uint64
	localUnsolicited   uint64
	localRendezvousTmo uint64
	localErrors        uint64
	localProxyClients  uint64
	localProxyFanout   uint64
	localProxyDrops    uint64

	recvCount, recvSize uint64
	rssiSum, lqiSum     int64
)

// Snapshot is a cheap copy of local counters, used by the periodic
// throughput/RSSI/LQI printer (ported from the original Stats object).
type Snapshot struct {
	FrameRx           uint64
	FrameTx           uint64
	Malformed         uint64
	UnknownCode       uint64
	Unsolicited       uint64
	RendezvousTimeout uint64
	Errors            uint64
	ProxyClients      uint64
	ProxyFanout       uint64
	ProxyDrops        uint64
	RecvCount         uint64
	RecvSize          uint64
	RSSISum           int64
	LQISum            int64
}

func Snap() Snapshot {
	return Snapshot{
		FrameRx:           atomic.LoadUint64(&localFrameRx),
		FrameTx:           atomic.LoadUint64(&localFrameTx),
		Malformed:         atomic.LoadUint64(&localMalformed),
		UnknownCode:       atomic.LoadUint64(&localUnknownCode),
		Unsolicited:       atomic.LoadUint64(&localUnsolicited),
		RendezvousTimeout: atomic.LoadUint64(&localRendezvousTmo),
		Errors:            atomic.LoadUint64(&localErrors),
		ProxyClients:      atomic.LoadUint64(&localProxyClients),
		ProxyFanout:       atomic.LoadUint64(&localProxyFanout),
		ProxyDrops:        atomic.LoadUint64(&localProxyDrops),
		RecvCount:         atomic.LoadUint64(&recvCount),
		RecvSize:          atomic.LoadUint64(&recvSize),
		RSSISum:           atomic.LoadInt64(&rssiSum),
		LQISum:            atomic.LoadInt64(&lqiSum),
	}
}

func IncFrameRx() {
	FrameRx.Inc()
	atomic.AddUint64(&localFrameRx, 1)
}

func IncFrameTx() {
	FrameTx.Inc()
	atomic.AddUint64(&localFrameTx, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

func IncUnknownCode() {
	UnknownCodeFrames.Inc()
	atomic.AddUint64(&localUnknownCode, 1)
}

func IncUnsolicited() {
	UnsolicitedReplies.Inc()
	atomic.AddUint64(&localUnsolicited, 1)
}

func IncRendezvousTimeout() {
	RendezvousTimeouts.Inc()
	atomic.AddUint64(&localRendezvousTmo, 1)
}

func SetDispatchQueueDepth(n int) { DispatchQueueDepth.Set(float64(n)) }
func SetWriteQueueDepth(n int)    { WriteQueueDepth.Set(float64(n)) }

func IncSubscriptionDrop(kind string) {
	SubscriptionDrops.WithLabelValues(kind).Inc()
}

func SetProxyClients(n int) {
	ProxyClients.Set(float64(n))
	atomic.StoreUint64(&localProxyClients, uint64(n))
}

func SetProxyBroadcastFanout(n int) {
	ProxyBroadcastFanout.Set(float64(n))
	atomic.StoreUint64(&localProxyFanout, uint64(n))
}

func IncProxyBroadcastDrop() {
	ProxyBroadcastDrops.Inc()
	atomic.AddUint64(&localProxyDrops, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// RecordRecv folds one datagram/MAC reception into the rolling throughput
// and signal-quality counters (ported from the original Stats object).
func RecordRecv(size int, rssi int8, lqi uint8) {
	atomic.AddUint64(&recvCount, 1)
	atomic.AddUint64(&recvSize, uint64(size))
	atomic.AddInt64(&rssiSum, int64(rssi))
	atomic.AddInt64(&lqiSum, int64(lqi))
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error of each kind doesn't pay registration latency.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrFrameCodec, ErrLinkIO, ErrUnknownCode, ErrUnsolicited,
		ErrRendezvous, ErrInvalidArg, ErrProxyRemote, ErrDeviceNoMatch,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
