package ccrf

import "time"

// DefaultCallTimeout bounds how long a rendezvous-backed call waits for a
// reply before returning rendezvous.ErrTimeout, unless overridden per call
// by the methods that take an explicit timeout.
const DefaultCallTimeout = 5 * time.Second

// Option configures a Device at construction time.
type Option func(*deviceConfig)

type deviceConfig struct {
	baud          int
	readTimeout   time.Duration
	callTimeout   time.Duration
	subscriptionN int
}

func defaultConfig() deviceConfig {
	return deviceConfig{
		baud:          0, // 0 means link.DefaultBaud
		readTimeout:   200 * time.Millisecond,
		callTimeout:   DefaultCallTimeout,
		subscriptionN: 64,
	}
}

// WithBaud overrides the serial baud rate (ignored for proxy-client specs).
func WithBaud(baud int) Option { return func(c *deviceConfig) { c.baud = baud } }

// WithReadTimeout overrides the link's per-read timeout.
func WithReadTimeout(d time.Duration) Option { return func(c *deviceConfig) { c.readTimeout = d } }

// WithCallTimeout overrides the default timeout used by rendezvous-backed
// calls that don't take an explicit timeout argument.
func WithCallTimeout(d time.Duration) Option { return func(c *deviceConfig) { c.callTimeout = d } }

// WithSubscriptionDepth overrides the capacity of the datagram/MAC/event
// subscription queues (overwrite-oldest once full).
func WithSubscriptionDepth(n int) Option { return func(c *deviceConfig) { c.subscriptionN = n } }
