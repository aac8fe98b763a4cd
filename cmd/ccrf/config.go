package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ccio/ccrf/ccrf"
)

type appConfig struct {
	device          string
	baud            int
	readTimeout     time.Duration
	callTimeout     time.Duration
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
	mdnsEnable      bool
	mdnsName        string
}

// parseFlags parses global flags, applies CCRF_* environment overrides for
// any flag not explicitly set, and returns the remaining arguments as a
// subcommand name plus its own argument list.
func parseFlags() (cfg *appConfig, sub string, subArgs []string, showVersion bool) {
	cfg = &appConfig{}
	device := flag.String("device", "", "device spec: path, ttyACM<n>, 16-hex serial, [cell:]addr, or unix://socket[@tty] (default: $CCRF_DEV)")
	flag.StringVar(device, "d", "", "shorthand for -device")
	baud := flag.Int("baud", 0, "serial baud rate (0 = link default)")
	readTimeout := flag.Duration("read-timeout", 200*time.Millisecond, "serial read timeout")
	callTimeout := flag.Duration("call-timeout", ccrf.DefaultCallTimeout, "default rendezvous call timeout")
	logFormat := flag.String("log-format", "text", "log format: text|json")
	logLevel := flag.String("log-level", "info", "log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "metrics HTTP listen address (e.g. :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "if >0, periodically log metrics counters")
	mdnsEnable := flag.Bool("mdns-enable", false, "advertise a running proxy daemon over mDNS")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default ccrf-<hostname>)")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.device = *device
	cfg.baud = *baud
	cfg.readTimeout = *readTimeout
	cfg.callTimeout = *callTimeout
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Fprintf(os.Stderr, "environment override error: %v\n", err)
		os.Exit(2)
	}
	if err := cfg.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	args := flag.Args()
	if len(args) > 0 {
		sub, subArgs = args[0], args[1:]
	}
	return cfg, sub, subArgs, *versionFlag
}

func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.readTimeout <= 0 {
		return errors.New("read-timeout must be > 0")
	}
	if c.callTimeout <= 0 {
		return errors.New("call-timeout must be > 0")
	}
	if c.baud < 0 {
		return errors.New("baud must be >= 0")
	}
	return nil
}

// applyEnvOverrides maps CCRF_* environment variables onto cfg, skipping
// any field whose flag was explicitly set on the command line (flags win).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["device"]; !ok {
		if _, ok := set["d"]; !ok {
			if v, ok := get("CCRF_DEV"); ok && v != "" {
				c.device = v
			}
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("CCRF_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.baud = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid CCRF_BAUD: %w", err)
			}
		}
	}
	if _, ok := set["read-timeout"]; !ok {
		if v, ok := get("CCRF_READ_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.readTimeout = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid CCRF_READ_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["call-timeout"]; !ok {
		if v, ok := get("CCRF_CALL_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.callTimeout = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid CCRF_CALL_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("CCRF_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("CCRF_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("CCRF_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("CCRF_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid CCRF_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("CCRF_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("CCRF_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return firstErr
}
