package proto

import (
	"context"
	"time"
)

// Invoker is the command-calling surface the façade depends on. link.Link
// and proxy.Client both implement it, so ccrf.Device is constructed
// identically whether backed by a direct serial link or a proxy connection.
type Invoker interface {
	Call(ctx context.Context, name string, timeout time.Duration, args ...any) (any, error)
	CallMulti(ctx context.Context, name string, timeout time.Duration, args ...any) (func(func(any, error) bool), error)
}
