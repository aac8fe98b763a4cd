//go:build !linux

package link

// ttyLock is a no-op outside Linux; advisory flock(2) locking is a Linux-
// specific convenience and not available portably via x/sys/unix across all
// build targets this module supports.
type ttyLock struct{}

func lockTTY(path string) (*ttyLock, error) {
	return &ttyLock{}, nil
}

func (l *ttyLock) Unlock() error { return nil }
