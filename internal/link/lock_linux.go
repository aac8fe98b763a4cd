//go:build linux

package link

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ttyLock holds an advisory exclusive lock on the tty for the link's
// lifetime, grounded on the original's fcntl.flock usage.
type ttyLock struct {
	f *os.File
}

func lockTTY(path string) (*ttyLock, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s for lock: %v", ErrIO, path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrLockHeld, path, err)
	}
	return &ttyLock{f: f}, nil
}

func (l *ttyLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
