//go:build unix

package dirlock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// tryLock opens the marker at path and takes an exclusive advisory lock on
// it without blocking. A marker that exists but is not locked belongs to a
// holder that is gone and is taken over.
func tryLock(path string) (*os.File, error) {
	_, statErr := os.Stat(path)
	existed := statErr == nil

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePermission)
	if err != nil {
		return nil, err
	}

	err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		_ = f.Close()

		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %v", ErrLockHeld, path)
		}

		return nil, err
	}

	if existed {
		log.Warnf("Reclaiming stale directory lock %v", path)
	}

	return f, nil
}

func unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
