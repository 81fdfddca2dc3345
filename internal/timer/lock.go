package timer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilocn/pomo/internal/proc"
)

// ErrBusy reports that another process held the timer lock for the whole
// acquisition window.
var ErrBusy = errors.New("timer is busy")

// lockRetryInterval is how long acquireLock sleeps between claim attempts.
// Tests shorten it.
var lockRetryInterval = 50 * time.Millisecond

// acquireLock claims the lock file for pid, waiting up to timeout for a
// live holder to release it. The claim is an exclusive create, so exactly
// one process wins each round. A lock whose holder is no longer alive is
// removed and re-contested rather than waited on.
func acquireLock(path string, pid int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := claimLock(path, pid)
		if err == nil {
			return nil
		}
		if !os.IsExist(err) {
			return fmt.Errorf("claim lock: %w", err)
		}
		holder, rerr := proc.ReadPID(path)
		if rerr == nil && !proc.Alive(holder) {
			reclaimLock(path, holder)
			continue
		}
		if os.IsNotExist(rerr) {
			continue
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s held by another process", ErrBusy, filepath.Base(path))
		}
		time.Sleep(lockRetryInterval)
	}
}

// reclaimLock removes a lock left behind by a dead holder. The file is
// re-read first: a lock already rewritten by another claimant since the
// stale read is left alone. Two waiters interleaving in the instant
// between re-read and remove can still both reclaim, so the window is
// narrowed here, not closed.
func reclaimLock(path string, holder int) {
	again, err := proc.ReadPID(path)
	if err != nil || again != holder {
		return
	}
	os.Remove(path)
}

func claimLock(path string, pid int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "%d\n", pid)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

// releaseLock removes the lock only when pid still owns it.
func releaseLock(path string, pid int) {
	proc.RemovePID(path, pid)
}

// BreakLock force-removes the lock file regardless of owner. Recovery
// only; a missing lock is not an error.
func BreakLock(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("break lock: %w", err)
	}
	return nil
}
