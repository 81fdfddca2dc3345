package timer

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ilocn/pomo/internal/proc"
)

func TestMain(m *testing.M) {
	lockRetryInterval = 2 * time.Millisecond
	os.Exit(m.Run())
}

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "timer.lock")
}

func TestAcquireAndRelease(t *testing.T) {
	t.Parallel()
	path := lockPath(t)
	pid := os.Getpid()

	if err := acquireLock(path, pid, time.Second); err != nil {
		t.Fatalf("acquireLock: %v", err)
	}
	holder, err := proc.ReadPID(path)
	if err != nil {
		t.Fatalf("ReadPID: %v", err)
	}
	if holder != pid {
		t.Errorf("holder = %d, want %d", holder, pid)
	}

	releaseLock(path, pid)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file survived release")
	}
}

func TestAcquireHeldByLiveProcessIsBusy(t *testing.T) {
	t.Parallel()
	path := lockPath(t)

	// Our own pid is certainly alive, so the claim cannot be reclaimed.
	if err := claimLock(path, os.Getpid()); err != nil {
		t.Fatalf("claimLock: %v", err)
	}
	err := acquireLock(path, os.Getpid(), 20*time.Millisecond)
	if !errors.Is(err, ErrBusy) {
		t.Errorf("err = %v, want ErrBusy", err)
	}
	if _, serr := os.Stat(path); serr != nil {
		t.Errorf("lock file disturbed by failed acquire: %v", serr)
	}
}

func TestAcquireReclaimsDeadHolder(t *testing.T) {
	t.Parallel()
	path := lockPath(t)
	if err := claimLock(path, 4194000); err != nil {
		t.Fatalf("claimLock: %v", err)
	}

	start := time.Now()
	if err := acquireLock(path, os.Getpid(), time.Second); err != nil {
		t.Fatalf("acquireLock over dead holder: %v", err)
	}
	if waited := time.Since(start); waited > 500*time.Millisecond {
		t.Errorf("reclaim waited %v instead of retrying immediately", waited)
	}
	holder, err := proc.ReadPID(path)
	if err != nil || holder != os.Getpid() {
		t.Errorf("holder = %d (%v), want own pid", holder, err)
	}
}

func TestReclaimRemovesLockStillHeldByDeadPid(t *testing.T) {
	t.Parallel()
	path := lockPath(t)
	if err := claimLock(path, 4194000); err != nil {
		t.Fatalf("claimLock: %v", err)
	}
	reclaimLock(path, 4194000)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("dead holder's lock survived reclaim")
	}
}

func TestReclaimLeavesRewrittenLockAlone(t *testing.T) {
	t.Parallel()
	path := lockPath(t)

	// The waiter observed dead pid 4194000, but by the time it reclaims,
	// another process has already reclaimed and claimed with a live pid.
	if err := claimLock(path, os.Getpid()); err != nil {
		t.Fatalf("claimLock: %v", err)
	}
	reclaimLock(path, 4194000)
	holder, err := proc.ReadPID(path)
	if err != nil {
		t.Fatalf("reclaim removed a lock it no longer observed: %v", err)
	}
	if holder != os.Getpid() {
		t.Errorf("holder = %d, want live claimant %d", holder, os.Getpid())
	}
}

func TestReleaseOnlyRemovesOwnLock(t *testing.T) {
	t.Parallel()
	path := lockPath(t)
	if err := claimLock(path, os.Getpid()); err != nil {
		t.Fatalf("claimLock: %v", err)
	}
	releaseLock(path, os.Getpid()+1)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("foreign release removed the lock: %v", err)
	}
}

func TestBreakLock(t *testing.T) {
	t.Parallel()
	path := lockPath(t)
	if err := claimLock(path, os.Getpid()); err != nil {
		t.Fatalf("claimLock: %v", err)
	}
	if err := BreakLock(path); err != nil {
		t.Fatalf("BreakLock: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lock file survived BreakLock")
	}
	if err := BreakLock(path); err != nil {
		t.Errorf("BreakLock on missing file: %v", err)
	}
}

func TestLockIsMutuallyExclusive(t *testing.T) {
	t.Parallel()
	path := lockPath(t)

	// The occupancy count must never exceed one while the lock is held.
	// Every goroutine claims with the live process pid so the dead-holder
	// reclaim can never fire mid-section.
	pid := os.Getpid()
	var (
		wg     sync.WaitGroup
		inside atomic.Int32
		done   atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := acquireLock(path, pid, 5*time.Second); err != nil {
				t.Errorf("acquireLock: %v", err)
				return
			}
			if n := inside.Add(1); n != 1 {
				t.Errorf("%d holders inside the critical section", n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			done.Add(1)
			releaseLock(path, pid)
		}()
	}
	wg.Wait()
	if got := done.Load(); got != 10 {
		t.Errorf("completed sections = %d, want 10", got)
	}
}
