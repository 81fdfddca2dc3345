// Package proc probes operating system processes and manages PID marker
// files. It backs the liveness checks behind the timer lock and the
// daemon marker: a marker naming a dead process may be reclaimed, one
// naming a live process may not.
package proc

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// Alive checks if a process with the given PID is still running.
// Uses kill(pid, 0) which works on macOS and Linux without requiring /proc.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 checks if the process exists without sending a real signal.
	err = p.Signal(syscall.Signal(0))
	return err == nil
}

// WritePID records pid at path.
func WritePID(path string, pid int) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// ClaimPID records pid at path with an exclusive create, so racing
// claimants see exactly one winner. The create error is returned as-is
// for os.IsExist checks; deciding whether an existing marker may be
// reclaimed is the caller's business.
func ClaimPID(path string, pid int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(strconv.Itoa(pid))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return werr
}

// ReadPID returns the PID recorded at path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed pid file %s: %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// RemovePID deletes the marker at path only if it still records pid.
// A marker taken over by another process is left alone.
func RemovePID(path string, pid int) {
	current, err := ReadPID(path)
	if err == nil && current == pid {
		os.Remove(path)
	}
}
