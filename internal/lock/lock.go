// Package lock provides cooperative, cross-process file locking via a
// sidecar lock file rather than OS advisory locks, so a lock can be
// inspected and judged stale from any process without holding an open
// file descriptor (spec.md §4.3).
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/cass-memory/cass-memory/internal/types"
)

// staleAfter is how long a lock file may sit unmodified before a competing
// process is allowed to break it.
const staleAfter = 30 * time.Second

// retryInterval is how often WithLock retries acquisition.
const retryInterval = 500 * time.Millisecond

// retryBudget is the total time WithLock spends retrying before giving up.
const retryBudget = 10 * time.Second

// info is the JSON body written into the sidecar lock file.
type info struct {
	PID       int       `json:"pid"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

// Path returns the sidecar lock path for a target file, e.g.
// "playbook.yaml" -> "playbook.yaml.lock".
func Path(target string) string {
	return target + ".lock"
}

// WithLock acquires the sidecar lock for target, runs action, and releases
// the lock unconditionally afterward (mirroring the teacher's
// withLockedFile acquire/defer-release shape in internal/ratchet/chain.go,
// generalized from syscall.Flock to a stale-pid sidecar file).
func WithLock(target, operation string, action func() error) error {
	lockPath := Path(target)
	if err := acquire(lockPath, operation); err != nil {
		return err
	}
	defer os.Remove(lockPath)
	return action()
}

// acquire retries creating the sidecar file exclusively until it succeeds,
// a stale lock is reclaimed, or the retry budget is exhausted.
func acquire(lockPath, operation string) error {
	deadline := time.Now().Add(retryBudget)
	for {
		err := tryCreate(lockPath, operation)
		if err == nil {
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return types.ErrIO("acquire lock", err)
		}
		if stale, breakErr := breakIfStale(lockPath); breakErr != nil {
			return types.ErrIO("inspect lock", breakErr)
		} else if stale {
			continue
		}
		if time.Now().After(deadline) {
			return types.ErrLockTimeout
		}
		time.Sleep(retryInterval)
	}
}

func tryCreate(lockPath, operation string) error {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	body := info{PID: os.Getpid(), Operation: operation, Timestamp: time.Now().UTC()}
	return json.NewEncoder(f).Encode(body)
}

// breakIfStale removes lockPath and returns true if it is older than
// staleAfter or its recorded pid is no longer alive.
func breakIfStale(lockPath string) (bool, error) {
	data, err := os.ReadFile(lockPath)
	if os.IsNotExist(err) {
		// Raced with the holder's own release; caller retries the create.
		return true, nil
	}
	if err != nil {
		return false, err
	}

	var body info
	stale := false
	if err := json.Unmarshal(data, &body); err != nil {
		// Unreadable lock body: treat as stale rather than blocking forever.
		stale = true
	} else {
		stale = time.Since(body.Timestamp) > staleAfter || !pidAlive(body.PID)
	}

	if !stale {
		return false, nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	return true, nil
}

// pidAlive reports whether a process with the given pid is still running.
// Signal 0 performs no-op existence and permission checks per kill(2).
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return !errors.Is(err, os.ErrProcessDone) && !errors.Is(err, syscall.ESRCH)
}

// Info returns the parsed body of an existing lock file, for diagnostics
// (e.g. a `cass-memory lock status` style command or test assertions).
func Info(target string) (pid int, operation string, timestamp time.Time, err error) {
	data, readErr := os.ReadFile(Path(target))
	if readErr != nil {
		return 0, "", time.Time{}, readErr
	}
	var body info
	if err := json.Unmarshal(data, &body); err != nil {
		return 0, "", time.Time{}, fmt.Errorf("parse lock file: %w", err)
	}
	return body.PID, body.Operation, body.Timestamp, nil
}
