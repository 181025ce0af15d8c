package pdf

import (
	"errors"
	"io/fs"
	"os"
	"runtime"
	"syscall"
	"time"
)

// Platform holds everything that differs between operating systems: the
// Ghostscript executable names, the preset, cleanup timing, and how to
// terminate a process or force-delete a file.
type Platform struct {
	Name                string
	Executable          string
	AlternateExecutable string

	// Preset is the Ghostscript -dPDFSETTINGS value
	Preset string

	// CleanupDelay is the wait between process close and the first reclaim attempt
	CleanupDelay time.Duration

	// BackoffBase is the first reclaim retry delay; it doubles per attempt
	BackoffBase time.Duration

	// ShellDelete returns the argv of the last-resort delete command
	ShellDelete func(path string) []string

	// Terminate delivers the termination signal on timeout
	Terminate func(p *os.Process) error

	busyErrnos []syscall.Errno
}

// Windows numeric error codes: ACCESS_DENIED, SHARING_VIOLATION, LOCK_VIOLATION.
const (
	winErrorAccessDenied     syscall.Errno = 5
	winErrorSharingViolation syscall.Errno = 32
	winErrorLockViolation    syscall.Errno = 33
)

var platforms = map[string]Platform{
	"windows": {
		Name:                "windows",
		Executable:          "gswin64c",
		AlternateExecutable: "gswin32c",
		Preset:              "/screen",
		CleanupDelay:        3 * time.Second,
		BackoffBase:         time.Second,
		ShellDelete: func(path string) []string {
			return []string{"cmd", "/C", "del", "/F", "/Q", path}
		},
		Terminate: func(p *os.Process) error {
			return p.Kill()
		},
		busyErrnos: []syscall.Errno{winErrorAccessDenied, winErrorSharingViolation, winErrorLockViolation},
	},
	"darwin": unixPlatform("darwin"),
	"linux":  unixPlatform("linux"),
}

func unixPlatform(name string) Platform {
	return Platform{
		Name:         name,
		Executable:   "gs",
		Preset:       "/ebook",
		CleanupDelay: 2 * time.Second,
		BackoffBase:  500 * time.Millisecond,
		ShellDelete: func(path string) []string {
			return []string{"rm", "-f", path}
		},
		Terminate: func(p *os.Process) error {
			return p.Signal(syscall.SIGTERM)
		},
		busyErrnos: []syscall.Errno{syscall.EBUSY, syscall.ETXTBSY, syscall.EACCES, syscall.EPERM},
	}
}

// PlatformFor resolves the strategy for a GOOS value; unknown systems get the
// unix defaults.
func PlatformFor(goos string) Platform {
	if p, ok := platforms[goos]; ok {
		return p
	}
	return unixPlatform(goos)
}

// CurrentPlatform resolves the strategy for the running binary.
func CurrentPlatform() Platform {
	return PlatformFor(runtime.GOOS)
}

// IsBusy reports whether err is a transient lock/permission error worth retrying.
func (p Platform) IsBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		for _, busy := range p.busyErrnos {
			if errno == busy {
				return true
			}
		}
	}
	return false
}

// BackoffDelay returns the wait after the given failed attempt (1-based).
func (p Platform) BackoffDelay(attempt int) time.Duration {
	delay := p.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= MaxReclaimBackoff {
			return MaxReclaimBackoff
		}
	}
	if delay > MaxReclaimBackoff {
		return MaxReclaimBackoff
	}
	return delay
}
