//go:build unix

package settings

import "syscall"

// infinityRlim mirrors RLIM_INFINITY, which POSIX defines as all bits set.
// The standard library's syscall package does not export this constant on
// every unix GOOS, so it is reproduced directly.
const infinityRlim = ^uint64(0)

// supportedMaxConnections reads the process's open-file rlimit and raises
// soft to hard if they differ, the fd-ceiling negotiation from
// proxy_scraper_checker's settings.py:_get_supported_max_connections. No
// third-party library models an OS syscall like RLIMIT_NOFILE; this is
// exactly the standard library's job.
func supportedMaxConnections(logger resourceLogger) (cap int, uncapped bool) {
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		return 0, false
	}

	if limit.Cur != limit.Max {
		raised := syscall.Rlimit{Cur: limit.Max, Max: limit.Max}
		if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &raised); err == nil {
			limit.Cur = limit.Max
		}
	}

	if limit.Cur == infinityRlim {
		return 0, true
	}
	return int(limit.Cur), false
}
