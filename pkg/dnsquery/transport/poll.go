package transport

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// waitReadable and waitWritable block until fd is ready for the given
// direction or deadline passes, using poll(2) in place of the original
// client's select(2)/SIGALRM combination: poll gives the same readiness
// semantics without installing a signal handler per call.
func waitReadable(fd int, deadline time.Time) (bool, error) {
	return poll(fd, unix.POLLIN, deadline)
}

func waitWritable(fd int, deadline time.Time) (bool, error) {
	return poll(fd, unix.POLLOUT, deadline)
}

func poll(fd int, events int16, deadline time.Time) (bool, error) {
	timeoutMs := int(time.Until(deadline) / time.Millisecond)
	if timeoutMs < 0 {
		timeoutMs = 0
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		n, err := unix.Poll(fds, timeoutMs)
		if err == unix.EINTR {
			remaining := int(time.Until(deadline) / time.Millisecond)
			if remaining < 0 {
				return false, nil
			}
			timeoutMs = remaining
			continue
		}
		if err != nil {
			return false, fmt.Errorf("dnsquery/transport: poll: %w", err)
		}
		if n == 0 {
			return false, nil
		}
		return fds[0].Revents&(events|unix.POLLERR|unix.POLLHUP) != 0, nil
	}
}
