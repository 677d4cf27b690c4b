package preflight

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

// MinFileDescriptors is the open-file limit below which bleve and SQLite
// may run out of handles.
const MinFileDescriptors = 256

// FileDescriptors checks the process open-file limit. A low limit is a
// warning, not a failure.
func FileDescriptors() Check {
	return func(context.Context) CheckResult {
		const name = "file_descriptors"

		var rLimit unix.Rlimit
		if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rLimit); err != nil {
			return Warn(name, fmt.Sprintf("failed to check file descriptor limit: %v", err))
		}

		msg := fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
		if rLimit.Cur < MinFileDescriptors {
			r := Warn(name, msg)
			r.Details = "Run 'ulimit -n 1024' to increase the limit"
			return r
		}
		return Pass(name, msg)
	}
}
