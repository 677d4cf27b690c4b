package preflight

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"
)

// MinDiskSpaceBytes is the minimum required free disk space (50MB).
const MinDiskSpaceBytes = 50 * 1024 * 1024

// DiskSpace checks that the filesystem holding path has room for the
// catalog. path need not exist yet.
func DiskSpace(path string) Check {
	return func(context.Context) CheckResult {
		const name = "disk_space"

		var stat unix.Statfs_t
		if err := unix.Statfs(existingParent(path), &stat); err != nil {
			return Fail(name, fmt.Sprintf("failed to check disk space: %v", err))
		}

		available := stat.Bavail * uint64(stat.Bsize)
		msg := fmt.Sprintf("%s free (minimum: %s)", formatBytes(available), formatBytes(MinDiskSpaceBytes))
		if available < MinDiskSpaceBytes {
			return Fail(name, msg)
		}
		return Pass(name, msg)
	}
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
