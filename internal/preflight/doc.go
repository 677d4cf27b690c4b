// Package preflight runs environment checks before gamescout touches its
// data directory: free disk space, write access and the open-file limit.
// Callers can add their own checks for configuration and stores.
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.Run(ctx,
//	    preflight.DiskSpace(dataDir),
//	    preflight.WritePermissions(dataDir),
//	    preflight.FileDescriptors(),
//	)
//	if preflight.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
