package models

// Percent computes the derived progress value from a running byte total.
// The invariant is only that the result is >= 0 and converges to 100 on
// success; it may briefly exceed 100 if a worker retry re-counts bytes it
// had already reported (see the scheduler's status-based completion
// predicate, which does not rely on this value for correctness).
func Percent(bytesDownloaded, totalBytes int64) float64 {
	if totalBytes <= 0 {
		return 0
	}
	return 100 * float64(bytesDownloaded) / float64(totalBytes)
}
