package models

// ResourceDescriptor is produced by the HTTP Probe. TotalBytes is 0 when
// the server did not report a usable Content-Length; the Coordinator
// treats that as fatal before spawning any worker.
type ResourceDescriptor struct {
	TotalBytes     int64
	RangeSupported bool
}
