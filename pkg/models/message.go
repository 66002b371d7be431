package models

// MessageKind discriminates the variants of WorkerMessage.
type MessageKind int

const (
	// MessageReady announces a worker's inbound channel handle to the
	// scheduler. Sent exactly once, before the worker's receive loop.
	MessageReady MessageKind = iota
	// MessageBytesDownloaded reports n>0 bytes just written to a scratch
	// file. The scheduler sums these across all workers for progress.
	MessageBytesDownloaded
	// MessageSegmentDone reports a segment finished successfully.
	MessageSegmentDone
	// MessageSegmentError reports a segment failed after exhausting
	// retries, or the server refused a partial-content request.
	MessageSegmentError
)

// WorkerMessage is the tagged variant emitted by a worker and consumed by
// the scheduler's aggregate inbound channel. Only the fields relevant to
// Kind are populated.
type WorkerMessage struct {
	Kind         MessageKind
	WorkerID     int
	Handle       chan<- SegmentTask // set on MessageReady
	BytesN       int64              // set on MessageBytesDownloaded
	SegmentIndex int                // set on MessageSegmentDone/MessageSegmentError
	Reason       string             // set on MessageSegmentError
}

// SegmentTask is what the scheduler dispatches to a worker's inbound
// channel: enough information to perform one ranged GET without the
// worker needing to consult the Segment Store itself.
type SegmentTask struct {
	URL        string
	Segment    SegmentRecord
	MaxRetries int
}
