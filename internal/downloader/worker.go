package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"parafetch/internal/transport"
	"parafetch/pkg/models"
)

// Worker executes one ranged GET per assigned segment, streaming the
// response body to the segment's scratch file and emitting byte-delta
// progress plus a terminal outcome. Workers share no mutable state with
// each other; the only thing they share with the Scheduler is the
// aggregate message channel and their own inbound task channel.
type Worker struct {
	ID        int
	Transport transport.Transport
}

// Serve announces readiness once (via a Ready message carrying the
// channel the Scheduler should use to hand it tasks), then processes
// SegmentTasks from that channel one at a time until the Scheduler closes
// it. Serve returns once its inbound channel is closed and any in-flight
// task has emitted its terminal outcome.
func (w *Worker) Serve(ctx context.Context, out chan<- models.WorkerMessage) {
	in := make(chan models.SegmentTask)

	out <- models.WorkerMessage{Kind: models.MessageReady, WorkerID: w.ID, Handle: in}

	for task := range in {
		w.runTask(ctx, task, out)
	}
}

// runTask attempts task up to task.MaxRetries+1 times, truncating and
// restarting the scratch file on every attempt (no partial-resume within
// a retry), and emits exactly one terminal message (SegmentDone or
// SegmentError).
func (w *Worker) runTask(ctx context.Context, task models.SegmentTask, out chan<- models.WorkerMessage) {
	seg := task.Segment

	var lastErr error
	for attempt := 0; attempt <= task.MaxRetries; attempt++ {
		if err := w.attempt(ctx, task.URL, seg, out); err != nil {
			lastErr = err
			continue
		}

		out <- models.WorkerMessage{Kind: models.MessageSegmentDone, WorkerID: w.ID, SegmentIndex: seg.SegmentIndex}
		return
	}

	out <- models.WorkerMessage{
		Kind:         models.MessageSegmentError,
		WorkerID:     w.ID,
		SegmentIndex: seg.SegmentIndex,
		Reason:       lastErr.Error(),
	}
}

// attempt performs a single ranged GET and streams the body to the
// segment's scratch file, truncating it open first.
func (w *Worker) attempt(ctx context.Context, url string, seg models.SegmentRecord, out chan<- models.WorkerMessage) error {
	resp, err := w.Transport.GetRange(ctx, url, seg.StartByte, seg.EndByte)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransportError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("%w: expected 206, got %d", models.ErrTransportError, resp.StatusCode)
	}

	f, err := os.Create(seg.ScratchPath)
	if err != nil {
		return fmt.Errorf("open scratch file %s: %w", seg.ScratchPath, err)
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("write scratch file %s: %w", seg.ScratchPath, writeErr)
			}
			out <- models.WorkerMessage{Kind: models.MessageBytesDownloaded, WorkerID: w.ID, BytesN: int64(n)}
		}

		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return fmt.Errorf("%w: %v", models.ErrTransportError, readErr)
		}
	}
}
