package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"parafetch/internal/store"
	"parafetch/internal/transport"
	"parafetch/pkg/models"
)

// Scheduler owns a set of Workers running against a planned segment list
// and aggregates their progress and outcomes on a single inbound channel:
// one aggregate channel here, one inbound task channel per worker.
type Scheduler struct {
	Transport transport.Transport
	Store     store.SegmentStore
	Logger    *slog.Logger
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// RunPool spawns exactly workerCount workers sharing a FIFO queue of
// pending segments: each worker is re-fed directly from the queue as it
// finishes a task, until the queue is empty.
func (s *Scheduler) RunPool(ctx context.Context, url string, segments []models.SegmentRecord, workerCount, maxRetries int, cb models.Callbacks) ([]models.SegmentRecord, error) {
	return s.run(ctx, url, segments, workerCount, maxRetries, cb, true)
}

// RunFixed spawns one worker per outstanding segment, statically bound;
// there is no shared queue and no re-feeding.
func (s *Scheduler) RunFixed(ctx context.Context, url string, segments []models.SegmentRecord, maxRetries int, cb models.Callbacks) ([]models.SegmentRecord, error) {
	pendingCount := 0
	for _, seg := range segments {
		if seg.Status != models.SegmentCompleted {
			pendingCount++
		}
	}
	return s.run(ctx, url, segments, pendingCount, maxRetries, cb, false)
}

func (s *Scheduler) run(ctx context.Context, url string, segments []models.SegmentRecord, workerCount, maxRetries int, cb models.Callbacks, pooled bool) ([]models.SegmentRecord, error) {
	statuses := make(map[int]models.SegmentStatus, len(segments))
	scratch := make(map[int]string, len(segments))
	var total int64
	for _, seg := range segments {
		statuses[seg.SegmentIndex] = seg.Status
		scratch[seg.SegmentIndex] = seg.ScratchPath
		total += seg.Size()
	}

	pending := make([]models.SegmentRecord, 0, len(segments))
	var alreadyDone int64
	for _, seg := range segments {
		if seg.Status != models.SegmentCompleted {
			pending = append(pending, seg)
		} else {
			alreadyDone += seg.Size()
		}
	}

	final := func() []models.SegmentRecord {
		out := make([]models.SegmentRecord, len(segments))
		for i, seg := range segments {
			seg.Status = statuses[seg.SegmentIndex]
			out[i] = seg
		}
		return out
	}

	if workerCount == 0 || len(pending) == 0 {
		return final(), nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan models.WorkerMessage, workerCount*4)
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		w := &Worker{ID: i, Transport: s.Transport}
		go func() {
			defer wg.Done()
			w.Serve(runCtx, out)
		}()
	}

	handles := make(map[int]chan<- models.SegmentTask, workerCount)
	next := 0
	bytesTotal := alreadyDone
	var abortErr error
	liveWorkers := workerCount

	markInProgress := func(seg models.SegmentRecord) {
		statuses[seg.SegmentIndex] = models.SegmentInProgress
		if s.Store != nil {
			if err := s.Store.UpdateStatus(seg.ScratchPath, models.SegmentInProgress); err != nil {
				s.logger().Warn("failed to persist in-progress status", "segment", seg.SegmentIndex, "error", err)
			}
		}
	}

	feedOrClose := func(workerID int) {
		handle := handles[workerID]
		if abortErr == nil && next < len(pending) {
			seg := pending[next]
			next++
			markInProgress(seg)
			handle <- models.SegmentTask{URL: url, Segment: seg, MaxRetries: maxRetries}
			return
		}
		close(handle)
		liveWorkers--
	}

	for liveWorkers > 0 {
		msg := <-out

		switch msg.Kind {
		case models.MessageReady:
			handles[msg.WorkerID] = msg.Handle
			if pooled {
				feedOrClose(msg.WorkerID)
				continue
			}

			if abortErr == nil && msg.WorkerID < len(pending) {
				seg := pending[msg.WorkerID]
				markInProgress(seg)
				msg.Handle <- models.SegmentTask{URL: url, Segment: seg, MaxRetries: maxRetries}
			} else {
				close(msg.Handle)
				liveWorkers--
			}

		case models.MessageBytesDownloaded:
			bytesTotal += msg.BytesN
			cb.Progress(models.Percent(bytesTotal, total))

		case models.MessageSegmentDone:
			statuses[msg.SegmentIndex] = models.SegmentCompleted
			if s.Store != nil {
				if err := s.Store.UpdateStatus(scratch[msg.SegmentIndex], models.SegmentCompleted); err != nil {
					s.logger().Warn("failed to persist completed status", "segment", msg.SegmentIndex, "error", err)
				}
			}
			if pooled {
				feedOrClose(msg.WorkerID)
			} else {
				close(handles[msg.WorkerID])
				liveWorkers--
			}

		case models.MessageSegmentError:
			statuses[msg.SegmentIndex] = models.SegmentFailed
			if s.Store != nil {
				if err := s.Store.UpdateStatus(scratch[msg.SegmentIndex], models.SegmentFailed); err != nil {
					s.logger().Warn("failed to persist failed status", "segment", msg.SegmentIndex, "error", err)
				}
			}
			if abortErr == nil {
				abortErr = fmt.Errorf("%w: segment %d: %s", models.ErrSegmentFailed, msg.SegmentIndex, msg.Reason)
				s.logger().Error("segment failed, aborting run", "segment", msg.SegmentIndex, "reason", msg.Reason)
				cancel()
			}
			if pooled {
				feedOrClose(msg.WorkerID)
			} else {
				close(handles[msg.WorkerID])
				liveWorkers--
			}
		}
	}

	wg.Wait()

	if abortErr != nil {
		CleanupScratch(segments)
		return final(), abortErr
	}

	return final(), nil
}
