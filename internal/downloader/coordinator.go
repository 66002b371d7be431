package downloader

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"

	"parafetch/internal/store"
	"parafetch/internal/transport"
	"parafetch/pkg/models"
)

// Coordinator is the top-level download state machine: it validates the
// request, probes the remote resource, dispatches to the sequential
// downloader or one of the segmented schedulers, assembles the result
// when segmented, and verifies the final artifact's size.
type Coordinator struct {
	Transport transport.Transport
	Store     store.SegmentStore
	Logger    *slog.Logger
}

// New creates a Coordinator. A nil logger defaults to slog.Default().
func New(t transport.Transport, st store.SegmentStore, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{Transport: t, Store: st, Logger: logger}
}

// Run executes req end to end. Exactly one of req.Callbacks.OnComplete or
// OnError fires before Run returns; OnProgress may fire any number of
// times before either. The returned error mirrors whatever was reported
// via OnError, for callers that prefer an error return to a callback.
func (c *Coordinator) Run(ctx context.Context, req models.DownloadRequest) (string, error) {
	cb := req.Callbacks

	if err := req.Validate(); err != nil {
		cb.Error(err.Error())
		return "", err
	}

	if err := os.MkdirAll(req.DestinationDirectory, 0o755); err != nil {
		err = fmt.Errorf("create destination directory: %w", err)
		cb.Error(err.Error())
		return "", err
	}

	fileName := fileNameFromURL(req.URL)
	finalPath := filepath.Join(req.DestinationDirectory, fileName)

	desc, err := Probe(ctx, c.Transport, req.URL)
	if err != nil {
		cb.Error(err.Error())
		return "", err
	}
	if desc.TotalBytes <= 0 {
		cb.Error(models.ErrProbeFailed.Error())
		return "", models.ErrProbeFailed
	}

	c.logger().Info("probed resource",
		"url", req.URL, "total_bytes", desc.TotalBytes, "range_supported", desc.RangeSupported, "mode", req.Mode)

	switch req.Mode {
	case models.ModeSequential:
		err = RunSequential(ctx, c.Transport, req.URL, finalPath, desc.TotalBytes, desc.RangeSupported, req.AllowResume, cb)
	case models.ModeSegmentedPool:
		err = c.runSegmented(ctx, req, desc, finalPath, fileName, true)
	case models.ModeSegmentedFixed:
		err = c.runSegmented(ctx, req, desc, finalPath, fileName, false)
	default:
		err = fmt.Errorf("%w: unknown mode %q", models.ErrConfigInvalid, req.Mode)
	}

	if err != nil {
		cb.Error(err.Error())
		return "", err
	}

	return finalPath, nil
}

func (c *Coordinator) runSegmented(ctx context.Context, req models.DownloadRequest, desc models.ResourceDescriptor, finalPath, fileName string, pooled bool) error {
	runID := req.ResumeRunID
	if runID == "" {
		runID = uuid.NewString()
	}

	segments, err := c.planOrResume(desc.TotalBytes, req.SegmentCount, req.DestinationDirectory, fileName, runID)
	if err != nil {
		return err
	}

	sched := &Scheduler{Transport: c.Transport, Store: c.Store, Logger: c.logger()}

	var final []models.SegmentRecord
	if pooled {
		final, err = sched.RunPool(ctx, req.URL, segments, req.WorkerCount, req.MaxRetries, req.Callbacks)
	} else {
		final, err = sched.RunFixed(ctx, req.URL, segments, req.MaxRetries, req.Callbacks)
	}
	if err != nil {
		return err
	}

	if err := Assemble(final, finalPath); err != nil {
		return err
	}

	if err := Verify(finalPath, desc.TotalBytes); err != nil {
		return err
	}

	CleanupScratch(final)
	req.Callbacks.Complete(finalPath)
	return nil
}

// planOrResume reuses an existing run's segment records when the caller
// supplied a ResumeRunID and the store already has a full plan under it
// (segments already marked completed are then skipped by the
// Scheduler); otherwise it plans a fresh set and persists it.
func (c *Coordinator) planOrResume(total int64, n int, dir, fileName, runID string) ([]models.SegmentRecord, error) {
	if c.Store != nil {
		// A full plan has as many records as Plan would produce for
		// (total, n), which may be fewer than n.
		want := int64(n)
		if want > total {
			want = total
		}
		size := (total + want - 1) / want
		want = (total + size - 1) / size

		existing, err := c.Store.ListByRun(runID)
		if err == nil && int64(len(existing)) == want {
			return existing, nil
		}
	}

	return Plan(total, n, dir, fileName, runID, c.Store)
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// fileNameFromURL derives the destination file name from the URL's last
// path segment. A URL with no usable path segment falls
// back to a fixed name rather than failing the whole request.
func fileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "download"
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "download"
	}
	return name
}
