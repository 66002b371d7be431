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

// RunSequential fetches url as a single stream directly to destPath. When
// allowResume and rangeSupported both hold and destPath already exists,
// it resumes from the existing file's length instead of restarting; a
// 416 on that resume attempt means the server's resource changed, so the
// partial file is discarded and the fetch restarts from scratch.
func RunSequential(ctx context.Context, t transport.Transport, url, destPath string, total int64, rangeSupported, allowResume bool, cb models.Callbacks) error {
	start, err := resumeOffset(destPath, total, allowResume, rangeSupported)
	if err != nil {
		return err
	}
	if start == total {
		cb.Complete(destPath)
		return nil
	}

	resp, err := fetchFrom(ctx, t, url, start)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		resp.Body.Close()
		if rmErr := os.Remove(destPath); rmErr != nil && !os.IsNotExist(rmErr) {
			return fmt.Errorf("remove stale partial file: %w", rmErr)
		}
		start = 0
		resp, err = t.Get(ctx, url)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrTransportError, err)
		}
		defer resp.Body.Close()
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("%w: unexpected status %d", models.ErrTransportError, resp.StatusCode)
	}

	if err := streamToFile(ctx, destPath, start, total, resp.Body, cb); err != nil {
		return err
	}

	if err := Verify(destPath, total); err != nil {
		return err
	}

	cb.Complete(destPath)
	return nil
}

// resumeOffset decides where a sequential fetch should start: 0 for a
// fresh fetch, or the existing file's length when resuming. A partial
// file longer than total is treated as corrupt and discarded.
func resumeOffset(destPath string, total int64, allowResume, rangeSupported bool) (int64, error) {
	if !allowResume || !rangeSupported {
		if err := os.Remove(destPath); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("remove existing destination file: %w", err)
		}
		return 0, nil
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return 0, nil
	}

	start := info.Size()
	if start > total {
		if err := os.Remove(destPath); err != nil {
			return 0, fmt.Errorf("remove corrupt partial file: %w", err)
		}
		return 0, nil
	}

	return start, nil
}

func fetchFrom(ctx context.Context, t transport.Transport, url string, start int64) (*http.Response, error) {
	var resp *http.Response
	var err error
	if start > 0 {
		resp, err = t.GetFrom(ctx, url, start)
	} else {
		resp, err = t.Get(ctx, url)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransportError, err)
	}
	return resp, nil
}

func streamToFile(ctx context.Context, destPath string, start, total int64, body io.Reader, cb models.Callbacks) error {
	var file *os.File
	var err error
	if start > 0 {
		file, err = os.OpenFile(destPath, os.O_APPEND|os.O_WRONLY, 0o644)
	} else {
		file, err = os.Create(destPath)
	}
	if err != nil {
		return fmt.Errorf("open destination file: %w", err)
	}
	defer file.Close()

	written := start
	buf := make([]byte, 32*1024)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("write destination file: %w", writeErr)
			}
			written += int64(n)
			cb.Progress(models.Percent(written, total))
		}

		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return fmt.Errorf("%w: %v", models.ErrTransportError, readErr)
		}
	}

	return file.Close()
}
