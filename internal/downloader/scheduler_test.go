package downloader

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"parafetch/internal/transport"
	"parafetch/pkg/models"
)

func rangeServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		require.NotEmpty(t, rng)
		start, end, err := parseRange(rng)
		require.NoError(t, err)
		w.WriteHeader(http.StatusPartialContent)
		w.Write(payload[start : end+1])
	}))
}

// parseRange parses a "bytes=start-end" Range header for test fixtures.
func parseRange(header string) (start, end int64, err error) {
	body, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range header %q", header)
	}

	before, after, found := strings.Cut(body, "-")
	if !found {
		return 0, 0, fmt.Errorf("malformed range header %q", header)
	}

	start, err = strconv.ParseInt(before, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	end, err = strconv.ParseInt(after, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func TestScheduler_RunPool_S1Style(t *testing.T) {
	payload := make([]byte, 1_000_000)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	srv := rangeServer(t, payload)
	defer srv.Close()

	dir := t.TempDir()
	segments, err := Plan(int64(len(payload)), 4, dir, "file.bin", "run-1", nil)
	require.NoError(t, err)

	sched := &Scheduler{Transport: transport.New(transport.DefaultOptions())}

	var lastPercent float64
	cb := models.Callbacks{OnProgress: func(p float64) { lastPercent = p }}

	final, err := sched.RunPool(context.Background(), srv.URL, segments, 2, 3, cb)
	require.NoError(t, err)

	for _, seg := range final {
		require.Equal(t, models.SegmentCompleted, seg.Status)
	}
	require.GreaterOrEqual(t, lastPercent, 100.0)

	finalPath := filepath.Join(dir, "file.bin")
	require.NoError(t, Assemble(final, finalPath))
	require.NoError(t, Verify(finalPath, int64(len(payload))))

	got, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	CleanupScratch(final)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1) // only file.bin remains, no .part files
}

func TestScheduler_RunFixed_S2Style(t *testing.T) {
	payload := []byte("ABCDEFGHIJ")
	srv := rangeServer(t, payload)
	defer srv.Close()

	dir := t.TempDir()
	segments, err := Plan(int64(len(payload)), 3, dir, "file.bin", "run-2", nil)
	require.NoError(t, err)

	sched := &Scheduler{Transport: transport.New(transport.DefaultOptions())}
	final, err := sched.RunFixed(context.Background(), srv.URL, segments, 3, models.Callbacks{})
	require.NoError(t, err)

	finalPath := filepath.Join(dir, "file.bin")
	require.NoError(t, Assemble(final, finalPath))

	got, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	require.Equal(t, string(payload), string(got))
}

func TestScheduler_RunPool_AbortsOnSegmentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	dir := t.TempDir()
	segments, err := Plan(100, 4, dir, "file.bin", "run-3", nil)
	require.NoError(t, err)

	sched := &Scheduler{Transport: transport.New(transport.DefaultOptions())}
	var gotErrorMsg string
	cb := models.Callbacks{OnError: func(msg string) { gotErrorMsg = msg }}

	final, err := sched.RunPool(context.Background(), srv.URL, segments, 2, 1, cb)
	require.Error(t, err)
	require.ErrorIs(t, err, models.ErrSegmentFailed)

	hasFailed := false
	for _, seg := range final {
		if seg.Status == models.SegmentFailed {
			hasFailed = true
		}
	}
	require.True(t, hasFailed)

	entries, rdErr := os.ReadDir(dir)
	require.NoError(t, rdErr)
	require.Empty(t, entries, "no .part files should survive an aborted run")

	_ = gotErrorMsg // Scheduler itself does not invoke OnError; Coordinator does.
}

func TestScheduler_RunPool_SucceedsAfterTransientFailures(t *testing.T) {
	payload := []byte("HELLOWORLD")
	var seg2Calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		if rng == "bytes=8-9" && seg2Calls.Add(1) <= 2 {
			// simulate the first two attempts on the last segment failing
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		start, end, parseErr := parseRange(rng)
		require.NoError(t, parseErr)
		w.WriteHeader(http.StatusPartialContent)
		w.Write(payload[start : end+1])
	}))
	defer srv.Close()

	dir := t.TempDir()
	segments, err := Plan(int64(len(payload)), 3, dir, "file.bin", "run-4", nil)
	require.NoError(t, err)

	// Transport-level retries are disabled so the 503s surface to the
	// workers and exercise their own retry path.
	opts := transport.DefaultOptions()
	opts.RetryAttempts = 0

	sched := &Scheduler{Transport: transport.New(opts)}
	var lastPercent float64
	cb := models.Callbacks{OnProgress: func(p float64) { lastPercent = p }}

	final, err := sched.RunPool(context.Background(), srv.URL, segments, 3, 3, cb)
	require.NoError(t, err)
	require.GreaterOrEqual(t, lastPercent, 100.0)

	finalPath := filepath.Join(dir, "file.bin")
	require.NoError(t, Assemble(final, finalPath))
	got, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	require.Equal(t, string(payload), string(got))
}
