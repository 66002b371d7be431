package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMode_Constants(t *testing.T) {
	require.Equal(t, Mode("sequential"), ModeSequential)
	require.Equal(t, Mode("segmented_pool"), ModeSegmentedPool)
	require.Equal(t, Mode("segmented_fixed"), ModeSegmentedFixed)
}

func TestDownloadRequest_Validate(t *testing.T) {
	base := DownloadRequest{
		URL:                  "https://example.com/file.bin",
		DestinationDirectory: "/tmp/downloads",
		Mode:                 ModeSegmentedPool,
		SegmentCount:         4,
		WorkerCount:          2,
		MaxRetries:           3,
	}

	require.NoError(t, base.Validate())

	tests := []struct {
		name    string
		mutate  func(r DownloadRequest) DownloadRequest
		wantErr error
	}{
		{
			name:    "zero segment count",
			mutate:  func(r DownloadRequest) DownloadRequest { r.SegmentCount = 0; return r },
			wantErr: ErrConfigInvalid,
		},
		{
			name:    "negative worker count",
			mutate:  func(r DownloadRequest) DownloadRequest { r.WorkerCount = -1; return r },
			wantErr: ErrConfigInvalid,
		},
		{
			name:    "negative max retries",
			mutate:  func(r DownloadRequest) DownloadRequest { r.MaxRetries = -1; return r },
			wantErr: ErrConfigInvalid,
		},
		{
			name:    "empty url",
			mutate:  func(r DownloadRequest) DownloadRequest { r.URL = ""; return r },
			wantErr: ErrConfigInvalid,
		},
		{
			name:    "empty destination",
			mutate:  func(r DownloadRequest) DownloadRequest { r.DestinationDirectory = ""; return r },
			wantErr: ErrConfigInvalid,
		},
		{
			name:    "worker count need not be <= segment count",
			mutate:  func(r DownloadRequest) DownloadRequest { r.WorkerCount = 100; r.SegmentCount = 1; return r },
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.mutate(base).Validate()
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCallbacks_NilSafe(t *testing.T) {
	var c Callbacks
	require.NotPanics(t, func() {
		c.Progress(50)
		c.Complete("/tmp/out.bin")
		c.Error("boom")
	})
}

func TestCallbacks_Invoked(t *testing.T) {
	var gotProgress float64
	var gotPath, gotErr string

	c := Callbacks{
		OnProgress: func(p float64) { gotProgress = p },
		OnComplete: func(p string) { gotPath = p },
		OnError:    func(m string) { gotErr = m },
	}

	c.Progress(42.5)
	c.Complete("/tmp/out.bin")
	c.Error("boom")

	require.Equal(t, 42.5, gotProgress)
	require.Equal(t, "/tmp/out.bin", gotPath)
	require.Equal(t, "boom", gotErr)
}
