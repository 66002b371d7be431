package downloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"parafetch/pkg/models"
)

func TestVerify_MatchingSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	require.NoError(t, Verify(path, 10))
}

func TestVerify_Mismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(path, []byte("012345"), 0o644))

	err := Verify(path, 10)
	require.ErrorIs(t, err, models.ErrIntegrityMismatch)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "file must not be deleted on mismatch")
}

func TestVerify_MissingFile(t *testing.T) {
	err := Verify(filepath.Join(t.TempDir(), "missing.bin"), 10)
	require.Error(t, err)
}
