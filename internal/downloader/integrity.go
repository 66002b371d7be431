package downloader

import (
	"fmt"
	"os"

	"parafetch/pkg/models"
)

// Verify compares the final artifact's on-disk length against the
// probed total. This is size fidelity only, no checksum or cryptographic
// verification. On mismatch the file is left in place so a caller can
// inspect it.
func Verify(path string, expectedTotal int64) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat final file: %w", err)
	}

	if info.Size() != expectedTotal {
		return fmt.Errorf("%w: expected %d bytes, got %d", models.ErrIntegrityMismatch, expectedTotal, info.Size())
	}

	return nil
}
