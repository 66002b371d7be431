package downloader

import (
	"fmt"
	"io"
	"os"
	"sort"

	"parafetch/pkg/models"
)

// Assemble concatenates each segment's scratch file, in ascending
// segment_index order, into finalPath. If a scratch file is missing it
// fails and leaves finalPath in place for inspection. Scratch
// files are left on disk here; callers delete them via CleanupScratch
// only after a clean run through Verify.
func Assemble(segments []models.SegmentRecord, finalPath string) error {
	ordered := make([]models.SegmentRecord, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].SegmentIndex < ordered[j].SegmentIndex })

	out, err := os.Create(finalPath)
	if err != nil {
		return fmt.Errorf("create final file: %w", err)
	}
	defer out.Close()

	for _, seg := range ordered {
		if err := appendScratch(out, seg.ScratchPath); err != nil {
			return fmt.Errorf("%w: %v", models.ErrAssemblyFailed, err)
		}
	}

	return out.Close()
}

func appendScratch(out *os.File, scratchPath string) error {
	in, err := os.Open(scratchPath)
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = io.Copy(out, in)
	return err
}

// CleanupScratch removes every segment's scratch file, best-effort: a
// missing file is not an error. Callers invoke it on both success and
// abort so no scratch files outlive a run.
func CleanupScratch(segments []models.SegmentRecord) {
	for _, seg := range segments {
		_ = os.Remove(seg.ScratchPath)
	}
}
