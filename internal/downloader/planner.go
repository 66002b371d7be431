package downloader

import (
	"fmt"
	"path/filepath"

	"parafetch/internal/store"
	"parafetch/pkg/models"
)

// scratchSuffix names segment scratch files: "<dir>/<file_name>.part<i>".
const scratchSuffix = ".part"

// Plan partitions [0, total) into n contiguous byte-range segments.
// segment_size is ceil(total/n) for every segment but the last, which
// absorbs whatever remainder the ceil division leaves; starts are always
// one past the previous segment's end so the segments cover [0, total-1]
// exactly once regardless of rounding. When n exceeds total, n is
// clamped down to total, and n is reduced further when ceil sizing would
// leave trailing segments empty (5 bytes in 4 parts plans 3 segments of
// 2, 2 and 1 bytes), so every segment still covers at least one byte.
// Each record is persisted as pending via st (nil st skips persistence,
// useful for planning without a backing store) before Plan returns.
func Plan(total int64, n int, dir, fileName, runID string, st store.SegmentStore) ([]models.SegmentRecord, error) {
	if total <= 0 || n <= 0 {
		return nil, models.ErrConfigInvalid
	}

	if int64(n) > total {
		n = int(total)
	}

	segmentSize := (total + int64(n) - 1) / int64(n)
	n = int((total + segmentSize - 1) / segmentSize)
	records := make([]models.SegmentRecord, n)
	cursor := int64(0)

	for i := 0; i < n; i++ {
		start := cursor
		end := start + segmentSize - 1
		if i == n-1 || end > total-1 {
			end = total - 1
		}

		rec := models.SegmentRecord{
			RunID:        runID,
			SegmentIndex: i,
			StartByte:    start,
			EndByte:      end,
			ScratchPath:  scratchPath(dir, fileName, i),
			Status:       models.SegmentPending,
		}
		records[i] = rec
		cursor = end + 1

		if st != nil {
			if err := st.Put(rec); err != nil {
				return nil, fmt.Errorf("persist segment %d: %w", i, err)
			}
		}
	}

	return records, nil
}

func scratchPath(dir, fileName string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%s%d", fileName, scratchSuffix, index))
}
