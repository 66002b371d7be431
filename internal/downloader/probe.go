// Package downloader implements the segmented-parallel download
// coordinator: probing, planning, worker execution, scheduling,
// sequential fallback, assembly and integrity verification.
package downloader

import (
	"context"
	"fmt"

	"parafetch/internal/transport"
	"parafetch/pkg/models"
)

// Probe issues a HEAD request through t and reports the resource's total
// size and whether it accepts ranged requests. A non-200 response or a
// missing Content-Length surfaces as a zero-value ResourceDescriptor
// (TotalBytes==0), which the Coordinator treats as fatal before spawning
// any worker; Probe itself only fails on a transport-level error.
func Probe(ctx context.Context, t transport.Transport, url string) (models.ResourceDescriptor, error) {
	info, err := t.Head(ctx, url)
	if err != nil {
		return models.ResourceDescriptor{}, fmt.Errorf("%w: %v", models.ErrProbeFailed, err)
	}

	return models.ResourceDescriptor{
		TotalBytes:     info.TotalBytes,
		RangeSupported: info.RangeSupported,
	}, nil
}
