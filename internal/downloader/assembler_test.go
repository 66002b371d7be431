package downloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"parafetch/pkg/models"
)

func writeScratch(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestAssemble_OrdersBySegmentIndexRegardlessOfInputOrder(t *testing.T) {
	dir := t.TempDir()

	segments := []models.SegmentRecord{
		{SegmentIndex: 2, ScratchPath: writeScratch(t, dir, "f.part2", "GHIJ")},
		{SegmentIndex: 0, ScratchPath: writeScratch(t, dir, "f.part0", "ABCD")},
		{SegmentIndex: 1, ScratchPath: writeScratch(t, dir, "f.part1", "EF")},
	}

	finalPath := filepath.Join(dir, "f.bin")
	require.NoError(t, Assemble(segments, finalPath))

	got, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	require.Equal(t, "ABCDEFGHIJ", string(got))
}

func TestAssemble_MissingScratchFileFailsWithoutDeletingFinal(t *testing.T) {
	dir := t.TempDir()

	segments := []models.SegmentRecord{
		{SegmentIndex: 0, ScratchPath: writeScratch(t, dir, "f.part0", "AB")},
		{SegmentIndex: 1, ScratchPath: filepath.Join(dir, "f.part1")}, // never written
	}

	finalPath := filepath.Join(dir, "f.bin")
	err := Assemble(segments, finalPath)
	require.ErrorIs(t, err, models.ErrAssemblyFailed)

	_, statErr := os.Stat(finalPath)
	require.NoError(t, statErr, "partial final file should remain for debugging")
}

func TestCleanupScratch_RemovesAllFiles(t *testing.T) {
	dir := t.TempDir()

	segments := []models.SegmentRecord{
		{SegmentIndex: 0, ScratchPath: writeScratch(t, dir, "f.part0", "A")},
		{SegmentIndex: 1, ScratchPath: writeScratch(t, dir, "f.part1", "B")},
	}

	CleanupScratch(segments)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCleanupScratch_ToleratesAlreadyMissingFiles(t *testing.T) {
	segments := []models.SegmentRecord{
		{SegmentIndex: 0, ScratchPath: "/does/not/exist.part0"},
	}
	require.NotPanics(t, func() { CleanupScratch(segments) })
}
