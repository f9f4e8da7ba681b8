package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGarate/webdav-backup/internal/cache"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func newSyncTestCache(t *testing.T) *cache.HashCache {
	t.Helper()
	return cache.NewAt(filepath.Join(t.TempDir(), cache.FileName), newTestLogger())
}

// writeTree materializes a map of relative path -> content under dir.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func TestScanFindsAllRegularFiles(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.txt":     "hello",
		"d/b.txt":   "world",
		"d/e/c.txt": "deep",
	})

	scanner, err := NewScanner(newSyncTestCache(t), newTestLogger(), false, nil)
	require.NoError(t, err)

	result, err := scanner.Scan(dir)
	require.NoError(t, err)
	require.Len(t, result.All, 3)

	rels := make(map[string]*FileRecord)
	for _, rec := range result.All {
		rels[rec.RelativePath] = rec
	}
	require.Contains(t, rels, "a.txt")
	require.Contains(t, rels, "d/b.txt")
	require.Contains(t, rels, "d/e/c.txt")

	rec := rels["a.txt"]
	assert.Equal(t, int64(5), rec.Size)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", rec.Checksum)
	assert.Equal(t, ChangeChanged, rec.State, "file unknown to the cache is changed")
}

func TestScanRelativePathsAreNormalized(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"d/e/c.txt": "x"})

	scanner, err := NewScanner(newSyncTestCache(t), newTestLogger(), false, nil)
	require.NoError(t, err)

	result, err := scanner.Scan(dir)
	require.NoError(t, err)
	require.Len(t, result.All, 1)

	rec := result.All[0]
	assert.NotContains(t, rec.RelativePath, "\\")
	assert.NotContains(t, rec.RelativePath, "..")
	assert.False(t, filepath.IsAbs(rec.RelativePath))
}

func TestScanClassifiesUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "hello"})

	hashCache := newSyncTestCache(t)
	hashCache.Update(filepath.Join(dir, "a.txt"), "5d41402abc4b2a76b9719d911017c592")

	scanner, err := NewScanner(hashCache, newTestLogger(), false, nil)
	require.NoError(t, err)

	result, err := scanner.Scan(dir)
	require.NoError(t, err)
	require.Len(t, result.All, 1)
	assert.Equal(t, ChangeUnchanged, result.All[0].State)
	assert.Empty(t, result.ToUpload)
	assert.Zero(t, result.TotalBytes)
}

func TestScanForceMarksEverythingChanged(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "hello"})

	hashCache := newSyncTestCache(t)
	hashCache.Update(filepath.Join(dir, "a.txt"), "5d41402abc4b2a76b9719d911017c592")

	scanner, err := NewScanner(hashCache, newTestLogger(), true, nil)
	require.NoError(t, err)

	result, err := scanner.Scan(dir)
	require.NoError(t, err)
	require.Len(t, result.ToUpload, 1)
	assert.Equal(t, ChangeChanged, result.ToUpload[0].State)
}

func TestScanSkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "hello"})
	require.NoError(t, os.Symlink(filepath.Join(dir, "a.txt"), filepath.Join(dir, "link.txt")))
	// A symlinked directory cycle must not hang the walk.
	require.NoError(t, os.Symlink(dir, filepath.Join(dir, "cycle")))

	scanner, err := NewScanner(newSyncTestCache(t), newTestLogger(), false, nil)
	require.NoError(t, err)

	result, err := scanner.Scan(dir)
	require.NoError(t, err)
	require.Len(t, result.All, 1)
	assert.Equal(t, "a.txt", result.All[0].RelativePath)
}

func TestScanHonorsExcludePatterns(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.txt":             "keep",
		"b.tmp":             "drop",
		"node_modules/x.js": "drop",
	})

	scanner, err := NewScanner(newSyncTestCache(t), newTestLogger(), false, []string{"*.tmp", "node_modules"})
	require.NoError(t, err)

	result, err := scanner.Scan(dir)
	require.NoError(t, err)
	require.Len(t, result.All, 1)
	assert.Equal(t, "a.txt", result.All[0].RelativePath)
}

func TestScanUnreadableFileEmitsUnknown(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission bits do not apply to root")
	}

	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "hello", "locked.txt": "secret"})
	require.NoError(t, os.Chmod(filepath.Join(dir, "locked.txt"), 0o000))

	scanner, err := NewScanner(newSyncTestCache(t), newTestLogger(), false, nil)
	require.NoError(t, err)

	result, err := scanner.Scan(dir)
	require.NoError(t, err)
	require.Len(t, result.All, 2)

	for _, rec := range result.All {
		if rec.RelativePath == "locked.txt" {
			assert.Equal(t, ChangeUnknown, rec.State)
			assert.Empty(t, rec.Checksum)
		}
	}
}

func TestScanMissingRootFails(t *testing.T) {
	scanner, err := NewScanner(newSyncTestCache(t), newTestLogger(), false, nil)
	require.NoError(t, err)

	_, err = scanner.Scan(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestScanTotalBytesSumsUploads(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.txt": "hello", "d/b.txt": "world"})

	scanner, err := NewScanner(newSyncTestCache(t), newTestLogger(), false, nil)
	require.NoError(t, err)

	result, err := scanner.Scan(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.TotalBytes)
}
