package sync

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/NGarate/webdav-backup/internal/cache"
	"github.com/NGarate/webdav-backup/pkg/exclude"
)

// Scanner walks the source tree and classifies every regular file against
// the hash cache.
type Scanner struct {
	cache   *cache.HashCache
	log     *logrus.Logger
	force   bool
	matcher *exclude.Matcher
}

// NewScanner creates a scanner. Exclusion patterns are compiled up front;
// an invalid pattern fails construction.
func NewScanner(hashCache *cache.HashCache, log *logrus.Logger, force bool, excludePatterns []string) (*Scanner, error) {
	matcher, err := exclude.NewMatcher(excludePatterns)
	if err != nil {
		return nil, err
	}
	return &Scanner{
		cache:   hashCache,
		log:     log,
		force:   force,
		matcher: matcher,
	}, nil
}

// Scan produces a complete, finite list of records for the tree rooted at
// sourceDir. Unreadable files are logged and emitted with ChangeUnknown so
// the uploader decides; only a failure to walk the root itself is fatal.
func (s *Scanner) Scan(sourceDir string) (*ScanResult, error) {
	root, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source directory: %w", err)
	}

	result := &ScanResult{}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			s.log.Debugf("scan: skipping %s: %v", path, err)
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		relSlash := filepath.ToSlash(rel)

		if d.IsDir() {
			if s.matcher.ShouldExclude(relSlash, true) {
				s.log.Debugf("scan: excluding directory %s", relSlash)
				return filepath.SkipDir
			}
			return nil
		}

		// WalkDir does not follow symlinks, which also rules out
		// symlinked cycles. Sockets, devices and FIFOs are skipped.
		if !d.Type().IsRegular() {
			return nil
		}
		if s.matcher.ShouldExclude(relSlash, false) {
			s.log.Debugf("scan: excluding %s", relSlash)
			return nil
		}

		result.All = append(result.All, s.record(path, relSlash, d))
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", sourceDir, walkErr)
	}

	for _, rec := range result.All {
		if rec.State == ChangeUnchanged {
			continue
		}
		result.ToUpload = append(result.ToUpload, rec)
		result.TotalBytes += rec.Size
	}

	return result, nil
}

// record builds a FileRecord for one regular file.
func (s *Scanner) record(path, relSlash string, d fs.DirEntry) *FileRecord {
	rec := &FileRecord{
		AbsolutePath: path,
		RelativePath: relSlash,
		State:        ChangeUnknown,
	}

	if info, err := d.Info(); err == nil {
		rec.Size = info.Size()
	}

	sum, err := s.cache.ComputeHash(path)
	if err != nil {
		s.log.Debugf("scan: cannot hash %s: %v", relSlash, err)
		return rec
	}
	rec.Checksum = sum

	switch {
	case s.force:
		rec.State = ChangeChanged
	case s.cache.Changed(path, sum):
		rec.State = ChangeChanged
	default:
		rec.State = ChangeUnchanged
	}

	if s.log.IsLevelEnabled(logrus.DebugLevel) && rec.State == ChangeChanged {
		s.log.Debugf("scan: %s changed", relSlash)
	}

	return rec
}
