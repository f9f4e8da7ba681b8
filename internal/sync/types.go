package sync

import (
	"github.com/NGarate/webdav-backup/internal/utils"
)

// ChangeState classifies a scanned file relative to the hash cache.
type ChangeState int

const (
	// ChangeUnknown means the scanner could not decide; the uploader
	// re-checks at upload time.
	ChangeUnknown ChangeState = iota
	// ChangeUnchanged means the stored hash matches the current content.
	ChangeUnchanged
	// ChangeChanged means the file is new or its content hash differs.
	ChangeChanged
)

// FileRecord describes one regular file found under the source root.
// Records are immutable once emitted by the scanner.
type FileRecord struct {
	// AbsolutePath is the canonical local path.
	AbsolutePath string
	// RelativePath is the path under the source root, normalized to
	// forward slashes. It never contains ".." and never starts with "/".
	RelativePath string
	// Size in bytes at scan time.
	Size int64
	// Checksum is the MD5 hex digest of the contents at scan time. Empty
	// when the file could not be read.
	Checksum string
	// State is the scanner's change classification.
	State ChangeState
}

// ScanResult aggregates the scanner's output.
type ScanResult struct {
	// All holds every file found, in traversal order.
	All []*FileRecord
	// ToUpload holds the subset with State Changed or Unknown.
	ToUpload []*FileRecord
	// TotalBytes sums the sizes of ToUpload.
	TotalBytes int64
}

// UploadTask pairs a record with its resolved remote location.
type UploadTask struct {
	Record *FileRecord
	// RemotePath is targetDir joined with the record's relative path.
	RemotePath string
	// ParentDir is the remote directory component, empty at the root.
	ParentDir string
}

// NewUploadTask resolves the remote paths for a record under targetDir.
func NewUploadTask(record *FileRecord, targetDir string) *UploadTask {
	remotePath := utils.JoinRemote(targetDir, record.RelativePath)
	return &UploadTask{
		Record:     record,
		RemotePath: remotePath,
		ParentDir:  utils.ParentRemoteDir(remotePath),
	}
}
