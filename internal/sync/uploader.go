package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	stdsync "sync"

	"github.com/sirupsen/logrus"

	"github.com/NGarate/webdav-backup/internal/cache"
	"github.com/NGarate/webdav-backup/internal/config"
	"github.com/NGarate/webdav-backup/internal/progress"
	"github.com/NGarate/webdav-backup/internal/webdav"
)

// ANSI colors for the final summary.
const (
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorReset  = "\x1b[0m"
)

// Result summarizes a finished run.
type Result struct {
	Total     int
	Succeeded int
	Failed    int
	// UpToDate is true when no file needed uploading.
	UpToDate bool
}

// Uploader is the top-level coordinator: scan, pre-create directories,
// schedule uploads, persist cache state. It owns the hash cache, the
// directory manager, the progress tracker and the scheduler; upload tasks
// share the client adapter and the cache under their own synchronization.
type Uploader struct {
	opts    *config.Options
	client  webdav.Client
	cache   *cache.HashCache
	dirs    *DirManager
	scanner *Scanner
	tracker *progress.Tracker
	log     *logrus.Logger

	// summary receives the colored final line; stdout in production.
	summary io.Writer

	mu       stdsync.Mutex
	uploaded map[string]struct{}
}

// NewUploader wires an uploader from its collaborators. The directory
// manager, scanner and scheduler are constructed internally.
func NewUploader(opts *config.Options, client webdav.Client, hashCache *cache.HashCache, tracker *progress.Tracker, log *logrus.Logger, summary io.Writer) (*Uploader, error) {
	scanner, err := NewScanner(hashCache, log, opts.Force, opts.Exclude)
	if err != nil {
		return nil, err
	}

	return &Uploader{
		opts:     opts,
		client:   client,
		cache:    hashCache,
		dirs:     NewDirManager(client, log),
		scanner:  scanner,
		tracker:  tracker,
		log:      log,
		summary:  summary,
		uploaded: make(map[string]struct{}),
	}, nil
}

// Run executes the full backup session and returns its result. A non-nil
// error means a fatal setup or connectivity failure; per-file failures are
// reported through the result instead.
func (u *Uploader) Run(ctx context.Context) (*Result, error) {
	u.cache.Load()

	// Probe the server before touching anything. On failure the run
	// aborts with no files attempted and the on-disk cache untouched.
	if _, err := u.client.List(ctx, ""); err != nil {
		return nil, fmt.Errorf("WebDAV server unreachable: %w", err)
	}

	// Best-effort cache persistence if the process is told to stop
	// while uploads are still running.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			if err := u.cache.Save(); err != nil {
				u.log.Errorf("failed to save hash cache: %v", err)
			}
		case <-stop:
		}
	}()

	if u.opts.TargetDir != "" {
		if err := u.dirs.Ensure(ctx, u.opts.TargetDir); err != nil {
			u.log.Debugf("target directory: %v", err)
		}
	}

	u.log.Infof("scanning %s", u.opts.SourceDir)
	scan, err := u.scanner.Scan(u.opts.SourceDir)
	if err != nil {
		return nil, err
	}
	u.log.Infof("found %d files, %d to upload", len(scan.All), len(scan.ToUpload))

	if len(scan.ToUpload) == 0 {
		result := &Result{Total: len(scan.All), UpToDate: true}
		u.printSummary(result)
		return result, nil
	}

	tasks := make([]*UploadTask, 0, len(scan.ToUpload))
	for _, rec := range scan.ToUpload {
		tasks = append(tasks, NewUploadTask(rec, u.opts.TargetDir))
	}

	u.dirs.PreCreate(ctx, uniqueParentDirs(tasks))

	u.tracker.Start(len(tasks))

	scheduler := NewScheduler(u.opts.Concurrency)
	for _, task := range tasks {
		task := task
		scheduler.Enqueue(func(ctx context.Context) {
			u.uploadOne(ctx, task)
		})
	}
	scheduler.Start(ctx, func() {
		u.log.Debugf("upload queue drained")
	})

	if err := u.cache.Save(); err != nil {
		u.log.Errorf("failed to save hash cache: %v", err)
	}

	u.tracker.Stop()

	result := &Result{
		Total:     len(tasks),
		Succeeded: u.tracker.Completed(),
		Failed:    u.tracker.Failed(),
	}
	u.printSummary(result)
	return result, nil
}

// uploadOne runs the per-file procedure. Every failure mode is absorbed
// here; the scheduler never sees an error.
func (u *Uploader) uploadOne(ctx context.Context, task *UploadTask) {
	defer func() {
		if r := recover(); r != nil {
			u.log.Errorf("upload %s: %v", task.RemotePath, r)
			u.tracker.RecordFailure()
		}
	}()

	rec := task.Record

	// A relative path uploads at most once per session, even if the
	// same record was queued twice.
	if !u.claim(rec.RelativePath) {
		u.tracker.RecordSuccess()
		return
	}

	switch rec.State {
	case ChangeUnchanged:
		u.tracker.RecordSuccess()
		return
	case ChangeUnknown:
		changed, err := u.cache.HasChanged(rec.AbsolutePath)
		if err != nil {
			u.log.Errorf("cannot read %s: %v", rec.RelativePath, err)
			u.tracker.RecordFailure()
			return
		}
		if !changed {
			u.tracker.RecordSuccess()
			return
		}
	}

	// Cheap after pre-creation, but still correct when pre-creation was
	// skipped or partially failed.
	if err := u.dirs.Ensure(ctx, task.ParentDir); err != nil {
		u.log.Debugf("ensure %s: %v", task.ParentDir, err)
	}

	if err := u.putFile(ctx, task); err != nil {
		u.log.Errorf("upload %s: %v", task.RemotePath, err)
		u.tracker.RecordFailure()
		return
	}

	checksum := rec.Checksum
	if checksum == "" {
		if sum, err := u.cache.ComputeHash(rec.AbsolutePath); err == nil {
			checksum = sum
		}
	}
	if checksum != "" {
		u.cache.Update(rec.AbsolutePath, checksum)
	}

	if u.log.IsLevelEnabled(logrus.DebugLevel) {
		u.log.Debugf("uploaded %s", task.RemotePath)
	}
	u.tracker.RecordSuccess()
}

// putFile streams the local file body to the remote path.
func (u *Uploader) putFile(ctx context.Context, task *UploadTask) error {
	f, err := os.Open(task.Record.AbsolutePath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat local file: %w", err)
	}

	return u.client.Put(ctx, task.RemotePath, f, info.Size())
}

// claim marks a relative path as uploaded for this session. It returns
// false if another task already claimed it.
func (u *Uploader) claim(relPath string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.uploaded[relPath]; ok {
		return false
	}
	u.uploaded[relPath] = struct{}{}
	return true
}

// printSummary writes the colored final line.
func (u *Uploader) printSummary(result *Result) {
	switch {
	case result.UpToDate:
		fmt.Fprintf(u.summary, "%sAll files are up to date%s\n", colorGreen, colorReset)
	case result.Failed == 0:
		fmt.Fprintf(u.summary, "%sAll %d files uploaded%s\n", colorGreen, result.Succeeded, colorReset)
	default:
		fmt.Fprintf(u.summary, "%s%d succeeded, %d failed%s\n", colorYellow, result.Succeeded, result.Failed, colorReset)
	}
}

// uniqueParentDirs returns the distinct parent directories of the tasks
// in first-seen order.
func uniqueParentDirs(tasks []*UploadTask) []string {
	seen := make(map[string]struct{})
	var dirs []string
	for _, task := range tasks {
		if task.ParentDir == "" {
			continue
		}
		if _, ok := seen[task.ParentDir]; ok {
			continue
		}
		seen[task.ParentDir] = struct{}{}
		dirs = append(dirs, task.ParentDir)
	}
	return dirs
}
