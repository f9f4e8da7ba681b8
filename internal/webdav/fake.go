package webdav

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/NGarate/webdav-backup/internal/utils"
)

// Fake is an in-memory Client for tests. It records every call and can be
// programmed to fail specific paths with specific status codes.
type Fake struct {
	mu sync.Mutex

	files map[string][]byte
	dirs  map[string]bool

	// Call recordings, in order of arrival.
	PutCalls   []string
	MkcolCalls []string
	ListCalls  []string

	// Programmable failures.
	ListErr     error
	PutStatus   map[string]int // remote path -> status returned instead of success
	MkcolStatus map[string]int // remote path -> status (400/405/409 map to MkcolExists)

	// putFailures counts down per-path PUT failures so a path can fail
	// once and then succeed.
	putFailures map[string]int

	inFlight    int
	maxInFlight int
}

// NewFake creates an empty fake server.
func NewFake() *Fake {
	return &Fake{
		files:       make(map[string][]byte),
		dirs:        map[string]bool{"": true},
		PutStatus:   make(map[string]int),
		MkcolStatus: make(map[string]int),
		putFailures: make(map[string]int),
	}
}

// FailPutOnce makes the next Put for path fail with the given status.
func (f *Fake) FailPutOnce(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutStatus[path] = status
	f.putFailures[path] = 1
}

// FileContent returns the stored bytes for a remote path.
func (f *Fake) FileContent(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[path]
	return content, ok
}

// HasDir reports whether a collection exists.
func (f *Fake) HasDir(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirs[path]
}

// PutCount returns the number of Put calls recorded for a path.
func (f *Fake) PutCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, p := range f.PutCalls {
		if p == path {
			count++
		}
	}
	return count
}

// MkcolCount returns the number of Mkcol calls recorded for a path.
func (f *Fake) MkcolCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, p := range f.MkcolCalls {
		if p == path {
			count++
		}
	}
	return count
}

// MaxInFlight returns the highest number of concurrent Put calls seen.
func (f *Fake) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// List implements Client.List.
func (f *Fake) List(ctx context.Context, path string) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path = utils.NormalizeRemotePath(path)
	f.ListCalls = append(f.ListCalls, path)

	if f.ListErr != nil {
		return nil, f.ListErr
	}
	if !f.dirs[path] {
		return nil, NewError(404, path, "PROPFIND")
	}

	seen := make(map[string]Entry)
	for file, content := range f.files {
		if utils.ParentRemoteDir(file) == path {
			name := file[strings.LastIndex(file, "/")+1:]
			seen[name] = Entry{Name: name, Size: int64(len(content))}
		}
	}
	for dir := range f.dirs {
		if dir != "" && utils.ParentRemoteDir(dir) == path && dir != path {
			name := dir[strings.LastIndex(dir, "/")+1:]
			seen[name] = Entry{Name: name, IsDir: true}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, seen[name])
	}
	return entries, nil
}

// Mkcol implements Client.Mkcol.
func (f *Fake) Mkcol(ctx context.Context, path string) (MkcolOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path = utils.NormalizeRemotePath(path)
	f.MkcolCalls = append(f.MkcolCalls, path)

	if status, ok := f.MkcolStatus[path]; ok {
		switch status {
		case 400, 405, 409:
			// The server reports the collection as present.
			f.dirs[path] = true
			return MkcolExists, nil
		default:
			return MkcolFailed, NewError(status, path, "MKCOL")
		}
	}
	if f.dirs[path] {
		return MkcolExists, nil
	}
	// WebDAV requires the parent collection to exist.
	if parent := utils.ParentRemoteDir(path); !f.dirs[parent] {
		return MkcolExists, nil
	}

	f.dirs[path] = true
	return MkcolCreated, nil
}

// Put implements Client.Put.
func (f *Fake) Put(ctx context.Context, path string, content io.Reader, size int64) error {
	f.mu.Lock()
	path = utils.NormalizeRemotePath(path)
	f.PutCalls = append(f.PutCalls, path)
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}

	if status, ok := f.PutStatus[path]; ok {
		if remaining := f.putFailures[path]; remaining != 0 {
			if remaining > 0 {
				f.putFailures[path] = remaining - 1
				if f.putFailures[path] == 0 {
					delete(f.PutStatus, path)
					delete(f.putFailures, path)
				}
			}
			f.inFlight--
			f.mu.Unlock()
			return NewError(status, path, "PUT")
		}
		f.inFlight--
		f.mu.Unlock()
		return NewError(status, path, "PUT")
	}
	f.mu.Unlock()

	data, err := io.ReadAll(content)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if err != nil {
		return fmt.Errorf("failed to read upload body: %w", err)
	}
	f.files[path] = data
	return nil
}

// Check implements Client.Check.
func (f *Fake) Check(ctx context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path = utils.NormalizeRemotePath(path)
	if f.dirs[path] {
		return true, nil
	}
	_, ok := f.files[path]
	return ok, nil
}
