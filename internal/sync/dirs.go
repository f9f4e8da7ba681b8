package sync

import (
	"context"
	"fmt"
	stdsync "sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/NGarate/webdav-backup/internal/utils"
	"github.com/NGarate/webdav-backup/internal/webdav"
)

// DirManager guarantees that the parent chain of every upload exists
// remotely while issuing at most one MKCOL per directory per session.
type DirManager struct {
	client webdav.Client
	log    *logrus.Logger
	retry  *utils.RetryConfig

	mu      stdsync.Mutex
	created map[string]struct{}

	// flights collapses concurrent Ensure calls racing on the same
	// prefix into a single MKCOL.
	flights singleflight.Group
}

// NewDirManager creates a manager with an empty created-set.
func NewDirManager(client webdav.Client, log *logrus.Logger) *DirManager {
	return &DirManager{
		client:  client,
		log:     log,
		retry:   utils.MkcolRetryConfig(),
		created: make(map[string]struct{}),
	}
}

// Ensure makes sure every prefix of path exists remotely. A prefix that
// fails after retries is logged and skipped, but the remaining prefixes
// are still attempted; the upload may succeed if the leaf exists. The
// returned error reports the first failed prefix, if any.
func (m *DirManager) Ensure(ctx context.Context, path string) error {
	path = utils.NormalizeRemotePath(path)
	if path == "" {
		return nil
	}
	if m.known(path) {
		return nil
	}

	var firstErr error
	prefix := ""
	for _, segment := range utils.SplitRemotePath(path) {
		if prefix == "" {
			prefix = segment
		} else {
			prefix = prefix + "/" + segment
		}

		if m.known(prefix) {
			continue
		}
		if err := m.ensurePrefix(ctx, prefix); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// PreCreate ensures every directory in the slice, preserving the caller's
// order for predictable logs. Failures are not fatal here; per-task Ensure
// runs again before each upload.
func (m *DirManager) PreCreate(ctx context.Context, dirs []string) {
	for _, dir := range dirs {
		if err := m.Ensure(ctx, dir); err != nil {
			m.log.Debugf("pre-create %s: %v", dir, err)
		}
	}
}

// known reports whether the prefix was already created or confirmed.
func (m *DirManager) known(prefix string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.created[prefix]
	return ok
}

// ensurePrefix issues one MKCOL chain step, deduplicated across
// concurrent callers and retried on any failure other than "exists".
func (m *DirManager) ensurePrefix(ctx context.Context, prefix string) error {
	_, err, _ := m.flights.Do(prefix, func() (interface{}, error) {
		if m.known(prefix) {
			return nil, nil
		}

		attempt := func() error {
			outcome, err := m.client.Mkcol(ctx, prefix)
			switch outcome {
			case webdav.MkcolCreated:
				m.log.Debugf("created remote directory %s", prefix)
				return nil
			case webdav.MkcolExists:
				return nil
			default:
				if err == nil {
					err = fmt.Errorf("MKCOL %s failed", prefix)
				}
				return err
			}
		}

		if err := utils.RetryWithBackoff(ctx, m.retry, nil, attempt); err != nil {
			m.log.Debugf("failed to create remote directory %s: %v", prefix, err)
			return nil, fmt.Errorf("failed to create remote directory %s: %w", prefix, err)
		}

		m.mu.Lock()
		m.created[prefix] = struct{}{}
		m.mu.Unlock()
		return nil, nil
	})
	return err
}
