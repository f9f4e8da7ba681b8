package webdav

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/NGarate/webdav-backup/internal/auth"
	"github.com/NGarate/webdav-backup/internal/utils"
)

// Entry describes a file or collection returned by List.
type Entry struct {
	Name  string
	Size  int64
	IsDir bool
}

// MkcolOutcome classifies the result of a directory-creation request.
type MkcolOutcome int

const (
	// MkcolCreated means the collection was created by this request.
	MkcolCreated MkcolOutcome = iota
	// MkcolExists means the server reported the collection (or a
	// conflicting resource) already present: status 400, 405 or 409.
	MkcolExists
	// MkcolFailed means any other failure; the error carries details.
	MkcolFailed
)

// Client defines the minimal adapter surface the backup engine needs.
// All paths are forward-slash, without a leading slash; the client is
// responsible for URL-encoding the segments. Implementations never retry.
type Client interface {
	// List returns the direct children of the given remote directory.
	List(ctx context.Context, path string) ([]Entry, error)

	// Mkcol creates a single collection. Status 400/405/409 are reported
	// as MkcolExists rather than an error.
	Mkcol(ctx context.Context, path string) (MkcolOutcome, error)

	// Put stores the content under the given remote path.
	Put(ctx context.Context, path string, content io.Reader, size int64) error

	// Check reports whether a resource exists at the given remote path.
	Check(ctx context.Context, path string) (bool, error)
}

// putTimeout bounds a single PUT including the body transfer.
const putTimeout = 60 * time.Second

// HTTPClient implements Client over plain HTTP with Basic auth.
type HTTPClient struct {
	auth       auth.Provider
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewHTTPClient creates a WebDAV client for the given server base URL.
func NewHTTPClient(serverURL string, authProvider auth.Provider) (*HTTPClient, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("server URL cannot be empty")
	}
	if authProvider == nil {
		return nil, fmt.Errorf("auth provider cannot be nil")
	}

	client := &http.Client{
		Timeout: putTimeout,
		Transport: &http.Transport{
			MaxIdleConns:    10,
			IdleConnTimeout: 30 * time.Second,
		},
	}

	return &HTTPClient{
		auth:       authProvider,
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		userAgent:  "webdav-backup/1.0",
		httpClient: client,
	}, nil
}

// buildURL constructs the full URL for a normalized remote path.
func (c *HTTPClient) buildURL(remotePath string) string {
	encoded := utils.EncodeRemotePath(utils.NormalizeRemotePath(remotePath))
	if encoded == "" {
		return c.baseURL + "/"
	}
	return c.baseURL + "/" + encoded
}

// createRequest creates an HTTP request with the common headers set.
func (c *HTTPClient) createRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", method, err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", c.auth.AuthHeader())

	return req, nil
}

// List implements Client.List via PROPFIND with depth 1.
func (c *HTTPClient) List(ctx context.Context, dirPath string) ([]Entry, error) {
	url := c.buildURL(dirPath)
	body := propfindBody()

	req, err := c.createRequest(ctx, "PROPFIND", url, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", "1")
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.ContentLength = int64(len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute PROPFIND request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, NewError(resp.StatusCode, dirPath, "PROPFIND")
	}

	multistatus, err := parseMultistatus(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PROPFIND response: %w", err)
	}

	return multistatus.entries(url), nil
}

// Mkcol implements Client.Mkcol.
func (c *HTTPClient) Mkcol(ctx context.Context, dirPath string) (MkcolOutcome, error) {
	req, err := c.createRequest(ctx, "MKCOL", c.buildURL(dirPath), nil)
	if err != nil {
		return MkcolFailed, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return MkcolFailed, fmt.Errorf("failed to execute MKCOL request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated:
		return MkcolCreated, nil
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusMethodNotAllowed,
		resp.StatusCode == http.StatusConflict:
		return MkcolExists, nil
	default:
		return MkcolFailed, NewError(resp.StatusCode, dirPath, "MKCOL")
	}
}

// Put implements Client.Put.
func (c *HTTPClient) Put(ctx context.Context, filePath string, content io.Reader, size int64) error {
	ctx, cancel := context.WithTimeout(ctx, putTimeout)
	defer cancel()

	req, err := c.createRequest(ctx, "PUT", c.buildURL(filePath), content)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if size > 0 {
		req.ContentLength = size
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute PUT request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NewError(resp.StatusCode, filePath, "PUT")
	}

	return nil
}

// Check implements Client.Check via PROPFIND with depth 0.
func (c *HTTPClient) Check(ctx context.Context, remotePath string) (bool, error) {
	body := propfindBody()
	req, err := c.createRequest(ctx, "PROPFIND", c.buildURL(remotePath), strings.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Depth", "0")
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.ContentLength = int64(len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to execute PROPFIND request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 400 {
		return false, NewError(resp.StatusCode, remotePath, "PROPFIND")
	}

	return true, nil
}
