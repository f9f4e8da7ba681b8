package webdav

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NGarate/webdav-backup/internal/auth"
)

type recordedRequest struct {
	Method string
	Path   string
	Depth  string
	Auth   string
	Body   []byte
}

// newTestServer returns a server that records requests and answers with
// the given status and body.
func newTestServer(t *testing.T, status int, responseBody string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Depth:  r.Header.Get("Depth"),
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		w.WriteHeader(status)
		w.Write([]byte(responseBody))
	}))
	t.Cleanup(server.Close)
	return server, &requests
}

func newTestClient(t *testing.T, serverURL string) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(serverURL, auth.NewBasicAuth("", ""))
	require.NoError(t, err)
	return client
}

const sampleMultistatus = `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/backup/</d:href>
    <d:propstat>
      <d:prop><d:displayname>backup</d:displayname><d:resourcetype><d:collection/></d:resourcetype></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/backup/a.txt</d:href>
    <d:propstat>
      <d:prop><d:displayname>a.txt</d:displayname><d:getcontentlength>5</d:getcontentlength><d:resourcetype/></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/backup/d/</d:href>
    <d:propstat>
      <d:prop><d:displayname>d</d:displayname><d:resourcetype><d:collection/></d:resourcetype></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

func TestListParsesMultistatus(t *testing.T) {
	server, requests := newTestServer(t, 207, sampleMultistatus)
	client := newTestClient(t, server.URL)

	entries, err := client.List(context.Background(), "backup")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, int64(5), entries[0].Size)
	assert.False(t, entries[0].IsDir)
	assert.Equal(t, "d", entries[1].Name)
	assert.True(t, entries[1].IsDir)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, "PROPFIND", req.Method)
	assert.Equal(t, "1", req.Depth)
	assert.Contains(t, string(req.Body), "propfind")
}

func TestListSendsBasicAuth(t *testing.T) {
	server, requests := newTestServer(t, 207, sampleMultistatus)
	client := newTestClient(t, server.URL)

	_, err := client.List(context.Background(), "")
	require.NoError(t, err)

	req := (*requests)[0]
	assert.Contains(t, req.Auth, "Basic ")
}

func TestListSurfacesConnectivityError(t *testing.T) {
	server, _ := newTestServer(t, 207, sampleMultistatus)
	url := server.URL
	server.Close()

	client := newTestClient(t, url)
	_, err := client.List(context.Background(), "")
	assert.Error(t, err)
}

func TestMkcolOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		outcome MkcolOutcome
		wantErr bool
	}{
		{"created", 201, MkcolCreated, false},
		{"bad request means exists", 400, MkcolExists, false},
		{"method not allowed means exists", 405, MkcolExists, false},
		{"conflict means exists", 409, MkcolExists, false},
		{"server error fails", 500, MkcolFailed, true},
		{"forbidden fails", 403, MkcolFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, requests := newTestServer(t, tt.status, "")
			client := newTestClient(t, server.URL)

			outcome, err := client.Mkcol(context.Background(), "backup/d")
			assert.Equal(t, tt.outcome, outcome)
			if tt.wantErr {
				require.Error(t, err)
				davErr, ok := AsError(err)
				require.True(t, ok)
				assert.Equal(t, tt.status, davErr.StatusCode)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, "MKCOL", (*requests)[0].Method)
		})
	}
}

func TestPutSendsBodyAndPath(t *testing.T) {
	server, requests := newTestServer(t, 201, "")
	client := newTestClient(t, server.URL)

	content := []byte("hello")
	err := client.Put(context.Background(), "backup/a.txt", bytes.NewReader(content), int64(len(content)))
	require.NoError(t, err)

	req := (*requests)[0]
	assert.Equal(t, "PUT", req.Method)
	assert.Equal(t, "/backup/a.txt", req.Path)
	assert.Equal(t, content, req.Body)
}

func TestPutEncodesSegments(t *testing.T) {
	server, requests := newTestServer(t, 201, "")
	client := newTestClient(t, server.URL)

	err := client.Put(context.Background(), "backup/with space/f#.txt", bytes.NewReader([]byte("x")), 1)
	require.NoError(t, err)

	assert.Equal(t, "/backup/with%20space/f%23.txt", (*requests)[0].Path)
}

func TestPutFailureCarriesStatus(t *testing.T) {
	server, _ := newTestServer(t, 507, "")
	client := newTestClient(t, server.URL)

	err := client.Put(context.Background(), "backup/a.txt", bytes.NewReader([]byte("x")), 1)
	require.Error(t, err)

	davErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 507, davErr.StatusCode)
}

func TestCheckExistsAndMissing(t *testing.T) {
	server, requests := newTestServer(t, 207, sampleMultistatus)
	client := newTestClient(t, server.URL)

	exists, err := client.Check(context.Background(), "backup/a.txt")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "0", (*requests)[0].Depth)

	missing, _ := newTestServer(t, 404, "")
	client = newTestClient(t, missing.URL)
	exists, err = client.Check(context.Background(), "backup/nope.txt")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestErrorTemporaryClassification(t *testing.T) {
	assert.True(t, NewError(500, "p", "PUT").Temporary())
	assert.True(t, NewError(503, "p", "PUT").Temporary())
	assert.True(t, NewError(429, "p", "PUT").Temporary())
	assert.False(t, NewError(403, "p", "PUT").Temporary())
	assert.False(t, NewError(404, "p", "PUT").Temporary())
	assert.True(t, NewError(404, "p", "PUT").NotFound())
}

func TestIsTemporary(t *testing.T) {
	assert.False(t, IsTemporary(nil))
	assert.True(t, IsTemporary(NewError(502, "p", "MKCOL")))
	assert.False(t, IsTemporary(NewError(403, "p", "MKCOL")))
	assert.True(t, IsTemporary(assert.AnError), "plain transport errors count as temporary")
}
