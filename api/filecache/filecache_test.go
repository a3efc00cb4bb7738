package filecache

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edward-yakop/go-mirror/internal/misc"
)

var originEpoch = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

// stubOrigin serves one mutable payload with a Last-Modified header and
// counts probe and transfer hits.
type stubOrigin struct {
	mu           sync.Mutex
	body         []byte
	lastModified time.Time
	bumpOnGet    time.Duration
	gets, heads  int
}

func newStubOrigin(t *testing.T, body string) (*stubOrigin, *httptest.Server) {
	o := &stubOrigin{
		body:         []byte(body),
		lastModified: originEpoch,
	}
	server := httptest.NewServer(o)
	t.Cleanup(server.Close)
	return o, server
}

func (o *stubOrigin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	defer o.mu.Unlock()

	w.Header().Set("Last-Modified", o.lastModified.Format(http.TimeFormat))
	switch r.Method {
	case http.MethodHead:
		o.heads++
	case http.MethodGet:
		o.gets++
		_, _ = w.Write(o.body)
		if o.bumpOnGet > 0 {
			o.lastModified = o.lastModified.Add(o.bumpOnGet)
			o.bumpOnGet = 0
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (o *stubOrigin) update(body string, lastModified time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.body = []byte(body)
	o.lastModified = lastModified
}

func (o *stubOrigin) getCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gets
}

func TestGetDownloadsAtMostOnceWhenUnchanged(t *testing.T) {
	origin, server := newStubOrigin(t, "payload v1")
	cf := newCachedFile(t, server.URL)

	f, err := cf.Get()
	require.NoError(t, err)
	fileContains(t, f.Path, "payload v1")

	// Same Last-Modified on both sides counts as fresh.
	f, err = cf.Get()
	require.NoError(t, err)
	fileContains(t, f.Path, "payload v1")
	assert.Equal(t, 1, origin.getCount())
}

func TestGetRedownloadsWhenRemoteNewer(t *testing.T) {
	origin, server := newStubOrigin(t, "payload v1")
	cf := newCachedFile(t, server.URL)

	_, err := cf.Get()
	require.NoError(t, err)

	newLastModified := originEpoch.Add(time.Hour)
	origin.update("payload v2", newLastModified)

	f, err := cf.Get()
	require.NoError(t, err)
	fileContains(t, f.Path, "payload v2")
	assert.Equal(t, 2, origin.getCount())
	assert.Equal(t, newLastModified, cf.LocalLastModified())
}

func TestRefreshRecordsPostDownloadTimestamp(t *testing.T) {
	origin, server := newStubOrigin(t, "payload")
	origin.bumpOnGet = time.Hour
	cf := newCachedFile(t, server.URL)

	require.NoError(t, cf.Refresh())

	// The persisted value is the re-probed one, not the value that
	// triggered the refresh.
	assert.Equal(t, originEpoch.Add(time.Hour), cf.LocalLastModified())
}

func TestMissingMetadataForcesRedownload(t *testing.T) {
	origin, server := newStubOrigin(t, "payload")
	cf := newCachedFile(t, server.URL)

	_, err := cf.Get()
	require.NoError(t, err)
	require.NoError(t, os.Remove(cf.MetadataPath()))

	_, err = cf.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, origin.getCount())
}

func TestCorruptMetadataSelfHeals(t *testing.T) {
	origin, server := newStubOrigin(t, "payload")
	cf := newCachedFile(t, server.URL)

	_, err := cf.Get()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cf.MetadataPath(), []byte("not json"), 0666))

	assert.Equal(t, time.Time{}, cf.LocalLastModified())
	assert.False(t, misc.IsFileExists(cf.MetadataPath()))

	_, err = cf.Get()
	require.NoError(t, err)
	assert.Equal(t, 2, origin.getCount())
}

func TestGetFallsBackToStaleCopyWhenServerGone(t *testing.T) {
	_, server := newStubOrigin(t, "payload v1")
	cf := newCachedFile(t, server.URL)

	_, err := cf.Get()
	require.NoError(t, err)

	// An unreachable server forces a refresh attempt; when that also
	// fails the previous copy is served.
	server.Close()

	f, err := cf.Get()
	require.NoError(t, err)
	fileContains(t, f.Path, "payload v1")
}

func TestGetFailsWhenServerGoneAndNothingCached(t *testing.T) {
	_, server := newStubOrigin(t, "payload")
	cf := newCachedFile(t, server.URL)
	server.Close()

	_, err := cf.Get()
	require.Error(t, err)

	var dErr *DownloadError
	assert.True(t, errors.As(err, &dErr))
	assert.False(t, misc.IsFileExists(cf.Path()))
}

func TestRemoteLastModifiedSentinelOnProbeFailure(t *testing.T) {
	_, server := newStubOrigin(t, "payload")
	cf := newCachedFile(t, server.URL)
	server.Close()

	assert.Equal(t, unknownRemote, cf.RemoteLastModified())
}

func TestRemoteLastModifiedSentinelOnMissingHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Last-Modified header.
	}))
	t.Cleanup(server.Close)

	cf := newCachedFile(t, server.URL)
	assert.Equal(t, unknownRemote, cf.RemoteLastModified())
}

func TestNewRejectsFileNameWithPathSeparators(t *testing.T) {
	for _, name := range []string{"", "a/b", `a\b`} {
		_, err := New(name, "http://localhost/x", createEmptyDir(t))
		assert.Errorf(t, err, "name %q", name)
	}
}

func TestNewCreatesNestedFolder(t *testing.T) {
	folder := filepath.Join(createEmptyDir(t), "a", "b", "c")
	cf, err := New("artifact.bin", "http://localhost/x", folder)
	require.NoError(t, err)
	assert.True(t, misc.IsFileExists(folder))
	assert.Equal(t, filepath.Join(folder, "artifact.bin"), cf.Path())
	assert.Equal(t, filepath.Join(folder, "artifact.bin-CacheData.json"), cf.MetadataPath())
}

func TestNewDirectoryCreateError(t *testing.T) {
	// A plain file where the folder should be makes MkdirAll fail.
	parent := createEmptyDir(t)
	blocker := filepath.Join(parent, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0666))

	_, err := New("artifact.bin", "http://localhost/x", filepath.Join(blocker, "sub"))
	require.Error(t, err)

	var dErr *DirectoryCreateError
	assert.True(t, errors.As(err, &dErr))
}

func newCachedFile(t *testing.T, sourceURL string) *CachedFile {
	cf, err := New("artifact.bin", sourceURL, createEmptyDir(t))
	require.NoError(t, err)
	return cf
}

func fileContains(t *testing.T, path string, expected string) {
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, expected, string(b))
}

func createEmptyDir(t *testing.T) string {
	dir, err := os.MkdirTemp(".", "test")
	assert.NoError(t, err)
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	return dir
}
