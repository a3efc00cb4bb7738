// Package filecache maintains a local on-disk mirror of a single remote
// file, re-downloading it only when the server's Last-Modified header
// reports a newer version than the one recorded locally.
package filecache

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/edward-yakop/go-mirror/internal/core"
	"github.com/edward-yakop/go-mirror/internal/misc"
)

const probeTimeout = 10 * time.Second

var log = misc.NewLogger("Cache", 2)

// CachedFile owns one (source URL, artifact file, metadata file)
// triple. Both on-disk paths are derived from fileName and folder, no
// other process is assumed to write to the folder.
type CachedFile struct {
	fileName  string
	sourceURL string
	folder    string

	artifactPath string
	metadataPath string

	probe      *resty.Client
	downloader core.Downloader
}

// File is a handle to the current best-available local copy.
type File struct {
	Path    string
	Size    int64
	ModTime time.Time
}

func New(fileName, sourceURL, folder string) (*CachedFile, error) {
	return NewWithDownloader(fileName, sourceURL, folder, core.NewDownloader())
}

// NewWithDownloader ensures folder exists (creating missing parents)
// and derives the artifact and metadata paths. The injected downloader
// performs the actual transfers.
func NewWithDownloader(fileName, sourceURL, folder string, downloader core.Downloader) (*CachedFile, error) {
	if fileName == "" || strings.ContainsAny(fileName, `/\`) {
		return nil, errors.Errorf("invalid file name [%s]", fileName)
	}

	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, &DirectoryCreateError{Folder: folder, cause: err}
	}

	return &CachedFile{
		fileName:     fileName,
		sourceURL:    sourceURL,
		folder:       folder,
		artifactPath: filepath.Join(folder, fileName),
		metadataPath: filepath.Join(folder, fileName+metadataSuffix),
		probe:        resty.New().SetTimeout(probeTimeout),
		downloader:   downloader,
	}, nil
}

func (c CachedFile) FileName() string {
	return c.fileName
}

func (c CachedFile) SourceURL() string {
	return c.sourceURL
}

func (c CachedFile) Path() string {
	return c.artifactPath
}

func (c CachedFile) MetadataPath() string {
	return c.metadataPath
}

// RemoteLastModified probes the server with a HEAD request and returns
// its Last-Modified timestamp in UTC. Any failure (network, missing
// header, unparsable date) returns a maximum sentinel instead, so an
// unreachable server forces a refresh attempt rather than silently
// trusting the local copy.
func (c CachedFile) RemoteLastModified() time.Time {
	t, ok := c.probeRemote()
	if !ok {
		return unknownRemote
	}
	return t
}

func (c CachedFile) probeRemote() (time.Time, bool) {
	resp, err := c.probe.R().Head(c.sourceURL)
	if err != nil {
		log.Warn("HEAD %s failed: %v.", c.sourceURL, err)
		return time.Time{}, false
	}
	if resp.StatusCode() != http.StatusOK {
		log.Warn("HEAD %s failed %d:%s.", c.sourceURL, resp.StatusCode(), resp.Status())
		return time.Time{}, false
	}

	lastModified := resp.Header().Get("Last-Modified")
	if lastModified == "" {
		log.Warn("HEAD %s returned no Last-Modified header.", c.sourceURL)
		return time.Time{}, false
	}

	t, err := time.Parse(http.TimeFormat, lastModified)
	if err != nil {
		log.Warn("HEAD %s Last-Modified [%s] unparsable: %v.", c.sourceURL, lastModified, err)
		return time.Time{}, false
	}

	return t.UTC(), true
}

// LocalLastModified reads the persisted timestamp. A missing metadata
// file yields a minimum sentinel (forces refresh on first use). A
// corrupt one is deleted and treated the same, a broken cache record
// is no cache record.
func (c CachedFile) LocalLastModified() time.Time {
	if !misc.IsFileExists(c.metadataPath) {
		return neverModified
	}

	t, err := c.readMetadata()
	if err != nil {
		log.Warn("Discarding unreadable metadata %s: %v.", c.metadataPath, err)
		if rErr := misc.RemoveIfExists(c.metadataPath); rErr != nil {
			log.Warn("Remove metadata %s failed: %v.", c.metadataPath, rErr)
		}
		return neverModified
	}

	return t
}

// SetLocalLastModified persists t, normalized to UTC second precision.
func (c CachedFile) SetLocalLastModified(t time.Time) error {
	return c.writeMetadata(t)
}

// Refresh downloads the source into the artifact path, then re-probes
// the server and persists the post-download timestamp. Re-probing after
// the transfer records what is true once the transfer is done, even if
// the remote changed while it ran. When the re-probe fails the previous
// metadata is left untouched, so the next access checks again.
func (c CachedFile) Refresh() error {
	if _, err := c.downloader.Download(c.sourceURL, c.artifactPath); err != nil {
		return &DownloadError{URL: c.sourceURL, cause: err}
	}

	remote, ok := c.probeRemote()
	if !ok {
		log.Warn("Downloaded %s but re-probe failed, keeping previous metadata.", c.sourceURL)
		return nil
	}

	return c.writeMetadata(remote)
}

// Get returns a handle to the current version of the file, downloading
// only when the server reports a newer timestamp than the local record
// or when the artifact is missing. Equal timestamps count as fresh. If
// a needed refresh fails but a previously downloaded copy exists, that
// stale copy is returned instead of an error.
func (c CachedFile) Get() (File, error) {
	if c.isFresh() {
		return c.handle()
	}

	if err := c.Refresh(); err != nil {
		if misc.IsFileExists(c.artifactPath) {
			log.Warn("Refresh of %s failed, serving stale copy: %v.", c.sourceURL, err)
			return c.handle()
		}
		log.Error("Download %s failed with no local fallback: %v.", c.sourceURL, err)
		return File{}, err
	}

	return c.handle()
}

func (c CachedFile) isFresh() bool {
	return misc.IsFileExists(c.artifactPath) &&
		!c.LocalLastModified().Before(c.RemoteLastModified())
}

func (c CachedFile) handle() (File, error) {
	fi, err := os.Stat(c.artifactPath)
	if err != nil {
		return File{}, errors.Wrap(err, "Stat ["+c.artifactPath+"] failed")
	}

	return File{
		Path:    c.artifactPath,
		Size:    fi.Size(),
		ModTime: fi.ModTime(),
	}, nil
}
