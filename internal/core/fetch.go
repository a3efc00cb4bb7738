package core

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/edward-yakop/go-mirror/internal/misc"
)

const (
	// chunkSize is tuned for large-file throughput.
	chunkSize         = 256 * 1024
	sampleInterval    = time.Second
	connectionTimeout = 10 * time.Second
)

var log = misc.NewLogger("Fetch", 2)

type HTTPDownload struct {
	client      *http.Client
	listener    ProgressListener
	chunkSize   int
	sampleEvery time.Duration
}

func NewDownloader() Downloader {
	return NewDownloaderWithListener(nil)
}

// NewDownloaderWithListener returns a Downloader that reports a Progress
// sample to listener once per second while a transfer is running.
func NewDownloaderWithListener(listener ProgressListener) Downloader {
	return &HTTPDownload{
		client: &http.Client{
			Transport: &http.Transport{
				// Proxy deliberately nil, downloads always go direct.
				Proxy: nil,
				DialContext: (&net.Dialer{
					Timeout: connectionTimeout,
				}).DialContext,
				TLSHandshakeTimeout:   connectionTimeout,
				ResponseHeaderTimeout: connectionTimeout,
			},
		},
		listener:    listener,
		chunkSize:   chunkSize,
		sampleEvery: sampleInterval,
	}
}

func (h HTTPDownload) Download(URL string, toFilePath string) (filesize int64, err error) {
	resp, err := h.client.Get(URL)
	if err != nil {
		return 0, errors.Wrap(err, "Download ["+URL+"] failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("Download %s failed %d:%s.", URL, resp.StatusCode, resp.Status)
		return 0, fmt.Errorf("http error %d:%s", resp.StatusCode, resp.Status)
	}

	return h.saveBodyToDisk(resp.Body, resp.ContentLength, toFilePath)
}

func (h HTTPDownload) saveBodyToDisk(body io.Reader, totalBytes int64, path string) (filesize int64, err error) {
	// Create dir if not exists
	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		err = errors.Wrap(err, "Create folder ["+dir+"] failed")
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		err = errors.Wrap(err, "Create file ["+path+"] failed")
		return
	}

	ticker := time.NewTicker(h.sampleEvery)
	defer ticker.Stop()

	lastSampleAt := time.Now()
	var lastSampleBytes int64

	buf := make([]byte, h.chunkSize)
	for {
		// Consume at most one pending tick between chunks. Sampling is
		// cooperative, the transfer is never preempted.
		select {
		case now := <-ticker.C:
			h.sample(filesize, totalBytes, lastSampleBytes, now.Sub(lastSampleAt))
			lastSampleAt, lastSampleBytes = now, filesize
		default:
		}

		n, rErr := body.Read(buf)
		if n > 0 {
			if _, wErr := f.Write(buf[:n]); wErr != nil {
				h.discard(f, path)
				return 0, errors.Wrap(wErr, "Write ["+path+"] failed")
			}
			filesize += int64(n)
		}
		if rErr == io.EOF {
			break
		}
		if rErr != nil {
			h.discard(f, path)
			return 0, errors.Wrap(rErr, "Read of ["+path+"] body failed")
		}
	}

	if err = f.Close(); err != nil {
		_ = misc.RemoveIfExists(path)
		return 0, errors.Wrap(err, "Close ["+path+"] failed")
	}

	return filesize, nil
}

// discard drops the partially written destination file so that callers
// never observe a truncated artifact.
func (h HTTPDownload) discard(f *os.File, path string) {
	_ = f.Close()
	if err := misc.RemoveIfExists(path); err != nil {
		log.Warn("Remove partial file %s failed: %v.", path, err)
	}
}

func (h HTTPDownload) sample(done, totalBytes, prevDone int64, elapsed time.Duration) {
	if h.listener == nil {
		return
	}

	p := Progress{
		Bytes:      done,
		TotalBytes: totalBytes,
		Percent:    -1,
	}
	if elapsed > 0 {
		p.BytesPerSec = float64(done-prevDone) / elapsed.Seconds()
	}
	if totalBytes < 0 {
		p.TotalBytes = -1
	} else if totalBytes > 0 {
		p.Percent = float64(done) / float64(totalBytes) * 100
		if p.BytesPerSec > 0 {
			p.Remaining = time.Duration(float64(totalBytes-done) / p.BytesPerSec * float64(time.Second))
		}
	}

	h.listener(p)
}
