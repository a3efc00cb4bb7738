package core

import "time"

// Downloader interface...
type Downloader interface {
	Download(URL string, toFilePath string) (filesize int64, err error)
}

// Progress is one periodic sample of a running transfer. Samples are
// informational only and never affect the transfer itself.
type Progress struct {
	// Bytes is the cumulative number of bytes written so far.
	Bytes int64

	// TotalBytes is the reported content length, -1 when the server
	// did not report one.
	TotalBytes int64

	// Percent completed, -1 when TotalBytes is unknown.
	Percent float64

	// BytesPerSec since the previous sample.
	BytesPerSec float64

	// Remaining is the estimated time to completion, 0 when it cannot
	// be computed.
	Remaining time.Duration
}

// ProgressListener receives one Progress per sampling tick.
type ProgressListener func(p Progress)
