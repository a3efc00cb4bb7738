package filecache

import "fmt"

// DirectoryCreateError reports that the cache folder could not be
// created. It is fatal, nothing can be cached without the folder.
type DirectoryCreateError struct {
	Folder string
	cause  error
}

func (e *DirectoryCreateError) Error() string {
	return fmt.Sprintf("create cache folder [%s] failed: %v", e.Folder, e.cause)
}

func (e *DirectoryCreateError) Unwrap() error {
	return e.cause
}

// DownloadError reports a failed transfer with no local copy to fall
// back to.
type DownloadError struct {
	URL   string
	cause error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download [%s] failed: %v", e.URL, e.cause)
}

func (e *DownloadError) Unwrap() error {
	return e.cause
}
