package filecache

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/edward-yakop/go-mirror/internal/misc"
)

const metadataSuffix = "-CacheData.json"

// Sentinel timestamps for the freshness check. neverModified marks
// "no usable local record", forcing a refresh; unknownRemote marks
// "server could not be probed", also forcing a refresh so that an
// unreachable server never pins a stale copy.
var (
	neverModified = time.Time{}
	unknownRemote = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
)

// cacheMetadata is the on-disk record next to the artifact. The
// timestamp is RFC 3339 UTC at second precision with a literal Z,
// e.g. "2024-03-01T12:00:00Z".
type cacheMetadata struct {
	LastModified string `json:"lastModified"`
}

func (c CachedFile) readMetadata() (time.Time, error) {
	b, err := os.ReadFile(c.metadataPath)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "Read metadata ["+c.metadataPath+"] failed")
	}

	var m cacheMetadata
	if err = json.Unmarshal(b, &m); err != nil {
		return time.Time{}, errors.Wrap(err, "Parse metadata ["+c.metadataPath+"] failed")
	}

	t, err := time.Parse(time.RFC3339, m.LastModified)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "Parse metadata timestamp ["+m.LastModified+"] failed")
	}

	return t.UTC(), nil
}

// writeMetadata replaces the whole metadata file, there is never an
// in-place patch.
func (c CachedFile) writeMetadata(t time.Time) error {
	m := cacheMetadata{
		LastModified: misc.ToSecondUTC(t).Format(time.RFC3339),
	}

	b, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "Encode metadata for ["+c.fileName+"] failed")
	}

	if err = os.WriteFile(c.metadataPath, b, 0666); err != nil {
		return errors.Wrap(err, "Write metadata ["+c.metadataPath+"] failed")
	}

	return nil
}
