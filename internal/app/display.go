package app

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/edward-yakop/go-mirror/api/filecache"
	"github.com/edward-yakop/go-mirror/internal/core"
)

// printProgress rewrites a single console line per sample. When the
// server did not report a content length only bytes and rate are shown.
func printProgress(p core.Progress) {
	if p.TotalBytes < 0 {
		fmt.Printf("\rDownloaded %s (%s/s)", formatBytes(p.Bytes), formatBytes(int64(p.BytesPerSec)))
		return
	}

	fmt.Printf("\rProgress: %5.1f%% %s/%s %s/s ETA %s",
		p.Percent,
		formatBytes(p.Bytes),
		formatBytes(p.TotalBytes),
		formatBytes(int64(p.BytesPerSec)),
		p.Remaining.Round(time.Second),
	)
}

func printSuccess(f filecache.File, elapsed time.Duration) {
	color.Green("Mirrored %s (%s) in %s", f.Path, formatBytes(f.Size), elapsed.Round(time.Millisecond))
}

func printFailure(url string, err error) {
	color.Red("Mirror of %s failed: %v", url, err)
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.2f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}
