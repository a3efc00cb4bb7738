package app

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/edward-yakop/go-mirror/api/filecache"
	"github.com/edward-yakop/go-mirror/internal/core"
	"github.com/edward-yakop/go-mirror/internal/misc"
)

var log = misc.NewLogger("App", 2)

type ArgsList struct {
	Verbose bool
	URL     string
	Name    string
	Output  string
}

// AppOption mirror options
type AppOption struct {
	URL    string
	Name   string
	Folder string
}

// ParseOption parse input command line
func ParseOption(args ArgsList) (*AppOption, error) {
	u, err := url.Parse(args.URL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid url parameter [%s]", args.URL)
	}

	name := args.Name
	if name == "" {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("unable to derive a file name from [%s], use -name", args.URL)
	}
	if strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid name parameter [%s]", name)
	}

	folder, err := filepath.Abs(args.Output)
	if err != nil {
		return nil, fmt.Errorf("invalid destination folder")
	}

	return &AppOption{
		URL:    args.URL,
		Name:   name,
		Folder: folder,
	}, nil
}

// MirrorApp keeps one local file in sync with its source URL
type MirrorApp struct {
	option AppOption
}

func NewApp(opt *AppOption) *MirrorApp {
	return &MirrorApp{option: *opt}
}

func (a MirrorApp) Execute() error {
	startTime := time.Now()
	log.Trace("Mirroring %s into %s.", a.option.URL, a.option.Folder)

	downloader := core.NewDownloaderWithListener(printProgress)
	cf, err := filecache.NewWithDownloader(a.option.Name, a.option.URL, a.option.Folder, downloader)
	if err != nil {
		log.Error("Mirror setup failed: %v.", err)
		return err
	}

	f, err := cf.Get()
	fmt.Println()
	if err != nil {
		printFailure(a.option.URL, err)
		return err
	}

	printSuccess(f, time.Since(startTime))
	return nil
}
