package main

import (
	"flag"
	"fmt"
	"os"

	"unknwon.dev/clog/v2"

	"github.com/edward-yakop/go-mirror/internal/app"
)

func main() {
	args := app.ArgsList{}
	flag.StringVar(&args.URL,
		"url", "",
		"source URL to mirror, http or https (*required)")
	flag.StringVar(&args.Name,
		"name", "",
		"local file name, defaults to the last segment of the URL path")
	flag.StringVar(&args.Output,
		"output", ".",
		"destination directory holding the mirrored file and its metadata")
	flag.BoolVar(&args.Verbose,
		"verbose", false,
		"verbose output trace log")
	flag.Parse()

	if args.Verbose {
		_ = clog.NewConsole(0, clog.ConsoleConfig{
			Level: clog.LevelTrace,
		})
	} else {
		_ = clog.NewConsole(0, clog.ConsoleConfig{
			Level: clog.LevelInfo,
		})
	}
	defer clog.Stop()

	opt, err := app.ParseOption(args)
	if err != nil {
		fmt.Println("--------------------------------------------")
		fmt.Printf("Error: %s\n", err)
		fmt.Println("--------------------------------------------")
		fmt.Println("Usage:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Printf("    Source: %s\n", opt.URL)
	fmt.Printf("      Name: %s\n", opt.Name)
	fmt.Printf("    Output: %s\n", opt.Folder)

	if err = app.NewApp(opt).Execute(); err != nil {
		os.Exit(1)
	}
}
