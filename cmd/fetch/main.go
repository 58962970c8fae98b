// Command fetch downloads and converts a single video without the server,
// useful for backfilling the library from a shell.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"

	"github.com/lukudoko/videothing/internal/downloader"
	"github.com/lukudoko/videothing/internal/media"
)

func main() {
	url := flag.String("url", "", "URL of the video file (required)")
	dir := flag.String("dir", ".", "Directory to download into")
	keepOriginal := flag.Bool("keep-original", false, "Keep the source file after conversion")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *url == "" {
		flag.Usage()
		os.Exit(2)
	}

	downloadBar := newBar("[cyan][1/2][reset] Downloading...")
	path, err := downloader.NewClient().Fetch(*url, *dir, func(percentage float64, speed, eta string) {
		_ = downloadBar.Set(int(percentage))
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "\ndownload failed: %v\n", err)
		os.Exit(1)
	}
	_ = downloadBar.Finish()
	fmt.Println()

	convertBar := newBar("[cyan][2/2][reset] Converting...")
	converter := media.NewConverter(media.Options{DeleteOriginal: !*keepOriginal})
	result := converter.Convert(filepath.Dir(path), filepath.Base(path), func(percentage float64) {
		_ = convertBar.Set(int(percentage))
	})
	_ = convertBar.Finish()
	fmt.Println()

	switch result.Status {
	case media.StatusSuccess:
		fmt.Printf("done: %s\n", result.OutputFile)
	case media.StatusSkipped:
		fmt.Printf("skipped: %s\n", result.Message)
	default:
		fmt.Fprintf(os.Stderr, "conversion failed: %s\n", result.Message)
		os.Exit(1)
	}
}

func newBar(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetDescription(description),
	)
}
