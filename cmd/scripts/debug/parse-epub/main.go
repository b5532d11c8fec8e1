package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tinyopds/tinyopds/pkg/epub"
)

func main() {
	log := logger.New()

	var opts struct {
		CoverOutput string `short:"o" long:"cover-output" description:"A path to output the cover image"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/parse-epub <path/to/file.epub>")
		os.Exit(1)
	}

	metadata, err := epub.ParseFile(args[0])
	if err != nil {
		log.Err(err).Fatal("epub parse error")
	}

	fmt.Printf("Title: %s\nAuthor(s): %v\nLanguage: %s\n", metadata.Title, metadata.Authors, metadata.Language)
	if metadata.Series != "" {
		fmt.Printf("Series: %s\n", metadata.Series)
	}
	fmt.Printf("Has Cover Data: %v\nCover Mime Type: %s\n", len(metadata.CoverData) > 0, metadata.CoverMime)

	if opts.CoverOutput != "" && metadata.CoverData != nil {
		if err := os.WriteFile(opts.CoverOutput, metadata.CoverData, 0o644); err != nil {
			log.Err(err).Fatal("file write error")
		}
	}
}
