package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tinyopds/tinyopds/pkg/fb2"
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
		fmt.Println("go run ./cmd/scripts/debug/parse-fb2 <path/to/file.fb2>")
		os.Exit(1)
	}

	f, err := os.Open(args[0])
	if err != nil {
		log.Err(err).Fatal("open error")
	}
	defer f.Close()

	doc, err := fb2.Parse(f)
	if err != nil {
		log.Err(err).Fatal("fb2 parse error")
	}

	fmt.Printf("Title: %s\nAuthor(s): %v\nGenres: %v\nLanguage: %s\n", doc.Title, doc.Authors, doc.Genres, doc.Language())
	if doc.Sequence != "" {
		fmt.Printf("Sequence: %s #%d\n", doc.Sequence, doc.SequenceNo)
	}
	if !doc.Date.IsZero() {
		fmt.Printf("Date: %s\n", doc.Date.Format("2006-01-02"))
	}

	cover := doc.CoverBinary()
	fmt.Printf("Has Cover Data: %v\n", cover != nil)
	if cover != nil {
		fmt.Printf("Cover Content Type: %s\n", cover.ContentType)
	}

	if opts.CoverOutput != "" && cover != nil {
		if err := os.WriteFile(opts.CoverOutput, cover.Data, 0o644); err != nil {
			log.Err(err).Fatal("file write error")
		}
	}
}
