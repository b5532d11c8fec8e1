package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tinyopds/tinyopds/pkg/epub"
	"github.com/tinyopds/tinyopds/pkg/fb2"
)

func main() {
	log := logger.New()

	var opts struct {
		Output string `short:"o" long:"output" default:"out.epub" description:"A path to write the EPUB to"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/build-epub <path/to/file.fb2>")
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

	out, err := os.Create(opts.Output)
	if err != nil {
		log.Err(err).Fatal("create file error")
	}
	defer out.Close()

	b := &epub.Builder{}
	if err := b.Build(out, doc, ""); err != nil {
		log.Err(err).Fatal("epub build error")
	}
	fmt.Printf("Wrote %s\n", opts.Output)
}
