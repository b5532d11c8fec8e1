package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tinyopds/tinyopds/pkg/fb2"
	"github.com/tinyopds/tinyopds/pkg/mobi"
)

func main() {
	log := logger.New()

	var opts struct {
		Output string `short:"o" long:"output" default:"out.mobi" description:"A path to write the MOBI to"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/build-mobi <path/to/file.fb2>")
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

	if err := mobi.Convert(doc, out); err != nil {
		log.Err(err).Fatal("mobi build error")
	}
	fmt.Printf("Wrote %s\n", opts.Output)
}
