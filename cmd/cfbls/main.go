// Command cfbls lists the directory tree of a Compound File Binary
// container, or dumps one of its streams to stdout.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	flags "github.com/jessevdk/go-flags"

	"github.com/go-cfb/cfb"
)

type cliOptions struct {
	Extract string `short:"x" long:"extract" description:"path of a stream to dump to stdout, instead of listing"`
	Strict  bool   `long:"strict" description:"promote every diagnostic category to a fatal error"`
	Args    struct {
		File string `positional-arg-name:"file" required:"true"`
	} `positional-args:"yes"`
}

func main() {
	var o cliOptions
	parser := flags.NewParser(&o, flags.Default)
	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}

	opts := openOptions(o.Strict)
	c, err := cfb.OpenFile(o.Args.File, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cfbls: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	if o.Extract != "" {
		if err := dump(c, o.Extract); err != nil {
			fmt.Fprintf(os.Stderr, "cfbls: %v\n", err)
			os.Exit(1)
		}
		return
	}
	list(c.Root(), "")
}

func openOptions(strict bool) []cfb.Option {
	if !strict {
		return nil
	}
	return []cfb.Option{cfb.WithPromote(
		cfb.CategoryHeaderWarning,
		cfb.CategorySectorSize,
		cfb.CategoryMiniSectorSize,
		cfb.CategoryCutoff,
		cfb.CategoryDIFAT,
		cfb.CategoryDirectory,
		cfb.CategoryStreamSizeMismatch,
	)}
}

func list(e *cfb.Entity, indent string) {
	for _, child := range e.Children() {
		if child.IsDir() {
			fmt.Printf("%s%s/\n", indent, child.Name())
			list(child, indent+"  ")
			continue
		}
		fmt.Printf("%s%s (%s, modified %s)\n", indent, child.Name(),
			humanize.Bytes(child.Size()), child.Modified().Format("2006-01-02"))
	}
}

func dump(c *cfb.Container, path string) error {
	sv, err := c.OpenPath(path)
	if err != nil {
		return err
	}
	defer sv.Close()
	_, err = io.Copy(os.Stdout, sv)
	return err
}
