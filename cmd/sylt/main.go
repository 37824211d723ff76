// sylt - the command line entry point for compiling and running sylt
// programs.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/sylt-lang/sylt/cache"
	"github.com/sylt-lang/sylt/compiler"
	"github.com/sylt-lang/sylt/manifest"
	"github.com/sylt-lang/sylt/pkg/bytecode"
	"github.com/sylt-lang/sylt/stdlib"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	checkOnly := flag.Bool("check", false, "Typecheck the program and exit without running it")
	skipCheck := flag.Bool("skip-check", false, "Run without typechecking first")
	disasm := flag.Bool("disasm", false, "Print the compiled bytecode and exit")
	outImage := flag.String("o", "", "Write a compiled image to the given file and exit")
	runImage := flag.String("image", "", "Run a previously compiled image file")
	noCache := flag.Bool("no-cache", false, "Bypass the compiled image cache")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sylt [options] [entry.sy]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles and runs a sylt program. Without an entry file, looks for a\n")
		fmt.Fprintf(os.Stderr, "sylt.toml in the current directory or a parent and uses its entry.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sylt main.sy                 # Typecheck, then run\n")
		fmt.Fprintf(os.Stderr, "  sylt -check main.sy          # Typecheck only\n")
		fmt.Fprintf(os.Stderr, "  sylt -o main.img main.sy     # Compile to an image\n")
		fmt.Fprintf(os.Stderr, "  sylt -image main.img         # Run a compiled image\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(1, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	externs := stdlib.NewRegistry()

	if *runImage != "" {
		data, err := os.ReadFile(*runImage)
		if err != nil {
			fail("reading image: %v", err)
		}
		prog, err := bytecode.DecodeImage(data, externs)
		if err != nil {
			fail("loading image: %v", err)
		}
		if err := bytecode.Run(prog, externs); err != nil {
			fail("%v", err)
		}
		return
	}

	entry := flag.Arg(0)
	var m *manifest.Manifest
	if entry == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fail("%v", err)
		}
		m, err = manifest.FindAndLoad(cwd)
		if err != nil {
			fail("%v", err)
		}
		entry = m.EntryPath()
		if !m.TypecheckEnabled() {
			*skipCheck = true
		}
	}

	tree, perrs := compiler.LoadProg(entry)
	if len(perrs) != 0 {
		for _, e := range perrs {
			fmt.Fprintf(os.Stderr, "Error: %v\n", e)
		}
		os.Exit(1)
	}

	prog, cerrs := bytecode.Compile(tree, externs)
	if len(cerrs) != 0 {
		for _, e := range cerrs {
			fmt.Fprintf(os.Stderr, "Error: %v\n", e)
		}
		os.Exit(1)
	}

	if *disasm {
		fmt.Print(bytecode.Disassemble(prog))
		return
	}

	if !*skipCheck {
		if err := bytecode.TypeCheck(prog, externs); err != nil {
			fail("%v", err)
		}
	}
	if *checkOnly {
		return
	}

	if *outImage != "" {
		data, err := bytecode.EncodeImage(prog)
		if err != nil {
			fail("encoding image: %v", err)
		}
		if err := os.WriteFile(*outImage, data, 0o644); err != nil {
			fail("writing image: %v", err)
		}
		if *verbose {
			fmt.Printf("Wrote %s (%d bytes)\n", *outImage, len(data))
		}
		return
	}

	if m != nil && !*noCache {
		storeImage(m, tree, prog, *verbose)
	}

	if err := bytecode.Run(prog, externs); err != nil {
		fail("%v", err)
	}
}

// storeImage records the compiled image in the project cache so tools
// can fetch it by source digest later. Cache trouble never blocks a
// run.
func storeImage(m *manifest.Manifest, tree *compiler.Prog, prog *bytecode.Program, verbose bool) {
	sources := map[string]string{}
	for _, mod := range tree.Modules {
		src, err := os.ReadFile(mod.Path)
		if err != nil {
			return
		}
		sources[mod.Path] = string(src)
	}
	digest := cache.Digest(sources)

	c, err := cache.Open(m.CachePath())
	if err != nil {
		warn(verbose, "opening cache: %v", err)
		return
	}
	defer c.Close()

	if _, err := c.Get(digest); err == nil {
		return
	} else if !errors.Is(err, cache.ErrMiss) {
		warn(verbose, "reading cache: %v", err)
		return
	}

	data, err := bytecode.EncodeImage(prog)
	if err != nil {
		warn(verbose, "encoding image: %v", err)
		return
	}
	if err := c.Put(digest, data); err != nil {
		warn(verbose, "writing cache: %v", err)
		return
	}
	if verbose {
		fmt.Printf("Cached image %s (%d bytes)\n", digest[:12], len(data))
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func warn(verbose bool, format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
	}
}
