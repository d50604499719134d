// Lotus CLI - compiles Lotus packages to WebAssembly text
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("lotus.cli")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	logFile := flag.String("log", "", "Write log output to this file instead of stderr")
	dir := flag.String("C", ".", "Run as if started in this directory")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: lotus [options] <command> [arguments]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles the Lotus project described by the nearest lotus.toml.\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  build    Compile the project and write the module\n")
		fmt.Fprintf(os.Stderr, "  check    Report diagnostics without emitting\n")
		fmt.Fprintf(os.Stderr, "  lsp      Start the language server on stdio\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  lotus build                  # write the output named in lotus.toml\n")
		fmt.Fprintf(os.Stderr, "  lotus build -o game.wat      # custom output\n")
		fmt.Fprintf(os.Stderr, "  lotus -C ../engine check     # check another project\n")
	}
	flag.Parse()

	verbosity := -1
	if *verbose {
		verbosity = 2
	}
	if *logFile != "" {
		commonlog.Configure(verbosity, logFile)
	} else {
		commonlog.Configure(verbosity, nil)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	switch args[0] {
	case "build":
		handleBuildCommand(*dir, args[1:])
	case "check":
		handleCheckCommand(*dir, args[1:])
	case "lsp":
		handleLSPCommand(*dir)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
