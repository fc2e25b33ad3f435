// Command pslower lowers the outputs of a fragment shader to AMD exports.
//
// Usage:
//
//	pslower [options] <input>
//
// Examples:
//
//	pslower shader.ir                          # Lower with default options
//	pslower -gfx gfx11 shader.ir               # Target GFX11
//	pslower -options ps.yaml -o out.ir in.ir   # Options from a YAML file
//	pslower -dump-options -gfx gfx9            # Print the effective options
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/radeon"
	"github.com/gogpu/radeon/amd"
	"github.com/gogpu/radeon/lowerps"
)

var (
	output      = flag.String("o", "", "output file (default: stdout)")
	optionsPath = flag.String("options", "", "YAML file with lowering options")
	gfx         = flag.String("gfx", "", "override the gfx level (e.g. gfx9, gfx10.3, gfx11)")
	color       = flag.String("color", "auto", "highlight output: auto, always or never")
	validate    = flag.Bool("validate", true, "validate IR before and after lowering")
	verbose     = flag.Bool("v", false, "log pass diagnostics to stderr")
	dumpOptions = flag.Bool("dump-options", false, "print the effective options as YAML and exit")
	version     = flag.Bool("version", false, "print version")
)

const pslowerVersion = "0.1.0-dev"

func main() {
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Printf("pslower version %s\n", pslowerVersion)
		return
	}

	if *verbose {
		radeon.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	opts, err := loadOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *dumpOptions {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(&opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding options: %v\n", err)
			os.Exit(1)
		}
		_ = enc.Close()
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		usage()
		os.Exit(1)
	}

	inputPath := args[0]
	source, err := readInput(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	compileOpts := radeon.CompileOptions{
		Lower:    opts,
		Validate: *validate,
		Color:    useColor(),
	}
	lowered, err := radeon.Compile(string(source), compileOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lowering error: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		err = os.WriteFile(*output, []byte(lowered), 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Successfully lowered %s to %s\n", inputPath, *output)
		return
	}

	if _, err = io.WriteString(os.Stdout, lowered); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}
}

// loadOptions reads the -options file, if any, and applies -gfx on top.
func loadOptions() (lowerps.Options, error) {
	opts := lowerps.DefaultOptions()
	if *optionsPath != "" {
		f, err := os.Open(*optionsPath)
		if err != nil {
			return opts, err
		}
		defer f.Close()
		opts, err = lowerps.LoadOptions(f)
		if err != nil {
			return opts, fmt.Errorf("%s: %w", *optionsPath, err)
		}
	}

	if *gfx != "" {
		level, err := amd.ParseGfxLevel(*gfx)
		if err != nil {
			return opts, err
		}
		opts.GfxLevel = level
	}
	return opts, opts.Validate()
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// useColor resolves -color; auto highlights only when writing to a terminal.
func useColor() bool {
	switch *color {
	case "always":
		return true
	case "never":
		return false
	}
	return *output == "" && term.IsTerminal(int(os.Stdout.Fd()))
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: pslower [options] <input.ir>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  pslower shader.ir                        Lower to stdout\n")
	fmt.Fprintf(os.Stderr, "  pslower -gfx gfx11 -o out.ir shader.ir   Lower for GFX11 to a file\n")
	fmt.Fprintf(os.Stderr, "  pslower -options ps.yaml -               Read the shader from stdin\n")
}
