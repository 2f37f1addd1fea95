// Package cli implements the straits command line.
package cli

import (
	"flag"
	"fmt"
	"io"
)

const usage = `usage: straits [flags] <command> [args]

commands:
  compile <file>   print the desugared source (or write it with -o)
  build            compile every source under source_root into out_dir
  watch            build, then rebuild sources as they change
  run <file>       compile and evaluate a file, printing its completion value

flags:
`

type cliOptions struct {
	configPath string
	outPath    string
	reportPath string
	noCache    bool
	verbose    bool
	version    bool
	command    string
	args       []string
}

// parseOptions accepts flags both before and after the command name.
func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("straits", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "Path to straits.toml (default: searched upward from the working directory)")
	fs.StringVar(&opts.outPath, "o", "", "Write compile output to this file instead of stdout")
	fs.StringVar(&opts.reportPath, "report", "", "Write build failures as SARIF to this file")
	fs.BoolVar(&opts.noCache, "no-cache", false, "Bypass the compile cache")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return opts, nil
	}

	opts.command = rest[0]
	if err := fs.Parse(rest[1:]); err != nil {
		return cliOptions{}, err
	}
	opts.args = fs.Args()
	return opts, nil
}

func validateCommand(opts cliOptions) error {
	switch opts.command {
	case "compile", "run":
		if len(opts.args) != 1 {
			return fmt.Errorf("%s requires exactly one file argument", opts.command)
		}
	case "build", "watch":
		if len(opts.args) != 0 {
			return fmt.Errorf("%s takes no arguments", opts.command)
		}
	case "":
		return fmt.Errorf("no command given")
	default:
		return fmt.Errorf("unknown command %q", opts.command)
	}
	if opts.outPath != "" && opts.command != "compile" {
		return fmt.Errorf("-o is only valid with compile")
	}
	if opts.reportPath != "" && opts.command != "build" {
		return fmt.Errorf("-report is only valid with build")
	}
	return nil
}
