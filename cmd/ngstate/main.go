// Command-line interface for reading and writing viewer states.
// Parses existing states, exports their annotations, builds segment properties
// and makes viewer links.

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/janelia-flyem/ngstate/config"
	"github.com/janelia-flyem/ngstate/ngstate"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Path to TOML configuration.  Leave unset for built-in sites.
	configFile = flag.String("config", "", "")

	// Site used for links and remote services.
	siteName = flag.String("site", "", "")
)

const helpMessage = `
ngstate reads, exports and links viewer states

Usage: ngstate [options] <command>

      -config     =string   Path to TOML configuration file.
      -site       =string   Site for links and remote services (default from config).
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

Commands:

	about
	help
	layers      <state.json>
	annotations [-resolution x,y,z] [-expand-tags] [-split-points] [-archived] <state.json> <out.arrow>
	multicut    [-layer name] <state.json>
	segprops    [-id-col c] [-label-col c] [-description-col c] [-string-cols a,b]
	            [-number-cols a,b] [-tag-value-cols a,b] [-tag-bool-cols a,b] <table.arrow> <out.json>
	link        [-shorten] <state.json>
	info        <source>
`

var usage = func() {
	fmt.Printf(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}
	if *runVerbose {
		ngstate.Verbose = true
		ngstate.SetLogMode(ngstate.DebugMode)
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(*configFile); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}
	cfg.Logging.SetLogger()
	defer ngstate.Shutdown()

	if err := DoCommand(os.Stdout, cfg, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
