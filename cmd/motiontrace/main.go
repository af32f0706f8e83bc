// Command motiontrace calibrates, extracts and plots motion traces from
// high-speed video of a single bright marker.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/banshee-data/motion.trace/internal/version"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "calibrate":
		err = runCalibrate(args, os.Stdin, os.Stdout)
	case "extract":
		err = runExtract(args, os.Stdout)
	case "plot":
		err = runPlot(args, os.Stdout)
	case "runs":
		err = runRuns(args, os.Stdout)
	case "migrate":
		err = runMigrate(args, os.Stdout)
	case "version":
		fmt.Println(version.String())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "motiontrace %s: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`motiontrace - calibration-aware motion trace extraction

Usage: motiontrace <command> [options]

Commands:
  calibrate  Measure the pixel scale and reference line on the first frame
  extract    Extract traces from every video in the working directory
  plot       Render figures and print summaries for finished runs
  runs       List the run index
  migrate    Manage the run index schema
  version    Show motiontrace version
  help       Show this help message

Common Flags:
  -dir <path>      Working directory holding the videos (default: ./Videos)
  -config <file>   JSON configuration file
  -env <file>      .env file (default: .env, ignored when missing)

Environment:
  MOTIONTRACE_* variables override the configuration file, for example
  MOTIONTRACE_FRAME_RATE=240 or MOTIONTRACE_LOCALIZER=region-track.

Examples:
  # Calibrate from two points 50 mm apart and a start line at x=100
  motiontrace calibrate -dir ./shots -p1 40,300 -p2 440,300 -length 50 -x-start 100

  # Calibrate interactively
  motiontrace calibrate -dir ./shots -interactive

  # Extract, writing an annotated preview every 250ms
  motiontrace extract -dir ./shots -preview ./shots/preview.png

  # Render every finished run
  motiontrace plot -dir ./shots`)
}
