package main

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/motion.trace/internal/db"
)

func runRuns(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	common := addCommonFlags(fs)
	fs.Parse(args)

	cfg, dir, err := common.load()
	if err != nil {
		return err
	}
	name := cfg.GetIndexDB()
	if name == "" {
		return fmt.Errorf("run index is disabled by configuration")
	}
	index, err := db.Open(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer index.Close()

	runs, err := index.ListRuns()
	if err != nil {
		return err
	}
	printRuns(out, runs)
	return nil
}

func printRuns(out io.Writer, runs []db.TraceRun) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tKEY\tSTATUS\tLOCALIZER\tMM/PX\tX START\tFRAMES\tRECORDS\tRUN ID")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%g\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.VideoKey, r.Status, r.Localizer,
			r.ScaleMMPerPixel, r.ReferenceX, r.FramesProcessed, r.RecordsWritten, r.RunID)
	}
	tw.Flush()
}

func runMigrate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	common := addCommonFlags(fs)
	fs.Parse(args)

	cfg, dir, err := common.load()
	if err != nil {
		return err
	}
	name := cfg.GetIndexDB()
	if name == "" {
		name = db.DefaultFileName
	}
	return db.RunMigrateCommand(fs.Args(), filepath.Join(dir, name), out)
}
