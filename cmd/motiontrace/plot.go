package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"io"

	"github.com/banshee-data/motion.trace/internal/frame"
	"github.com/banshee-data/motion.trace/internal/fsutil"
	"github.com/banshee-data/motion.trace/internal/render"
	"github.com/banshee-data/motion.trace/internal/security"
	"github.com/banshee-data/motion.trace/internal/tracestore"
	"github.com/banshee-data/motion.trace/internal/video"
)

func runPlot(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("plot", flag.ExitOnError)
	common := addCommonFlags(fs)
	run := fs.String("run", "", "Render only this run key")
	fs.Parse(args)

	cfg, dir, err := common.load()
	if err != nil {
		return err
	}
	store, err := tracestore.NewStore(tracestore.Options{WorkDir: dir, Extensions: cfg.GetVideoExtensions()})
	if err != nil {
		return err
	}

	keys := []string{*run}
	if *run == "" {
		if keys, err = store.Runs(); err != nil {
			return err
		}
	} else if err := security.ValidateRunKey(*run); err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Fprintf(out, "No finished runs in %s\n", dir)
		return nil
	}

	var errs []error
	for _, key := range keys {
		if err := plotRun(store, key, cfg.GetRotation(), out); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func plotRun(store *tracestore.Store, key string, rotation frame.Rotation, out io.Writer) error {
	data, err := store.Load(key)
	if err != nil {
		return err
	}

	var last image.Image
	if data.VideoPath != "" {
		if last, err = video.LastFrame(data.VideoPath, rotation); err != nil {
			fmt.Fprintf(out, "%s: no background frame: %v\n", key, err)
			last = nil
		}
	}

	if err := render.WriteArtifacts(fsutil.OSFileSystem{}, data, last); err != nil {
		return err
	}
	if err := render.Summarize(data.Records).Print(out, key); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s and %s\n\n", data.PNGPath(), data.HTMLPath())
	return nil
}
