package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hurttlocker/bahi/internal/export"
	"github.com/hurttlocker/bahi/internal/ingest"
	"github.com/hurttlocker/bahi/internal/store"
)

type extractArgs struct {
	paths     []string
	format    string
	out       string
	source    string
	save      bool
	recursive bool
}

func parseExtractArgs(args []string) (extractArgs, error) {
	var ea extractArgs
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case (arg == "--format" || arg == "-f") && i+1 < len(args):
			i++
			ea.format = args[i]
		case strings.HasPrefix(arg, "--format="):
			ea.format = strings.TrimPrefix(arg, "--format=")
		case (arg == "--out" || arg == "-o") && i+1 < len(args):
			i++
			ea.out = args[i]
		case strings.HasPrefix(arg, "--out="):
			ea.out = strings.TrimPrefix(arg, "--out=")
		case arg == "--source" && i+1 < len(args):
			i++
			ea.source = args[i]
		case strings.HasPrefix(arg, "--source="):
			ea.source = strings.TrimPrefix(arg, "--source=")
		case arg == "--save":
			ea.save = true
		case arg == "--recursive" || arg == "-r":
			ea.recursive = true
		case arg == ingest.Stdin:
			ea.paths = append(ea.paths, arg)
		case strings.HasPrefix(arg, "-"):
			return ea, fmt.Errorf("unknown flag: %s", arg)
		default:
			ea.paths = append(ea.paths, arg)
		}
	}
	if len(ea.paths) == 0 {
		ea.paths = []string{ingest.Stdin}
	}
	return ea, nil
}

// outputFormat picks --format, else the --out extension, else csv.
func (ea extractArgs) outputFormat() (export.Format, error) {
	if ea.format != "" {
		return export.ParseFormat(ea.format)
	}
	if ext := filepath.Ext(ea.out); ext != "" {
		return export.ParseFormat(ext)
	}
	return export.FormatCSV, nil
}

func runExtract(args []string) error {
	ea, err := parseExtractArgs(args)
	if err != nil {
		return err
	}
	format, err := ea.outputFormat()
	if err != nil {
		return err
	}
	if format == export.FormatXLSX && ea.out == "" {
		return fmt.Errorf("xlsx output needs --out <file>")
	}

	cfg, p, logger, err := setup()
	if err != nil {
		return err
	}
	ctx := context.Background()

	docs, err := ingest.NewEngine().ReadAll(ctx, ea.paths, ingest.Options{Recursive: ea.recursive})
	if err != nil {
		return err
	}
	text := ingest.Join(docs)

	res, err := p.Run(ctx, text)
	if err != nil {
		return err
	}

	if ea.save {
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		source := ea.source
		if source == "" {
			source = strings.Join(ea.paths, ",")
		}
		version := p.Lexicon().Version
		run, reused, err := store.SaveOnce(ctx, s, &store.Run{
			InputHash:      store.HashInput(text, p.Lexicon().Fingerprint()),
			Source:         source,
			LexiconVersion: version,
			Blocks:         len(res.Blocks),
			Degraded:       res.Degraded(),
		}, res.Records)
		if err != nil {
			return err
		}
		if reused {
			logger.Info("input already saved", "run_id", run.ID)
		} else {
			logger.Info("run saved", "run_id", run.ID, "records", run.Records)
		}
	}

	w, closeOut, err := openOutput(ea.out)
	if err != nil {
		return err
	}
	if err := export.Write(w, format, res.Records); err != nil {
		closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return err
	}

	if ea.out != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d records from %d blocks to %s\n", len(res.Records), len(res.Blocks), ea.out)
	}
	if n := res.Degraded(); n > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d block(s) could not be fully processed; see Additional Info\n", n)
	}
	return nil
}

func runFormat(args []string) error {
	var paths []string
	out := ""
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case (arg == "--out" || arg == "-o") && i+1 < len(args):
			i++
			out = args[i]
		case strings.HasPrefix(arg, "--out="):
			out = strings.TrimPrefix(arg, "--out=")
		case arg == ingest.Stdin:
			paths = append(paths, arg)
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			paths = append(paths, arg)
		}
	}
	if len(paths) == 0 {
		paths = []string{ingest.Stdin}
	}

	_, p, _, err := setup()
	if err != nil {
		return err
	}
	docs, err := ingest.NewEngine().ReadAll(context.Background(), paths, ingest.Options{})
	if err != nil {
		return err
	}
	formatted, err := p.Format(ingest.Join(docs))
	if err != nil {
		return err
	}

	w, closeOut, err := openOutput(out)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, formatted+"\n"); err != nil {
		closeOut()
		return err
	}
	return closeOut()
}

// openOutput returns stdout for an empty path, else a created file.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return f, f.Close, nil
}
