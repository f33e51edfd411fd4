package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/micha2718l/dolphain/internal/analyze"
	"github.com/micha2718l/dolphain/internal/batch"
	"github.com/micha2718l/dolphain/internal/catalog"
	"github.com/micha2718l/dolphain/internal/ears"
	"github.com/micha2718l/dolphain/internal/viz"
	"github.com/micha2718l/dolphain/pkg/logger"
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()
	log := logger.GetLogger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Debugf("executing command: %s", command)

	switch command {
	case "info":
		handleInfo()
	case "wav":
		handleWav()
	case "spectrogram":
		handleSpectrogram()
	case "analyze":
		handleAnalyze()
	case "batch":
		handleBatch()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`dolphain - EARS hydrophone recording analyzer

Usage:
  dolphain info <recording>                Show decoded recording metadata
  dolphain wav <recording> [-o out.wav]    Convert a recording to WAV
  dolphain spectrogram <recording> [-o out.png]  Render a spectrogram image
  dolphain analyze <recording> [flags]     Run the detection pipeline on one file
  dolphain batch <dir|files...> [flags]    Analyze many files with checkpointing

EARS recordings carry numeric extensions such as .130, .190 or .210.

Flags for analyze:
  -mode standard|unique    Scoring weight table (default standard)

Flags for batch:
  -mode standard|unique    Scoring weight table (default standard)
  -checkpoint <path>       Checkpoint JSON path (default checkpoint.json)
  -glob <pattern>          Filename pattern for directory scans (default *.[0-9][0-9][0-9])
  -workers <n>             Parallel workers (default 4)
  -db <path>               Also store results in a SQLite catalog
  -top <n>                 Print the top N results when done (default 10)

Environment:
  DOLPHAIN_LOG_LEVEL       DEBUG, INFO, WARN, ERROR, FATAL
  DOLPHAIN_DB_PATH         Default catalog database path`)
}

func handleInfo() {
	log := logger.GetLogger()
	if len(os.Args) < 3 {
		fmt.Println("Usage: dolphain info <recording>")
		os.Exit(1)
	}
	path := os.Args[2]

	rec, err := ears.ReadFile(path)
	if err != nil {
		log.Fatalf("decode failed: %v", err)
	}

	fmt.Printf("File:        %s\n", path)
	fmt.Printf("Samples:     %d\n", rec.NumSamples())
	fmt.Printf("Sample rate: %d Hz\n", rec.SampleRate)
	fmt.Printf("Duration:    %.3f s\n", rec.Duration())
	fmt.Printf("Start:       %s\n", rec.TimeStart.Format("2006-01-02 15:04:05.000 MST"))
	fmt.Printf("End:         %s\n", rec.TimeEnd.Format("2006-01-02 15:04:05.000 MST"))
	fmt.Printf("Timestamps:  %d header change points\n", len(rec.Timestamps))
}

func handleWav() {
	log := logger.GetLogger()
	args := os.Args[2:]
	if len(args) < 1 {
		fmt.Println("Usage: dolphain wav <recording> [-o out.wav]")
		os.Exit(1)
	}
	path := args[0]

	wavCmd := flag.NewFlagSet("wav", flag.ExitOnError)
	out := wavCmd.String("o", "", "Output WAV path (default: input with .wav extension)")
	wavCmd.Parse(args[1:])

	if *out == "" {
		ext := filepath.Ext(path)
		*out = path[:len(path)-len(ext)] + ".wav"
	}

	rec, err := ears.ReadFile(path)
	if err != nil {
		log.Fatalf("decode failed: %v", err)
	}
	if err := ears.WriteWAV(rec, *out); err != nil {
		log.Fatalf("wav conversion failed: %v", err)
	}
	log.Infof("wrote %s (%.3f s)", *out, rec.Duration())
}

func handleSpectrogram() {
	log := logger.GetLogger()
	args := os.Args[2:]
	if len(args) < 1 {
		fmt.Println("Usage: dolphain spectrogram <recording> [-o out.png]")
		os.Exit(1)
	}
	path := args[0]

	sgCmd := flag.NewFlagSet("spectrogram", flag.ExitOnError)
	out := sgCmd.String("o", "", "Output PNG path (default: input with .png extension)")
	width := sgCmd.Int("width", 2048, "Image width in pixels")
	height := sgCmd.Int("height", 512, "Frequency bins (image height)")
	sgCmd.Parse(args[1:])

	if *out == "" {
		ext := filepath.Ext(path)
		*out = path[:len(path)-len(ext)] + ".png"
	}

	rec, err := ears.ReadFile(path)
	if err != nil {
		log.Fatalf("decode failed: %v", err)
	}
	if err := viz.WritePNG(rec, *out, viz.Options{Width: *width, Height: *height}); err != nil {
		log.Fatalf("spectrogram render failed: %v", err)
	}
	log.Infof("wrote %s", *out)
}

func handleAnalyze() {
	log := logger.GetLogger()
	args := os.Args[2:]
	if len(args) < 1 {
		fmt.Println("Usage: dolphain analyze <recording> [-mode standard|unique]")
		os.Exit(1)
	}
	path := args[0]

	anCmd := flag.NewFlagSet("analyze", flag.ExitOnError)
	mode := anCmd.String("mode", "standard", "Scoring mode")
	anCmd.Parse(args[1:])

	res, err := analyze.File(path, analyze.WithMode(analyze.Mode(*mode)))
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	buf, err := json.MarshalIndent(res.Report, "", "  ")
	if err != nil {
		log.Fatalf("encoding report: %v", err)
	}
	fmt.Println(string(buf))
}

func handleBatch() {
	log := logger.GetLogger()
	args := os.Args[2:]

	inputs, flagArgs := splitBatchArgs(args)
	if len(inputs) == 0 {
		fmt.Println("Usage: dolphain batch <dir|files...> [flags]")
		os.Exit(1)
	}

	batchCmd := flag.NewFlagSet("batch", flag.ExitOnError)
	mode := batchCmd.String("mode", "standard", "Scoring mode")
	cpPath := batchCmd.String("checkpoint", "checkpoint.json", "Checkpoint JSON path")
	glob := batchCmd.String("glob", defaultGlob, "Filename pattern for directory scans")
	workers := batchCmd.Int("workers", 4, "Parallel workers")
	dbPath := batchCmd.String("db", getEnvOrDefault("DOLPHAIN_DB_PATH", ""), "SQLite catalog path")
	topN := batchCmd.Int("top", 10, "Print the top N results")
	batchCmd.Parse(flagArgs)

	files, err := expandInputs(inputs, *glob)
	if err != nil {
		log.Fatalf("collecting inputs: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no files matching %q found under %v", *glob, inputs)
	}
	log.Infof("analyzing %d files with %d workers", len(files), *workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cp, err := batch.Run(ctx, files, batch.Config{
		CheckpointPath: *cpPath,
		Workers:        *workers,
		Options:        []analyze.Option{analyze.WithMode(analyze.Mode(*mode))},
	})
	if err == context.Canceled {
		log.Warnf("interrupted, progress saved to %s", *cpPath)
	} else if err != nil {
		log.Fatalf("batch failed: %v", err)
	}

	if *dbPath != "" {
		cat, err := catalog.Open(*dbPath)
		if err != nil {
			log.Fatalf("opening catalog: %v", err)
		}
		defer cat.Close()
		if err := cat.StoreAll(cp.RunID, cp.Results); err != nil {
			log.Fatalf("storing results: %v", err)
		}
		log.Infof("stored %d records in %s", len(cp.Results), *dbPath)
	}

	printTop(cp, *topN)
}

// EARS deployments name recordings with three-digit numeric extensions
// (7100A001.210, B4230F17.130, ...), so that is the default match for
// directory scans.
const defaultGlob = "*.[0-9][0-9][0-9]"

// splitBatchArgs separates positional inputs from flag arguments: the
// first argument starting with '-' and everything after it go to the
// flag set.
func splitBatchArgs(args []string) (inputs, flagArgs []string) {
	for i, arg := range args {
		if len(arg) > 0 && arg[0] == '-' {
			return inputs, args[i:]
		}
		inputs = append(inputs, arg)
	}
	return inputs, nil
}

// expandInputs turns a mix of directories and files into a sorted file
// list. Directories are walked recursively and regular files whose base
// name matches glob are collected; explicitly named files are always
// kept.
func expandInputs(inputs []string, glob string) ([]string, error) {
	var files []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, in)
			continue
		}
		err = filepath.WalkDir(in, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ok, err := filepath.Match(glob, d.Name())
			if err != nil {
				return err
			}
			if ok {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func printTop(cp *batch.Checkpoint, n int) {
	results := make([]analyze.Report, len(cp.Results))
	copy(results, cp.Results)
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if n > len(results) {
		n = len(results)
	}

	fmt.Printf("\nTop %d of %d files (%d errors):\n", n, len(cp.Results), len(cp.Errors))
	for i := 0; i < n; i++ {
		r := results[i]
		fmt.Printf("%3d. %6.2f  %-20s %3d whistles  %2d chirps  %2d trains\n",
			i+1, r.Score, r.Filename, r.NumWhistles, r.NumChirps, r.NumClickTrains)
	}
}
