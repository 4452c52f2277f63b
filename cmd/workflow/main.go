// Command workflow renders the enclave workflow for a researcher image.
//
// Usage:
//
//	workflow <prefix> <image> <command>
//
// command is a JSON array, e.g. '["python", "./quiz_analyzer.py"]'.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/enclave/internal/config"
	"github.com/JonMunkholm/enclave/internal/logging"
	"github.com/JonMunkholm/enclave/internal/workflow"
)

func main() {
	output := flag.String("o", "", "output file (default: WORKFLOW_OUTPUT_PATH)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-o file] <prefix> <image> <command>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 3 {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Overload(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg, err := config.LoadWorkflow()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	path := cfg.OutputPath
	if *output != "" {
		path = *output
	}

	if err := render(path, workflow.Params{
		Prefix:       flag.Arg(0),
		Image:        flag.Arg(1),
		Command:      flag.Arg(2),
		OutputBucket: cfg.OutputBucket,
		ExportImage:  cfg.ExportImage,
	}); err != nil {
		slog.Error("failed to render workflow", "error", err)
		os.Exit(1)
	}
	slog.Info("workflow written", "path", path, "prefix", flag.Arg(0))
}

func render(path string, p workflow.Params) error {
	wf, err := workflow.New(p)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := wf.Render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
