package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/specimen-tools-mcp/internal/config"
	"github.com/ironsheep/specimen-tools-mcp/internal/dataset"
	"github.com/ironsheep/specimen-tools-mcp/internal/detection"
	"github.com/ironsheep/specimen-tools-mcp/internal/imaging"
	"github.com/ironsheep/specimen-tools-mcp/internal/logging"
	"github.com/ironsheep/specimen-tools-mcp/internal/pipeline"
	"github.com/ironsheep/specimen-tools-mcp/internal/server"
	"github.com/ironsheep/specimen-tools-mcp/internal/shape"
	"github.com/ironsheep/specimen-tools-mcp/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("specimen-mcp - specimen detection and landmark tools")
	fmt.Println()
	fmt.Println("Usage: specimen-mcp [command] [flags]")
	fmt.Println()
	fmt.Println("Without a command the MCP server runs on stdin/stdout.")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  detect        -image PATH              Single-specimen box")
	fmt.Println("  detect-multi  -image PATH              Boxes of every specimen")
	fmt.Println("  prepare       -tag TAG [-project DIR]  Build train/test XML")
	fmt.Println("  train         -tag TAG [-project DIR]  Train the landmark model")
	fmt.Println("  predict       -tag TAG -image PATH     Predict landmarks")
	fmt.Println("  evaluate      -tag TAG [-split test]   Model error report")
	fmt.Println("  debug         -tag TAG [-image PATH]   Training/inference consistency")
	fmt.Println("  history       [-tag TAG] [-training]   Recorded predictions or runs")
	fmt.Println("  version, help")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  SPECIMEN_LOG_LEVEL=debug       Log level (default info)")
	fmt.Println("  SPECIMEN_LOG_FILE=path         Also log to a rotated file")
	fmt.Println("  SPECIMEN_PROJECT_ROOT=dir      Default project directory")
	fmt.Println("  SPECIMEN_HISTORY_DB=path       SQLite prediction history")
	fmt.Println("  SPECIMEN_ENV_FILE=path         Env file to load (default .env)")
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("specimen-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			usage()
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Args[1:]); err != nil {
		log.WithError(err).Error("command failed")
		stop()
		os.Exit(1)
	}
}

// run dispatches to the MCP server or a batch command.
func run(ctx context.Context, cfg config.Config, log *logrus.Logger, args []string) error {
	var history *store.Store
	if cfg.HistoryDB != "" {
		var err error
		if history, err = store.New(cfg.HistoryDB); err != nil {
			return err
		}
		defer history.Close()
	}

	if len(args) == 0 {
		server.Version = Version
		log.WithFields(logrus.Fields{"version": Version, "commit": GitCommit}).Info("specimen MCP server starting")
		return server.New(cfg, history, log).Run(ctx)
	}

	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	image := fs.String("image", "", "image path")
	tag := fs.String("tag", "", "model tag")
	project := fs.String("project", cfg.ProjectRoot, "project directory")
	split := fs.String("split", "test", "evaluation split: train or test")
	training := fs.Bool("training", false, "history: list training runs instead of predictions")
	limit := fs.Int("limit", 50, "history: maximum predictions")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	layout, err := dataset.NewLayout(*project)
	if err != nil {
		return err
	}

	var out interface{}
	switch cmd {
	case "detect", "detect-multi":
		if *image == "" {
			return errors.New("-image is required")
		}
		l, err := imaging.Load(*image)
		if err != nil {
			return err
		}
		d := detection.New(cfg.Detection, log)
		if cmd == "detect" {
			out = d.Detect(l.Image)
		} else {
			out = d.DetectMulti(l.Image)
		}

	case "prepare":
		res, err := dataset.NewPreparer(cfg, log).Prepare(ctx, layout, *tag)
		if err != nil {
			return err
		}
		pipeline.RecordRun(ctx, history, pipeline.PrepareRun(*tag, res), res, log)
		out = res

	case "train":
		res, err := shape.TrainProject(layout, *tag, nil, nil, log)
		if err != nil {
			return err
		}
		pipeline.RecordRun(ctx, history, pipeline.TrainRun(*tag, res), res, log)
		out = res

	case "predict":
		if *image == "" {
			return errors.New("-image is required")
		}
		out, err = newPipeline(cfg, history, log).Predict(ctx, layout, *tag, *image)

	case "evaluate":
		out, err = shape.EvaluateProject(layout, *tag, *split)

	case "debug":
		out, err = newPipeline(cfg, history, log).Debug(ctx, layout, *tag, *image)

	case "history":
		if history == nil {
			return errors.New("history is disabled; set SPECIMEN_HISTORY_DB")
		}
		if *training {
			out, err = history.TrainingRuns(ctx, *tag)
		} else {
			out, err = history.RecentPredictions(ctx, *tag, *limit)
		}

	default:
		usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newPipeline(cfg config.Config, history *store.Store, log *logrus.Logger) *pipeline.Pipeline {
	if history == nil {
		return pipeline.New(cfg, nil, log)
	}
	return pipeline.New(cfg, history, log)
}
