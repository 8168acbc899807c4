package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"sgbmtuner/internal/models"
	"sgbmtuner/pkg/config"
	"sgbmtuner/pkg/imageio"
	"sgbmtuner/pkg/logging"
	"sgbmtuner/pkg/stereo"
	"sgbmtuner/pkg/sweep"
	"sgbmtuner/pkg/tuner"
)

// settings collects repeated -set name=value flags
type settings []setting

type setting struct {
	name  string
	value int
}

func (s *settings) String() string {
	parts := make([]string, len(*s))
	for i, st := range *s {
		parts[i] = fmt.Sprintf("%s=%d", st.name, st.value)
	}
	return strings.Join(parts, ",")
}

func (s *settings) Set(arg string) error {
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		return fmt.Errorf("expected name=value, got %q", arg)
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", name, err)
	}
	*s = append(*s, setting{name: strings.TrimSpace(name), value: v})
	return nil
}

// options holds the parsed command line
type options struct {
	leftPath, rightPath string
	configPath          string
	initConfig          bool
	outputPath          string
	rgb                 bool
	preview             string
	sweepSpec           string
	workers             int
	interactive         bool
	verbose             bool
	intermediary        bool
	overrides           settings

	// explicit records the flags given on the command line
	explicit map[string]bool
}

// errUsage reports missing required arguments
var errUsage = errors.New("both -left and -right are required")

func main() {
	// Parse command line arguments
	var opts options
	flag.StringVar(&opts.leftPath, "left", "", "Left (reference) image")
	flag.StringVar(&opts.rightPath, "right", "", "Right image")
	flag.StringVar(&opts.configPath, "config", "sgbmtuner.yaml", "Configuration file")
	flag.BoolVar(&opts.initConfig, "init-config", false, "Write a default configuration file and exit")
	flag.StringVar(&opts.outputPath, "output", "", "Display map output path (overrides config)")
	flag.BoolVar(&opts.rgb, "rgb", true, "Replicate the display map into three channels")
	flag.StringVar(&opts.preview, "preview", "", "Bound the saved map to WIDTHxHEIGHT, e.g. 800x600")
	flag.StringVar(&opts.sweepSpec, "sweep", "", "Parameter sweep, e.g. \"uniquenessRatio=5,10;P2=240,480\"")
	flag.IntVar(&opts.workers, "workers", 0, "Concurrent sweep computations (default: from config)")
	flag.BoolVar(&opts.interactive, "interactive", false, "Read \"name value\" parameter changes from stdin")
	flag.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	flag.BoolVar(&opts.intermediary, "intermediary", false, "Save intermediary results of every run")
	flag.Var(&opts.overrides, "set", "Override a parameter as name=value (repeatable)")
	flag.Parse()

	opts.explicit = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { opts.explicit[f.Name] = true })

	if err := run(opts, os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		logging.Fatalf("%v", err)
	}
}

// run executes one invocation. The log file opened here is closed before it
// returns, whatever the outcome.
func run(opts options, stdin io.Reader, stdout io.Writer) error {
	if opts.initConfig {
		if err := config.CreateDefaultConfigFile(opts.configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		fmt.Fprintf(stdout, "Default configuration written to %s\n", opts.configPath)
		return nil
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlags(cfg, opts); err != nil {
		return err
	}

	closer, err := logging.Setup(cfg.LoggingOptions())
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	params, err := cfg.Matching.ParameterSet()
	if err != nil {
		return fmt.Errorf("invalid matching parameters: %w", err)
	}
	for _, o := range opts.overrides {
		if err := params.Set(o.name, o.value); err != nil {
			return fmt.Errorf("invalid -set %s=%d: %w", o.name, o.value, err)
		}
	}

	if opts.leftPath == "" || opts.rightPath == "" {
		return errUsage
	}

	left, err := imageio.LoadGray(opts.leftPath)
	if err != nil {
		return fmt.Errorf("failed to load left image: %w", err)
	}
	right, err := imageio.LoadGray(opts.rightPath)
	if err != nil {
		return fmt.Errorf("failed to load right image: %w", err)
	}
	logging.Printf("Loaded %dx%d left and %dx%d right images", left.Width, left.Height, right.Width, right.Height)

	vars := sweep.FromMap(cfg.Sweep.Values)
	if opts.sweepSpec != "" {
		if vars, err = sweep.ParseVariations(opts.sweepSpec); err != nil {
			return fmt.Errorf("invalid -sweep: %w", err)
		}
	}
	if len(vars) > 0 {
		return runSweep(stdout, cfg, left, right, params, vars)
	}

	session := tuner.NewSession(params, &tuner.Params{
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		IntermediaryDir:         cfg.Output.IntermediaryDir,
	})
	if _, err := session.LoadLeft(left); err != nil {
		return fmt.Errorf("failed to compute disparity: %w", err)
	}
	res, err := session.LoadRight(right)
	if err != nil {
		return fmt.Errorf("failed to compute disparity: %w", err)
	}

	out := &output{path: cfg.Output.Path, rgb: cfg.Output.RGB,
		previewWidth: cfg.Output.PreviewWidth, previewHeight: cfg.Output.PreviewHeight}
	if err := out.write(res); err != nil {
		return err
	}
	report(stdout, res)

	if opts.interactive {
		fmt.Fprintln(stdout, "\nEnter \"name value\" to change a parameter, \"params\" to list them, \"quit\" to exit.")
		if err := runInteractive(stdin, stdout, session, out.write); err != nil {
			return fmt.Errorf("interactive session failed: %w", err)
		}
	}
	return nil
}

// applyFlags lets explicitly given flags take precedence over the config file
func applyFlags(cfg *config.Config, opts options) error {
	for name := range opts.explicit {
		switch name {
		case "output":
			cfg.Output.Path = opts.outputPath
		case "rgb":
			cfg.Output.RGB = opts.rgb
		case "verbose":
			cfg.Output.Verbose = opts.verbose
		case "intermediary":
			cfg.Output.SaveIntermediaryResults = opts.intermediary
		case "workers":
			cfg.Sweep.Workers = opts.workers
		case "preview":
			w, h, err := parsePreview(opts.preview)
			if err != nil {
				return fmt.Errorf("invalid -preview: %w", err)
			}
			cfg.Output.PreviewWidth, cfg.Output.PreviewHeight = w, h
		}
	}
	return nil
}

// runSweep computes every combination and writes the display maps
func runSweep(w io.Writer, cfg *config.Config, left, right *models.Image, base stereo.ParameterSet, vars []sweep.Variation) error {
	runner := sweep.NewRunner(cfg.Sweep.Workers)

	logging.Printf("Starting parameter sweep over %d parameters...", len(vars))
	startTime := time.Now()
	outcomes, err := runner.Run(context.Background(), left, right, base, vars)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	logging.Printf("Sweep of %d combinations completed in %.2f seconds", len(outcomes), time.Since(startTime).Seconds())

	if err := sweep.Save(outcomes, cfg.Sweep.OutputDir, cfg.Output.RGB); err != nil {
		return fmt.Errorf("failed to save sweep results: %w", err)
	}

	fmt.Fprintln(w, "\nCombinations ranked by valid pixel ratio:")
	for _, o := range sweep.Rank(outcomes) {
		fmt.Fprintf(w, "  %-48s %s (%v)\n", o.Label(), o.Stats, o.Elapsed.Round(time.Millisecond))
	}
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "  %-48s skipped: %v\n", o.Label(), o.Err)
		}
	}
	fmt.Fprintf(w, "\nDisplay maps saved to: %s\n", cfg.Sweep.OutputDir)
	return nil
}

func parsePreview(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected WIDTHxHEIGHT, got %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width: %w", err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height: %w", err)
	}
	return width, height, nil
}
