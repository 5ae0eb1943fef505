package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"

	"github.com/ironsheep/fiber-gauge-mcp/internal/config"
	"github.com/ironsheep/fiber-gauge-mcp/internal/fiber"
	"github.com/ironsheep/fiber-gauge-mcp/internal/imaging"
	"github.com/ironsheep/fiber-gauge-mcp/internal/logging"
	"github.com/ironsheep/fiber-gauge-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			printVersion(os.Stdout)
			return
		case "--help", "-h", "help":
			printUsage(os.Stdout)
			return
		case "analyze":
			if err := runAnalyze(ctx, os.Args[2:], os.Stdout, os.Stderr); err != nil {
				if !errors.Is(err, flag.ErrHelp) {
					fmt.Fprintf(os.Stderr, "fiber-gauge: %v\n", err)
				}
				stop()
				os.Exit(1)
			}
			return
		}
	}

	if err := runServer(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fiber-gauge: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", server.Name, Version)
	fmt.Fprintf(w, "  Build time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "%s - fiber diameter measurement from micrographs\n", server.Name)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  fiber-gauge                       Run the MCP server on stdin/stdout")
	fmt.Fprintln(w, "  fiber-gauge analyze [flags] IMAGE Measure one micrograph")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --version, -v    Print version information")
	fmt.Fprintln(w, "  --help, -h       Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Analyze flags:")
	fmt.Fprintln(w, "  -config PATH     YAML config file (default fiber-gauge.yaml, optional)")
	fmt.Fprintln(w, "  -cutoff N        Rows kept from the top of the image")
	fmt.Fprintln(w, "  -ppm F           Pixels per micrometer")
	fmt.Fprintln(w, "  -out PATH        Write the annotated image (format from extension)")
	fmt.Fprintln(w, "  -json            Print the result as JSON")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintf(w, "  %s=PATH   Config file\n", config.EnvConfig)
	fmt.Fprintf(w, "  %s=N      Cutoff row\n", config.EnvCutoff)
	fmt.Fprintf(w, "  %s=F         Pixels per micrometer\n", config.EnvPPM)
	fmt.Fprintf(w, "  %s=debug Enable debug logging\n", config.EnvLogLevel)
	fmt.Fprintf(w, "  %s=NAME Detector backend\n", config.EnvDetector)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "A .env file in the working directory is read before the environment.")
	fmt.Fprintln(w, "The server communicates via MCP protocol over stdin/stdout; logs go to stderr.")
}

// runServer serves MCP requests on stdin/stdout until stdin closes or a
// signal arrives.
func runServer(ctx context.Context) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	log.WithFields(logging.Fields{
		"version": Version,
		"built":   BuildTime,
		"commit":  GitCommit,
	}).Debug("starting fiber gauge MCP server")

	srv, err := server.New(
		server.WithConfig(cfg),
		server.WithLogger(log),
		server.WithVersion(Version),
	)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		// Run is blocked reading stdin; leave it to process exit.
		log.Info("shutting down")
		return nil
	}
}

// analyzeFlags holds the parsed arguments of the analyze sub-command.
type analyzeFlags struct {
	configPath string
	cutoff     int
	ppm        float64
	outPath    string
	asJSON     bool
	imagePath  string

	// set records which flags were given on the command line.
	set map[string]bool
}

func parseAnalyzeFlags(args []string, stderr io.Writer) (*analyzeFlags, error) {
	f := &analyzeFlags{set: make(map[string]bool)}

	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "YAML config file (default fiber-gauge.yaml, optional)")
	fs.IntVar(&f.cutoff, "cutoff", 0, "Rows kept from the top of the image (default from config)")
	fs.Float64Var(&f.ppm, "ppm", 0, "Pixels per micrometer (default from config)")
	fs.StringVar(&f.outPath, "out", "", "Write the annotated image to this path")
	fs.BoolVar(&f.asJSON, "json", false, "Print the result as JSON instead of the text summary")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: fiber-gauge analyze [flags] IMAGE")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("expected exactly one IMAGE argument")
	}
	f.imagePath = fs.Arg(0)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// apply overrides cfg with the flags given on the command line.
func (f *analyzeFlags) apply(cfg *config.Config) error {
	if f.set["cutoff"] {
		cfg.Analysis.Cutoff = f.cutoff
	}
	if f.set["ppm"] {
		cfg.Analysis.PixelsPerMicrometer = f.ppm
	}
	return cfg.Validate()
}

// runAnalyze measures one micrograph and prints the summary, or the full
// result with -json.
func runAnalyze(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags, err := parseAnalyzeFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if err := flags.apply(cfg); err != nil {
		return err
	}

	log, err := logging.NewWithWriter(cfg.Logging, stderr)
	if err != nil {
		return err
	}
	opts, err := fiber.OptionsFromConfig(cfg, log)
	if err != nil {
		return err
	}
	analyzer := fiber.NewAnalyzer(opts)

	img, err := imaging.NewImageCache().Load(flags.imagePath)
	if err != nil {
		return err
	}

	result, err := analyzer.Analyze(ctx, img, cfg.Analysis.Cutoff, cfg.Analysis.PixelsPerMicrometer)
	if err != nil {
		return err
	}

	if flags.outPath != "" {
		if err := imaging.Save(result.Annotated, flags.outPath); err != nil {
			return err
		}
		log.WithFields(logging.Fields{
			logging.RunIDKey: result.RunID,
			"path":           flags.outPath,
		}).Info("annotated image written")
	}

	if flags.asJSON {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	_, err = fmt.Fprintln(stdout, result.Summary())
	return err
}
