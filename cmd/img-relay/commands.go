package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	applog "github.com/Sriram-PR/img-relay/pkg/log"
	"github.com/Sriram-PR/img-relay/pkg/models"
	"github.com/Sriram-PR/img-relay/pkg/relay"
	"github.com/Sriram-PR/img-relay/pkg/server"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runServe handles the serve subcommand
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")
	addr := fs.String("addr", "", "Listen address, overrides server.addr")
	logLevel := fs.String("loglevel", "", "Log level (debug, info, warn, error), overrides log_level")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: img-relay serve [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()
	os.Exit(doServe(ctx, *configFile, *addr, *logLevel, os.Stderr))
}

func doServe(ctx context.Context, configPath, addr, logLevel string, stderr io.Writer) int {
	cfg, log, err := setup(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	svc, err := relay.New(ctx, cfg, log)
	if err != nil {
		log.Errorf("Failed to initialize relay: %v", err)
		return 1
	}
	defer svc.Close()

	srv := server.New(svc, cfg, applog.Component(log, "http"))
	if err := srv.Run(ctx); err != nil {
		log.Errorf("HTTP server error: %v", err)
		return 1
	}
	log.Info("Server stopped.")
	return 0
}

// runResolve handles the resolve subcommand
func runResolve(args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")
	logLevel := fs.String("loglevel", "warn", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: img-relay resolve [options] <url>...\n\nPrints one JSON resolution per line.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()
	os.Exit(doResolve(ctx, *configFile, *logLevel, fs.Args(), os.Stdout, os.Stderr))
}

func doResolve(ctx context.Context, configPath, logLevel string, refs []string, stdout, stderr io.Writer) int {
	svc, code := openService(ctx, configPath, logLevel, stderr)
	if svc == nil {
		return code
	}
	defer svc.Close()

	enc := json.NewEncoder(stdout)
	for _, ref := range refs {
		if err := enc.Encode(svc.Resolve(ctx, ref)); err != nil {
			fmt.Fprintf(stderr, "Error writing output: %v\n", err)
			return 1
		}
	}
	return 0
}

// runFetch handles the fetch subcommand
func runFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")
	logLevel := fs.String("loglevel", "warn", "Log level (debug, info, warn, error)")
	output := fs.String("o", "", "Output file (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: img-relay fetch [options] -o <file> <url>\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 || *output == "" {
		fs.Usage()
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()
	os.Exit(doFetch(ctx, *configFile, *logLevel, fs.Arg(0), *output, os.Stdout, os.Stderr))
}

func doFetch(ctx context.Context, configPath, logLevel, ref, output string, stdout, stderr io.Writer) int {
	svc, code := openService(ctx, configPath, logLevel, stderr)
	if svc == nil {
		return code
	}
	defer svc.Close()

	img, err := svc.ResolveAndFetch(ctx, ref)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := os.WriteFile(output, img.Data, 0644); err != nil {
		fmt.Fprintf(stderr, "Error writing %s: %v\n", output, err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %d bytes (%s, cached=%t) to %s\n", img.Size(), img.ContentType, img.FromCache, output)
	return 0
}

// runCompress handles the compress subcommand
func runCompress(args []string) {
	fs := flag.NewFlagSet("compress", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")
	logLevel := fs.String("loglevel", "warn", "Log level (debug, info, warn, error)")
	variant := fs.String("variant", "standard", "Compression variant (extreme, standard)")
	output := fs.String("o", "", "Output JPEG file; prints a base64 data URL when empty")
	fromURL := fs.Bool("url", false, "Treat the argument as an image reference to fetch instead of a local file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: img-relay compress [options] <file|url>\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()
	os.Exit(doCompress(ctx, compressOptions{
		configPath: *configFile,
		logLevel:   *logLevel,
		variant:    *variant,
		input:      fs.Arg(0),
		output:     *output,
		fromURL:    *fromURL,
	}, os.Stdout, os.Stderr))
}

type compressOptions struct {
	configPath string
	logLevel   string
	variant    string
	input      string
	output     string
	fromURL    bool
}

func doCompress(ctx context.Context, opts compressOptions, stdout, stderr io.Writer) int {
	variant, err := relay.ParseVariant(opts.variant)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	svc, code := openService(ctx, opts.configPath, opts.logLevel, stderr)
	if svc == nil {
		return code
	}
	defer svc.Close()

	var enc *models.EncodedImage
	if opts.fromURL {
		enc, err = svc.FetchAndCompress(ctx, opts.input, variant)
	} else {
		raw, readErr := os.ReadFile(opts.input)
		if readErr != nil {
			fmt.Fprintf(stderr, "Error reading %s: %v\n", opts.input, readErr)
			return 1
		}
		enc, err = svc.Compress(raw, variant)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if opts.output == "" {
		fmt.Fprintln(stdout, enc.DataURL())
		return 0
	}
	if err := os.WriteFile(opts.output, enc.Data, 0644); err != nil {
		fmt.Fprintf(stderr, "Error writing %s: %v\n", opts.output, err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %d bytes to %s\n", enc.Size(), opts.output)
	return 0
}

// openService loads config and builds the relay. On failure it returns nil
// and the exit code.
func openService(ctx context.Context, configPath, logLevel string, stderr io.Writer) (*relay.Service, int) {
	cfg, log, err := setup(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return nil, 1
	}
	svc, err := relay.New(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error initializing relay: %v\n", err)
		return nil, 1
	}
	return svc, 0
}
