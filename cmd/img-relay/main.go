package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-relay/pkg/config"
	applog "github.com/Sriram-PR/img-relay/pkg/log"
)

const (
	version           = "1.0.0"
	defaultConfigPath = "img-relay.yaml"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "resolve":
		runResolve(os.Args[2:])
	case "fetch":
		runFetch(os.Args[2:])
	case "compress":
		runCompress(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("img-relay %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `img-relay - Image reference resolver, cache and compressor

Usage:
  img-relay <command> [options]

Commands:
  serve       Run the HTTP image proxy
  resolve     Resolve links to direct image URLs
  fetch       Resolve and download an image
  compress    Re-encode an image under the extreme or standard budget
  validate    Validate configuration file
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'img-relay <command> -h' for command-specific help.`)
}

// loadConfig loads and validates the config file. The default path may be
// absent, in which case built-in defaults apply.
func loadConfig(path string) (*config.AppConfig, []string, error) {
	cfg, err := config.Load(path, path == defaultConfigPath)
	if err != nil {
		return nil, nil, err
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// setup loads config and builds the logger. A non-empty logLevel overrides
// the configured level.
func setup(configPath, logLevel string, stderr io.Writer) (*config.AppConfig, *logrus.Logger, error) {
	cfg, warnings, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	log := applog.NewWithOutput(stderr, cfg.LogLevel, cfg.LogFormat)
	for _, w := range warnings {
		log.Warn(w)
	}
	return cfg, log, nil
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: img-relay validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	cfg, warnings, err := loadConfig(configPath)
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Server: addr=%s rate_limit_rps=%g burst=%d\n",
		cfg.Server.Addr, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	fmt.Fprintf(stdout, "Cache: backend=%s dir=%s\n", cfg.Cache.Backend, cfg.Cache.Dir)
	fmt.Fprintf(stdout, "Compression: extreme=%d bytes standard=%d bytes max_upload=%d bytes\n",
		cfg.Compression.ExtremeTargetBytes, cfg.Compression.StandardTargetBytes, cfg.Compression.MaxUploadBytes)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}
