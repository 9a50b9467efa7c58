package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Sriram-PR/img-relay/pkg/mcp"
	"github.com/Sriram-PR/img-relay/pkg/relay"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigPath, "Path to config file")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8081, "HTTP port (for sse transport)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: img-relay mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport
  img-relay mcp-server -config img-relay.yaml

  # Start with SSE transport on port 8081
  img-relay mcp-server -transport sse -port 8081

Available MCP Tools:
  resolve_image    Resolve a link to a direct image URL
  fetch_image      Resolve and download an image
  compress_image   Fetch and compress an image (extreme or standard)
  prefetch_images  Warm the cache for a batch of links in the background
  get_job_status   Check a prefetch job
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()
	os.Exit(doMcpServer(ctx, *configFile, *transport, *port, *logLevel, os.Stderr))
}

// doMcpServer is the testable implementation of the MCP server.
// Logs go to stderr; stdio transport owns stdout.
func doMcpServer(ctx context.Context, configPath, transport string, port int, logLevel string, stderr io.Writer) int {
	if transport != "stdio" && transport != "sse" {
		fmt.Fprintf(stderr, "Unknown transport: %s (supported: stdio, sse)\n", transport)
		return 1
	}

	cfg, log, err := setup(configPath, logLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	svc, err := relay.New(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error initializing relay: %v\n", err)
		return 1
	}
	defer svc.Close()

	server, err := mcp.NewServer(&mcp.ServerConfig{
		Relay:     svc,
		Transport: transport,
		Port:      port,
		Logger:    log,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}
	defer server.Shutdown(context.Background())

	log.Infof("Starting MCP server (transport: %s)", transport)
	if err := server.Run(); err != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", err)
		return 1
	}
	return 0
}
